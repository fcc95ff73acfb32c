// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-kmac.
//
// go-kmac is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package kmac

import (
	"encoding/binary"
	"fmt"
	"io"
)

// KeyLen identifies one of the key lengths supported by the key share
// register files.
type KeyLen uint8

const (
	KeyLen128 KeyLen = iota
	KeyLen192
	KeyLen256
	KeyLen384
	KeyLen512
)

// Bits returns the key length in bits.
func (l KeyLen) Bits() int {
	switch l {
	case KeyLen128:
		return 128
	case KeyLen192:
		return 192
	case KeyLen256:
		return 256
	case KeyLen384:
		return 384
	case KeyLen512:
		return 512
	default:
		return 0
	}
}

// Words returns the number of 32-bit words in each share.
func (l KeyLen) Words() int {
	return l.Bits() / 32
}

// keyLenForBytes maps a raw key byte length onto a KeyLen code.
func keyLenForBytes(n int) (KeyLen, error) {
	switch n {
	case 16:
		return KeyLen128, nil
	case 24:
		return KeyLen192, nil
	case 32:
		return KeyLen256, nil
	case 48:
		return KeyLen384, nil
	case 64:
		return KeyLen512, nil
	}
	if n*8 > MaxKeyLenBits {
		return 0, fmt.Errorf("%w: %d bits exceeds %d", ErrKeyTooLong, n*8, MaxKeyLenBits)
	}
	return 0, fmt.Errorf("%w: %d bits", ErrInvalidKeyLength, n*8)
}

// MaskedKey holds a secret key split into two boolean shares. The XOR of the
// two shares reconstructs the key; the unmasked key is never materialized
// outside this unit and the shares are never logged.
type MaskedKey struct {
	// Len declares the key length. Only the first Len.Words() words of each
	// share are significant.
	Len KeyLen

	// Share0 and Share1 are the two shares, packed little-endian into
	// 32-bit words.
	Share0 [MaxKeyLenWords]uint32
	Share1 [MaxKeyLenWords]uint32
}

// NewMaskedKey splits key into two shares. The second share is drawn from
// entropy; passing a nil reader selects an all-zero second share, the
// reduced masking strength used when the key is already protected elsewhere.
// The XOR identity between the shares and the key holds in either case.
//
// The key slice is consumed share-wise and never retained.
func NewMaskedKey(key []byte, entropy io.Reader) (*MaskedKey, error) {
	l, err := keyLenForBytes(len(key))
	if err != nil {
		return nil, err
	}

	mk := &MaskedKey{Len: l}
	words := l.Words()

	mask := make([]byte, 4)
	for i := 0; i < words; i++ {
		if entropy != nil {
			if _, err := io.ReadFull(entropy, mask); err != nil {
				return nil, fmt.Errorf("kmac: reading share entropy: %w", err)
			}
		}
		m := binary.LittleEndian.Uint32(mask)
		k := binary.LittleEndian.Uint32(key[i*4:])
		mk.Share1[i] = m
		mk.Share0[i] = k ^ m
	}

	return mk, nil
}

// Zeroize overwrites both shares. The key length declaration is preserved so
// a zeroized key fails verification rather than silently shrinking.
func (k *MaskedKey) Zeroize() {
	for i := range k.Share0 {
		k.Share0[i] = 0
		k.Share1[i] = 0
	}
}
