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
	"math/bits"
)

// leftEncode returns the NIST SP 800-185 left_encode of x: the big-endian
// minimal byte representation of x preceded by its byte count.
func leftEncode(x uint64) []byte {
	n := (bits.Len64(x) + 7) / 8
	if n == 0 {
		n = 1
	}
	b := make([]byte, 9)
	binary.BigEndian.PutUint64(b[1:], x)
	b = b[8-n:]
	b[0] = byte(n)
	return b
}

// rightEncode returns the NIST SP 800-185 right_encode of x: the big-endian
// minimal byte representation of x followed by its byte count.
func rightEncode(x uint64) []byte {
	n := (bits.Len64(x) + 7) / 8
	if n == 0 {
		n = 1
	}
	b := make([]byte, 9)
	binary.BigEndian.PutUint64(b[:8], x)
	b = b[8-n:]
	b[n] = byte(n)
	return b[:n+1]
}

// CustomizationString is an application-defined byte string, encoded with
// its left_encode bit-length prefix ready to be loaded into the hardware
// prefix register file. Encoding is pure; two values built from the same
// input are identical.
type CustomizationString struct {
	raw     string
	encoded []byte
}

// NewCustomizationString encodes s for use as the customization input of a
// KMAC or cSHAKE operation. Strings longer than MaxCustomizationStringLen
// bytes are rejected with ErrCustomizationStringTooLong.
func NewCustomizationString(s string) (*CustomizationString, error) {
	if len(s) > MaxCustomizationStringLen {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d",
			ErrCustomizationStringTooLong, len(s), MaxCustomizationStringLen)
	}
	return &CustomizationString{raw: s, encoded: encodeString(s)}, nil
}

// Raw returns the raw customization string.
func (c *CustomizationString) Raw() string { return c.raw }

// Encoded returns the left_encode framed byte sequence.
func (c *CustomizationString) Encoded() []byte { return c.encoded }

// EncodedLen returns the length of the framed byte sequence.
func (c *CustomizationString) EncodedLen() int { return len(c.encoded) }

// FunctionName is a NIST-defined function name string, encoded the same way
// as a customization string. KMAC operations always use the name "KMAC";
// cSHAKE callers building their own derived functions supply one explicitly.
type FunctionName struct {
	raw     string
	encoded []byte
}

// NewFunctionName encodes s for use as the function name input of a cSHAKE
// operation. Names longer than MaxFunctionNameLen bytes are rejected with
// ErrFunctionNameTooLong.
func NewFunctionName(s string) (*FunctionName, error) {
	if len(s) > MaxFunctionNameLen {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d",
			ErrFunctionNameTooLong, len(s), MaxFunctionNameLen)
	}
	return &FunctionName{raw: s, encoded: encodeString(s)}, nil
}

// Raw returns the raw function name.
func (f *FunctionName) Raw() string { return f.raw }

// Encoded returns the left_encode framed byte sequence.
func (f *FunctionName) Encoded() []byte { return f.encoded }

// funcNameKMAC is the fixed function name every keyed operation absorbs.
var funcNameKMAC = &FunctionName{raw: "KMAC", encoded: encodeString("KMAC")}

// encodeString applies the SP 800-185 encode_string framing: left_encode of
// the bit length followed by the raw bytes.
func encodeString(s string) []byte {
	out := leftEncode(uint64(len(s)) * 8)
	return append(out, s...)
}

// assemblePrefix concatenates the encoded function name and customization
// string and zero-pads to the prefix register file size. The zero padding is
// inert: the hardware derives the significant length from the framing.
func assemblePrefix(fn *FunctionName, cs *CustomizationString) ([PrefixRegCount]uint32, error) {
	var regs [PrefixRegCount]uint32

	enc := make([]byte, 0, MaxPrefixBytes)
	enc = append(enc, fn.Encoded()...)
	if cs != nil {
		enc = append(enc, cs.Encoded()...)
	} else {
		enc = append(enc, encodeString("")...)
	}
	if len(enc) > MaxPrefixBytes {
		return regs, fmt.Errorf("%w: encoded prefix is %d bytes, register file holds %d",
			ErrCustomizationStringTooLong, len(enc), MaxPrefixBytes)
	}

	padded := make([]byte, MaxPrefixBytes)
	copy(padded, enc)
	for i := 0; i < PrefixRegCount; i++ {
		regs[i] = binary.LittleEndian.Uint32(padded[i*4:])
	}
	return regs, nil
}
