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

// Hardware limits. These describe the register file sizes of the
// accelerator, not properties of the sponge construction.
const (
	// MaxKeyLenBits is the maximum supported key length in bits.
	MaxKeyLenBits = 512

	// MaxKeyLenWords is the width of each key share register file.
	MaxKeyLenWords = MaxKeyLenBits / 32

	// PrefixRegCount is the number of 32-bit prefix registers. The encoded
	// function name and customization string must fit this register file.
	PrefixRegCount = 11

	// MaxPrefixBytes is the byte capacity of the prefix register file.
	MaxPrefixBytes = PrefixRegCount * 4

	// MaxFunctionNameLen is the maximum raw function name length in bytes.
	MaxFunctionNameLen = 4

	// MaxCustomizationStringLen is the maximum raw customization string
	// length in bytes.
	MaxCustomizationStringLen = 36

	// MaxDigestWords is the maximum digest length, in 32-bit words, that a
	// fixed-length operation may negotiate.
	MaxDigestWords = 1024

	// FIFODepthWords is the depth of the hardware message queue.
	FIFODepthWords = 16

	// FIFODepthBytes is the byte capacity of the hardware message queue.
	FIFODepthBytes = FIFODepthWords * 4

	// DefaultPollBudget bounds how many times a full message queue is
	// re-polled before the operation fails with ErrQueueStall.
	DefaultPollBudget = 256
)

// Device is the register-level access boundary to a single KMAC accelerator
// instance. Production firmware backs it with a mapped base address; tests
// back it with the simulator package. Offsets are the Reg* constants.
//
// Implementations are not required to be safe for concurrent use; the driver
// is a single-threaded polling driver and callers serialize externally.
type Device interface {
	// Read32 reads the 32-bit register at the given offset.
	Read32(offset uint32) uint32

	// Write32 writes the 32-bit register at the given offset.
	Write32(offset uint32, value uint32)

	// Write8 writes a single byte into a byte-enabled register window.
	// Only the message queue window supports byte writes.
	Write8(offset uint32, value uint8)
}
