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
	"errors"
)

// Configuration errors
var (
	// ErrInvalidConfig indicates an invalid combination of configuration parameters.
	ErrInvalidConfig = errors.New("kmac: invalid configuration")

	// ErrNotConfigured indicates the device has not been configured yet.
	ErrNotConfigured = errors.New("kmac: device not configured")

	// ErrDeviceRequired indicates a device is required but was not provided.
	ErrDeviceRequired = errors.New("kmac: device is required")
)

// Key and customization string errors
var (
	// ErrKeyTooLong indicates the declared key length exceeds the maximum
	// supported key length.
	ErrKeyTooLong = errors.New("kmac: key too long")

	// ErrInvalidKeyLength indicates the key length is not one of the
	// supported lengths (128, 192, 256, 384 or 512 bits).
	ErrInvalidKeyLength = errors.New("kmac: invalid key length")

	// ErrKeyRequired indicates a key is required for the requested mode.
	ErrKeyRequired = errors.New("kmac: key required")

	// ErrCustomizationStringTooLong indicates the encoded customization
	// string would not fit the hardware prefix register file.
	ErrCustomizationStringTooLong = errors.New("kmac: customization string too long")

	// ErrFunctionNameTooLong indicates the encoded function name would not
	// fit the hardware prefix register file.
	ErrFunctionNameTooLong = errors.New("kmac: function name too long")
)

// Operation errors
var (
	// ErrDigestTooLong indicates the requested digest length exceeds the
	// maximum digest length.
	ErrDigestTooLong = errors.New("kmac: digest too long")

	// ErrPhaseViolation indicates an operation was invoked out of order.
	ErrPhaseViolation = errors.New("kmac: operation invoked out of phase")

	// ErrInvalidMode indicates an unsupported operating mode.
	ErrInvalidMode = errors.New("kmac: invalid mode")

	// ErrQueueStall indicates the hardware message queue remained
	// unresponsive beyond the polling budget. Fatal; the operation must be
	// reset before the device can be used again.
	ErrQueueStall = errors.New("kmac: message queue stalled")

	// ErrEntropyTimeout indicates an entropy refill was not observed within
	// the wait-timer budget. Fatal; the operation must be reset before the
	// device can be used again.
	ErrEntropyTimeout = errors.New("kmac: entropy refill timed out")
)

// errorType maps an error onto its metrics label.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrKeyTooLong), errors.Is(err, ErrInvalidKeyLength):
		return "key_length"
	case errors.Is(err, ErrKeyRequired):
		return "key_required"
	case errors.Is(err, ErrCustomizationStringTooLong), errors.Is(err, ErrFunctionNameTooLong):
		return "prefix_too_long"
	case errors.Is(err, ErrDigestTooLong):
		return "digest_too_long"
	case errors.Is(err, ErrPhaseViolation):
		return "phase_violation"
	case errors.Is(err, ErrInvalidMode):
		return "invalid_mode"
	case errors.Is(err, ErrQueueStall):
		return "queue_stall"
	case errors.Is(err, ErrEntropyTimeout):
		return "entropy_timeout"
	default:
		return "other"
	}
}
