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

import "fmt"

// Mode identifies the sponge operating mode of a single operation.
type Mode uint8

const (
	// ModeCSHAKE128 and ModeCSHAKE256 run the unkeyed customizable
	// extendable-output function.
	ModeCSHAKE128 Mode = iota
	ModeCSHAKE256

	// ModeKMAC128 and ModeKMAC256 run the keyed MAC with a negotiated
	// fixed digest length.
	ModeKMAC128
	ModeKMAC256

	// ModeKMACXOF128 and ModeKMACXOF256 run the keyed MAC as an
	// extendable-output function; squeezing is open-ended.
	ModeKMACXOF128
	ModeKMACXOF256
)

// String returns a short name for the mode.
func (m Mode) String() string {
	switch m {
	case ModeCSHAKE128:
		return "cshake128"
	case ModeCSHAKE256:
		return "cshake256"
	case ModeKMAC128:
		return "kmac128"
	case ModeKMAC256:
		return "kmac256"
	case ModeKMACXOF128:
		return "kmac-xof128"
	case ModeKMACXOF256:
		return "kmac-xof256"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// keyed reports whether the mode loads a secret key.
func (m Mode) keyed() bool {
	return m >= ModeKMAC128
}

// xof reports whether squeezing is open-ended.
func (m Mode) xof() bool {
	switch m {
	case ModeCSHAKE128, ModeCSHAKE256, ModeKMACXOF128, ModeKMACXOF256:
		return true
	}
	return false
}

// strength returns the security strength in bits.
func (m Mode) strength() int {
	switch m {
	case ModeCSHAKE128, ModeKMAC128, ModeKMACXOF128:
		return 128
	default:
		return 256
	}
}

// rateWords returns the sponge byte rate for the mode, in 32-bit words.
// The Keccak-f[1600] rate is 1600 minus twice the security strength.
func (m Mode) rateWords() int {
	return (1600 - 2*m.strength()) / 32
}

// valid reports whether m is a recognized mode.
func (m Mode) valid() bool {
	return m <= ModeKMACXOF256
}

// Phase is the lifecycle phase of an operation.
type Phase uint8

const (
	// PhaseIdle is the state of a reset operation. No hardware state is
	// associated with it.
	PhaseIdle Phase = iota

	// PhaseConfigured means the device configuration is latched and the
	// operation is ready to start.
	PhaseConfigured

	// PhaseAbsorbing means the operation is accepting message bytes.
	PhaseAbsorbing

	// PhaseSqueezing means absorption is finalized and digest words are
	// being extracted.
	PhaseSqueezing

	// PhaseDone means the full negotiated digest has been read.
	PhaseDone

	// PhaseError means a fatal condition was reported. Only Reset leaves
	// this phase.
	PhaseError
)

// String returns a short name for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConfigured:
		return "configured"
	case PhaseAbsorbing:
		return "absorbing"
	case PhaseSqueezing:
		return "squeezing"
	case PhaseDone:
		return "done"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

// OperationState tracks a single in-flight sponge computation. Exactly one
// operation may be active against a device at a time; the state value is
// owned by the caller and mutated only by the driver that created it.
//
// Phase transitions are monotonic: Configured, Absorbing, Squeezing, Done.
// PhaseError is reachable from any phase on a fatal condition and Reset
// returns to PhaseIdle from any phase.
type OperationState struct {
	id    string
	phase Phase
	mode  Mode

	// digestWords is the negotiated digest length for fixed-length modes,
	// or the requested initial length for extendable-output modes.
	digestWords int

	// absorbed counts message bytes accepted so far. Monotonically
	// non-decreasing while absorbing.
	absorbed uint64

	// squeezed counts digest words produced so far. Monotonically
	// non-decreasing while squeezing; never exceeds digestWords unless the
	// mode is extendable-output.
	squeezed int

	// offset is the read cursor into the current state window block, in
	// words. Wraps at the mode's rate, issuing a run command.
	offset int
}

// ID returns the correlation identifier assigned when the operation was
// created. Present on every log line the driver emits for this operation.
func (op *OperationState) ID() string { return op.id }

// Phase returns the current lifecycle phase. Pure query, no side effects.
func (op *OperationState) Phase() Phase { return op.phase }

// IsPhase reports whether the operation is currently in phase p.
func (op *OperationState) IsPhase(p Phase) bool { return op.phase == p }

// Mode returns the operating mode negotiated at start.
func (op *OperationState) Mode() Mode { return op.mode }

// DigestWords returns the digest length negotiated at start, in words.
func (op *OperationState) DigestWords() int { return op.digestWords }

// Absorbed returns the total number of message bytes absorbed.
func (op *OperationState) Absorbed() uint64 { return op.absorbed }

// Squeezed returns the total number of digest words squeezed.
func (op *OperationState) Squeezed() int { return op.squeezed }

// fail marks the operation fatally failed.
func (op *OperationState) fail() {
	op.phase = PhaseError
}
