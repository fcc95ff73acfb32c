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
	"time"

	"github.com/jeremyhahn/go-kmac/pkg/correlation"
	"github.com/jeremyhahn/go-kmac/pkg/logging"
	"github.com/jeremyhahn/go-kmac/pkg/metrics"
)

// Params collects the dependencies of a driver instance.
type Params struct {
	// Device is the register-level access to the accelerator. Required.
	Device Device

	// Logger receives operational logging. Optional; defaults to the
	// package default logger. Key shares are never logged.
	Logger *logging.Logger
}

// KMAC drives a single masked KMAC/cSHAKE accelerator instance through its
// configure, start, absorb and squeeze lifecycle. All operations are
// synchronous polled register accesses; every wait loop is bounded and
// converts unresponsiveness into an error rather than a hang.
//
// The driver does not arbitrate between concurrent callers. Exactly one
// OperationState may be active at a time and callers serialize externally.
type KMAC struct {
	device     Device
	config     Config
	configured bool
	logger     *logging.Logger
}

// New creates a driver bound to the given device. The device is not touched
// until Configure is called.
func New(params *Params) (*KMAC, error) {
	if params == nil || params.Device == nil {
		return nil, ErrDeviceRequired
	}
	logger := params.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &KMAC{
		device: params.Device,
		logger: logger,
	}, nil
}

// Config returns a copy of the latched configuration.
func (k *KMAC) Config() Config {
	return k.config
}

// Configure validates cfg and latches it into the hardware. The entropy
// timing registers are written here; the operating-mode register is written
// per operation at start. No computation is started. The latched parameters
// are the operating contract for all subsequent operations until Configure
// is called again.
func (k *KMAC) Configure(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	k.device.Write32(RegEntropyPeriod, encodeEntropyPeriod(cfg.EntropyPrescaler, cfg.EntropyWaitTimer))
	k.device.Write32(RegEntropyThreshold, cfg.EntropyRefreshThreshold)
	for _, w := range cfg.EntropySeed {
		k.device.Write32(RegEntropySeed, w)
	}

	k.config = *cfg
	k.config.EntropySeed = append([]uint32(nil), cfg.EntropySeed...)
	k.configured = true

	k.logger.Debugf("kmac: configured entropy_mode=%s threshold=%d wait_timer=%d prescaler=%d sideload=%t",
		cfg.EntropyMode, cfg.EntropyRefreshThreshold, cfg.EntropyWaitTimer, cfg.EntropyPrescaler, cfg.Sideload)
	return nil
}

// NewOperation stages a new operation against the latched configuration.
// Fails with ErrNotConfigured until Configure has succeeded.
func (k *KMAC) NewOperation() (*OperationState, error) {
	if !k.configured {
		return nil, ErrNotConfigured
	}
	return &OperationState{
		id:    correlation.NewID(),
		phase: PhaseConfigured,
	}, nil
}

// StartKMAC begins a keyed MAC operation. Valid only from PhaseConfigured.
// digestWords is the negotiated digest length for the fixed-length modes;
// extendable-output modes may pass zero and squeeze open-ended. The masked
// key is loaded share-wise, or omitted (nil) when the configuration selects
// a sideloaded key. On success the operation transitions to PhaseAbsorbing.
func (k *KMAC) StartKMAC(op *OperationState, mode Mode, digestWords int, key *MaskedKey, cust *CustomizationString) error {
	if !mode.valid() || !mode.keyed() {
		return fmt.Errorf("%w: %s is not a keyed mode", ErrInvalidMode, mode)
	}
	if k.config.Sideload {
		if key != nil {
			return fmt.Errorf("%w: sideload enabled, key must not be supplied in software", ErrInvalidConfig)
		}
	} else if key == nil {
		return ErrKeyRequired
	}
	return k.start(op, mode, digestWords, key, funcNameKMAC, cust)
}

// StartCSHAKE begins an unkeyed customizable extendable-output operation.
// Valid only from PhaseConfigured. A nil function name selects the empty
// function name reserved by NIST for caller-defined use.
func (k *KMAC) StartCSHAKE(op *OperationState, mode Mode, fn *FunctionName, cust *CustomizationString) error {
	if !mode.valid() || mode.keyed() {
		return fmt.Errorf("%w: %s is not a cSHAKE mode", ErrInvalidMode, mode)
	}
	if fn == nil {
		fn = &FunctionName{encoded: encodeString("")}
	}
	return k.start(op, mode, 0, nil, fn, cust)
}

func (k *KMAC) start(op *OperationState, mode Mode, digestWords int, key *MaskedKey, fn *FunctionName, cust *CustomizationString) error {
	began := time.Now()

	if op == nil || op.phase != PhaseConfigured {
		return k.recordStart(op, began, mode, ErrPhaseViolation)
	}

	// Length and prefix validation precede every register access so a
	// rejected start leaves no partial hardware state behind.
	if digestWords < 0 || digestWords > MaxDigestWords {
		return k.recordStart(op, began, mode, fmt.Errorf("%w: %d words exceeds %d",
			ErrDigestTooLong, digestWords, MaxDigestWords))
	}
	if !mode.xof() && digestWords == 0 {
		return k.recordStart(op, began, mode, fmt.Errorf("%w: fixed-length mode requires a digest length",
			ErrInvalidMode))
	}
	prefix, err := assemblePrefix(fn, cust)
	if err != nil {
		return k.recordStart(op, began, mode, err)
	}

	k.device.Write32(RegCfg, encodeCfg(&k.config, mode))

	if key != nil {
		k.device.Write32(RegKeyLen, uint32(key.Len))
		for i := 0; i < key.Len.Words(); i++ {
			k.device.Write32(RegKeyShare0+uint32(i)*4, key.Share0[i])
			k.device.Write32(RegKeyShare1+uint32(i)*4, key.Share1[i])
		}
	}

	for i, w := range prefix {
		k.device.Write32(RegPrefix+uint32(i)*4, w)
	}

	k.device.Write32(RegCmd, CmdStart)

	if err := k.feedEntropy(op); err != nil {
		return k.recordStart(op, began, mode, err)
	}
	if err := k.pollStatus(op, StatusAbsorbBit); err != nil {
		return k.recordStart(op, began, mode, err)
	}

	op.mode = mode
	op.digestWords = digestWords
	op.absorbed = 0
	op.squeezed = 0
	op.offset = 0
	op.phase = PhaseAbsorbing

	k.logger.Debugf("kmac: start op=%s mode=%s digest_words=%d sideload=%t",
		op.id, mode, digestWords, k.config.Sideload)
	return k.recordStart(op, began, mode, nil)
}

// Absorb streams message bytes into the hardware message queue. Valid only
// while the operation is in PhaseAbsorbing; in particular, absorbing after
// the first Squeeze call fails with ErrPhaseViolation. A message may be
// absorbed in one call or split across any number of sequential calls with
// an identical resulting digest.
func (k *KMAC) Absorb(op *OperationState, data []byte) error {
	began := time.Now()

	if op == nil || op.phase != PhaseAbsorbing {
		metrics.RecordError(metrics.OpAbsorb, errorType(ErrPhaseViolation))
		return ErrPhaseViolation
	}

	// Full words go through the word-wide queue port in the configured
	// message byte order; the unaligned tail uses the byte-enabled port,
	// which is order-neutral.
	n := len(data)
	for len(data) >= 4 {
		var word uint32
		if k.config.MessageBigEndian {
			word = binary.BigEndian.Uint32(data)
		} else {
			word = binary.LittleEndian.Uint32(data)
		}
		if err := k.waitQueueReady(op); err != nil {
			return k.recordAbsorb(began, err)
		}
		k.device.Write32(RegMsgFIFO, word)
		data = data[4:]
	}
	for _, b := range data {
		if err := k.waitQueueReady(op); err != nil {
			return k.recordAbsorb(began, err)
		}
		k.device.Write8(RegMsgFIFO, b)
	}

	op.absorbed += uint64(n)
	metrics.AddAbsorbedBytes(float64(n))
	return k.recordAbsorb(began, nil)
}

// Squeeze extracts digest words from the state read window into out. The
// first call finalizes absorption: for keyed modes the encoded output
// length is appended to the message stream, then the process command moves
// the hardware into the squeezing state. Fixed-length modes transition to
// PhaseDone once the negotiated digest length has been fully read;
// extendable-output modes keep producing for as long as the caller asks.
//
// A request that would exceed MaxDigestWords, or overrun the negotiated
// length of a fixed-length operation, fails with ErrDigestTooLong before
// any hardware access.
func (k *KMAC) Squeeze(op *OperationState, out []uint32) error {
	began := time.Now()

	if op == nil || (op.phase != PhaseAbsorbing && op.phase != PhaseSqueezing) {
		metrics.RecordError(metrics.OpSqueeze, errorType(ErrPhaseViolation))
		return ErrPhaseViolation
	}

	if len(out) > MaxDigestWords {
		return k.recordSqueeze(began, fmt.Errorf("%w: %d words exceeds %d",
			ErrDigestTooLong, len(out), MaxDigestWords))
	}
	if !op.mode.xof() && op.squeezed+len(out) > op.digestWords {
		return k.recordSqueeze(began, fmt.Errorf("%w: %d words exceeds negotiated %d",
			ErrDigestTooLong, op.squeezed+len(out), op.digestWords))
	}

	if op.phase == PhaseAbsorbing {
		if err := k.finalize(op); err != nil {
			return k.recordSqueeze(began, err)
		}
	}

	rate := op.mode.rateWords()
	for i := range out {
		if op.offset == rate {
			k.device.Write32(RegCmd, CmdRun)
			if err := k.feedEntropy(op); err != nil {
				return k.recordSqueeze(began, err)
			}
			if err := k.pollStatus(op, StatusSqueezeBit); err != nil {
				return k.recordSqueeze(began, err)
			}
			op.offset = 0
		}
		raw := k.device.Read32(RegState + uint32(op.offset)*4)
		if k.config.OutputBigEndian {
			raw = bits.ReverseBytes32(raw)
		}
		out[i] = raw
		op.offset++
		op.squeezed++
	}

	if !op.mode.xof() && op.squeezed == op.digestWords {
		k.device.Write32(RegCmd, CmdDone)
		op.phase = PhaseDone
		k.logger.Debugf("kmac: done op=%s absorbed=%d digest_words=%d", op.id, op.absorbed, op.squeezed)
	}
	return k.recordSqueeze(began, nil)
}

// Reset aborts the operation and returns the hardware to idle, discarding
// any partially absorbed or squeezed state. Unconditionally safe from any
// phase, including PhaseError.
func (k *KMAC) Reset(op *OperationState) {
	k.device.Write32(RegCmd, CmdDone)
	if op != nil {
		op.phase = PhaseIdle
		op.mode = 0
		op.digestWords = 0
		op.absorbed = 0
		op.squeezed = 0
		op.offset = 0
		k.logger.Debugf("kmac: reset op=%s", op.id)
	}
	metrics.RecordOperation(metrics.OpReset, metrics.StatusSuccess, 0)
}

// finalize moves the operation from absorbing to squeezing, issuing the
// output length framing and the process command.
func (k *KMAC) finalize(op *OperationState) error {
	if op.mode.keyed() {
		var outBits uint64
		if !op.mode.xof() {
			outBits = uint64(op.digestWords) * 32
		}
		for _, b := range rightEncode(outBits) {
			if err := k.waitQueueReady(op); err != nil {
				return err
			}
			k.device.Write8(RegMsgFIFO, b)
		}
	}

	k.device.Write32(RegCmd, CmdProcess)

	if err := k.feedEntropy(op); err != nil {
		return err
	}
	if err := k.pollStatus(op, StatusSqueezeBit); err != nil {
		return err
	}
	op.phase = PhaseSqueezing
	op.offset = 0
	k.logger.Debugf("kmac: finalize op=%s absorbed=%d", op.id, op.absorbed)
	return nil
}

// waitQueueReady blocks until the message queue can accept another write,
// polling up to the configured budget. A full queue that drains within the
// budget is transient backpressure, not an error; exhaustion is escalated
// to ErrQueueStall and fails the operation.
func (k *KMAC) waitQueueReady(op *OperationState) error {
	if err := k.feedEntropy(op); err != nil {
		return err
	}
	budget := k.config.pollBudget()
	for i := 0; i < budget; i++ {
		if k.device.Read32(RegStatus)&StatusFIFOFullBit == 0 {
			return nil
		}
	}
	op.fail()
	return fmt.Errorf("%w: queue full after %d polls", ErrQueueStall, k.config.pollBudget())
}

// pollStatus waits for a status flag to assert, with the same bounded
// budget and escalation as the queue wait.
func (k *KMAC) pollStatus(op *OperationState, mask uint32) error {
	budget := k.config.pollBudget()
	for i := 0; i < budget; i++ {
		status := k.device.Read32(RegStatus)
		if status&StatusEntropyStarvedBit != 0 {
			if err := k.feedEntropy(op); err != nil {
				return err
			}
			continue
		}
		if status&mask != 0 {
			return nil
		}
	}
	op.fail()
	return fmt.Errorf("%w: status %#x not asserted after %d polls", ErrQueueStall, mask, k.config.pollBudget())
}

func (k *KMAC) recordStart(op *OperationState, began time.Time, mode Mode, err error) error {
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		metrics.RecordError(metrics.OpStart, errorType(err))
		k.logger.Errorf("kmac: start mode=%s failed: %v", mode, err)
	}
	metrics.RecordOperation(metrics.OpStart, status, time.Since(began).Seconds())
	return err
}

func (k *KMAC) recordAbsorb(began time.Time, err error) error {
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		metrics.RecordError(metrics.OpAbsorb, errorType(err))
	}
	metrics.RecordOperation(metrics.OpAbsorb, status, time.Since(began).Seconds())
	return err
}

func (k *KMAC) recordSqueeze(began time.Time, err error) error {
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		metrics.RecordError(metrics.OpSqueeze, errorType(err))
	}
	metrics.RecordOperation(metrics.OpSqueeze, status, time.Since(began).Seconds())
	return err
}
