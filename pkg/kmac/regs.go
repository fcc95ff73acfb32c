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

// Register offsets relative to the accelerator base address. The bit layout
// of each register is confined to this file; the rest of the driver operates
// on typed values only.
const (
	RegCfg              uint32 = 0x00
	RegCmd              uint32 = 0x04
	RegStatus           uint32 = 0x08
	RegEntropyPeriod    uint32 = 0x0C
	RegEntropyThreshold uint32 = 0x10
	RegKeyLen           uint32 = 0x14
	RegErrCode          uint32 = 0x18

	// RegEntropySeed is a word-repeated seed window for software entropy mode.
	RegEntropySeed uint32 = 0x1C

	// RegKeyShare0 and RegKeyShare1 are register files of MaxKeyLenWords
	// words each, holding the two boolean shares of the secret key.
	RegKeyShare0 uint32 = 0x20
	RegKeyShare1 uint32 = 0x60

	// RegPrefix is a register file of PrefixRegCount words holding the
	// encoded function name and customization string.
	RegPrefix uint32 = 0xA0

	// RegMsgFIFO is the message queue window. Word and byte writes are
	// accepted anywhere in the window.
	RegMsgFIFO uint32 = 0xD0

	// RegState is the read window over the Keccak state. Digest words are
	// read from here, one rate-sized block per run command.
	RegState uint32 = 0x100
)

// CFG register fields.
const (
	cfgKeyedShift        = 0
	cfgStrengthShift     = 1 // 2 bits: cfgStrength128 or cfgStrength256
	cfgMsgBigEndianBit   = 1 << 4
	cfgStateBigEndianBit = 1 << 5
	cfgSideloadBit       = 1 << 6
	cfgEntropyModeShift  = 8 // 2 bits: entropy mode
	cfgFastProcessBit    = 1 << 10
	cfgMsgMaskBit        = 1 << 11

	cfgStrength128 = 0x0
	cfgStrength256 = 0x1
)

// ENTROPY_PERIOD register fields.
const (
	entropyPrescalerShift = 0
	entropyPrescalerMask  = 0x3FF
	entropyWaitTimerShift = 16
	entropyWaitTimerMask  = 0xFFFF
)

// CMD register values. One-hot sparse encodings guard against single bit
// upsets being interpreted as a different command.
const (
	CmdStart   uint32 = 0x1D
	CmdProcess uint32 = 0x2E
	CmdRun     uint32 = 0x31
	CmdDone    uint32 = 0x16
)

// STATUS register bits.
const (
	StatusIdleBit           uint32 = 1 << 0
	StatusAbsorbBit         uint32 = 1 << 1
	StatusSqueezeBit        uint32 = 1 << 2
	StatusFIFOEmptyBit      uint32 = 1 << 14
	StatusFIFOFullBit       uint32 = 1 << 15
	StatusEntropyStarvedBit uint32 = 1 << 16
)

// ERR_CODE register values.
const (
	ErrCodeNone               uint32 = 0
	ErrCodeEntropyWaitExpired uint32 = 1
	ErrCodeFIFOOverflow       uint32 = 2
)

// encodeCfg packs a validated Config and the mode of the pending operation
// into the CFG register value.
func encodeCfg(c *Config, mode Mode) uint32 {
	var v uint32
	if mode.keyed() {
		v |= 1 << cfgKeyedShift
	}
	switch mode.strength() {
	case 128:
		v |= cfgStrength128 << cfgStrengthShift
	case 256:
		v |= cfgStrength256 << cfgStrengthShift
	}
	if c.MessageBigEndian {
		v |= cfgMsgBigEndianBit
	}
	if c.OutputBigEndian {
		v |= cfgStateBigEndianBit
	}
	if c.Sideload {
		v |= cfgSideloadBit
	}
	v |= uint32(c.EntropyMode) << cfgEntropyModeShift
	if c.FastProcess {
		v |= cfgFastProcessBit
	}
	if c.MessageMask {
		v |= cfgMsgMaskBit
	}
	return v
}

// encodeEntropyPeriod packs the prescaler and wait timer into the
// ENTROPY_PERIOD register value.
func encodeEntropyPeriod(prescaler, waitTimer uint32) uint32 {
	return (prescaler&entropyPrescalerMask)<<entropyPrescalerShift |
		(waitTimer&entropyWaitTimerMask)<<entropyWaitTimerShift
}

// DecodeCfg unpacks a CFG register value. Used by the simulator and by
// diagnostics; the driver itself never reads CFG back.
func DecodeCfg(v uint32) (keyed bool, strength int, cfg Config) {
	keyed = v&(1<<cfgKeyedShift) != 0
	if (v>>cfgStrengthShift)&0x3 == cfgStrength256 {
		strength = 256
	} else {
		strength = 128
	}
	cfg.MessageBigEndian = v&cfgMsgBigEndianBit != 0
	cfg.OutputBigEndian = v&cfgStateBigEndianBit != 0
	cfg.Sideload = v&cfgSideloadBit != 0
	cfg.EntropyMode = EntropyMode((v >> cfgEntropyModeShift) & 0x3)
	cfg.FastProcess = v&cfgFastProcessBit != 0
	cfg.MessageMask = v&cfgMsgMaskBit != 0
	return keyed, strength, cfg
}

// DecodeEntropyPeriod unpacks an ENTROPY_PERIOD register value.
func DecodeEntropyPeriod(v uint32) (prescaler, waitTimer uint32) {
	prescaler = (v >> entropyPrescalerShift) & entropyPrescalerMask
	waitTimer = (v >> entropyWaitTimerShift) & entropyWaitTimerMask
	return prescaler, waitTimer
}
