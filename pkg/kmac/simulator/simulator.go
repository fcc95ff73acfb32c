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

// Package simulator implements a register-accurate software model of the
// masked KMAC accelerator behind the kmac.Device interface. The sponge core
// is golang.org/x/crypto/sha3, so digests produced through the simulator
// match the published cSHAKE/KMAC vectors bit for bit.
//
// The simulator exists for the same reason the TPM backend supports a
// software TPM: driver logic, phase ordering, queue backpressure and the
// entropy timing contract are all testable without silicon. Test knobs
// model the failure modes the driver must survive: a configurable entropy
// refill latency and a message queue that stops draining.
package simulator

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/jeremyhahn/go-kmac/pkg/kmac"
)

// phase mirrors the hardware-visible sponge state.
type phase uint8

const (
	phaseIdle phase = iota
	phaseAbsorb
	phaseSqueeze
)

// Simulator is a single simulated accelerator instance. It implements
// kmac.Device. Like the silicon it models, it is not safe for concurrent
// use; the driver contract requires external serialization.
type Simulator struct {
	// latched register file
	cfg       uint32
	period    uint32
	threshold uint32
	keyLen    uint32
	share0    [kmac.MaxKeyLenWords]uint32
	share1    [kmac.MaxKeyLenWords]uint32
	prefix    [kmac.PrefixRegCount]uint32
	seed      []uint32
	errCode   uint32

	// decoded at start
	opts     kmac.Config
	keyed    bool
	strength int
	rate     int

	sponge   sha3.ShakeHash
	stateBuf []byte
	phase    phase

	// message queue model. Bytes accumulate between status polls; each
	// poll drains the queue unless the stall knob is set.
	fifoBytes int
	stall     bool

	// entropy distributor model. A starvation is declared at start when
	// the hash counter crosses the refresh threshold (or on first use) and
	// clears after refillLatency status polls.
	refillLatency  int
	starveRemain   int
	seeded         bool
	hashesSinceSeed uint32

	sideload []byte
}

// Option configures a simulator instance.
type Option func(*Simulator)

// WithEntropyRefillLatency sets how many status polls the simulated entropy
// distributor needs to deliver a refill. Zero (the default) models an
// always-ready distributor.
func WithEntropyRefillLatency(polls int) Option {
	return func(s *Simulator) { s.refillLatency = polls }
}

// WithFIFOStall stops the message queue from draining, so it fills and
// stays full. Models an unresponsive hardware queue.
func WithFIFOStall() Option {
	return func(s *Simulator) { s.stall = true }
}

// New creates a simulated accelerator.
func New(opts ...Option) *Simulator {
	s := &Simulator{}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SideloadKey installs the key material the simulated key manager presents
// when the sideload configuration bit is set.
func (s *Simulator) SideloadKey(key []byte) {
	s.sideload = append([]byte(nil), key...)
}

// ErrCode returns the latched error code register value.
func (s *Simulator) ErrCode() uint32 { return s.errCode }

// Read32 implements kmac.Device.
func (s *Simulator) Read32(offset uint32) uint32 {
	switch {
	case offset == kmac.RegStatus:
		return s.status()
	case offset == kmac.RegCfg:
		return s.cfg
	case offset == kmac.RegEntropyPeriod:
		return s.period
	case offset == kmac.RegEntropyThreshold:
		return s.threshold
	case offset == kmac.RegErrCode:
		return s.errCode
	case offset >= kmac.RegState && offset < kmac.RegState+uint32(len(s.stateBuf)):
		return s.stateWord(int(offset-kmac.RegState) / 4)
	}
	return 0
}

// Write32 implements kmac.Device.
func (s *Simulator) Write32(offset uint32, value uint32) {
	switch {
	case offset == kmac.RegCfg:
		s.cfg = value
	case offset == kmac.RegCmd:
		s.command(value)
	case offset == kmac.RegEntropyPeriod:
		s.period = value
	case offset == kmac.RegEntropyThreshold:
		s.threshold = value
	case offset == kmac.RegKeyLen:
		s.keyLen = value
	case offset == kmac.RegEntropySeed:
		s.seed = append(s.seed, value)
	case offset >= kmac.RegKeyShare0 && offset < kmac.RegKeyShare0+kmac.MaxKeyLenWords*4:
		s.share0[(offset-kmac.RegKeyShare0)/4] = value
	case offset >= kmac.RegKeyShare1 && offset < kmac.RegKeyShare1+kmac.MaxKeyLenWords*4:
		s.share1[(offset-kmac.RegKeyShare1)/4] = value
	case offset >= kmac.RegPrefix && offset < kmac.RegPrefix+kmac.PrefixRegCount*4:
		s.prefix[(offset-kmac.RegPrefix)/4] = value
	case offset == kmac.RegMsgFIFO:
		var b [4]byte
		if s.opts.MessageBigEndian {
			binary.BigEndian.PutUint32(b[:], value)
		} else {
			binary.LittleEndian.PutUint32(b[:], value)
		}
		s.absorb(b[:])
	}
}

// Write8 implements kmac.Device. Only the message queue window is
// byte-enabled.
func (s *Simulator) Write8(offset uint32, value uint8) {
	if offset >= kmac.RegMsgFIFO && offset < kmac.RegMsgFIFO+4 {
		s.absorb([]byte{value})
	}
}

func (s *Simulator) absorb(b []byte) {
	if s.phase != phaseAbsorb || s.sponge == nil {
		s.errCode = kmac.ErrCodeFIFOOverflow
		return
	}
	s.fifoBytes += len(b)
	if s.fifoBytes > kmac.FIFODepthBytes {
		// Writes past a full queue are dropped by the silicon; the
		// driver is required never to reach this.
		s.errCode = kmac.ErrCodeFIFOOverflow
		return
	}
	s.sponge.Write(b)
}

func (s *Simulator) status() uint32 {
	var v uint32

	switch s.phase {
	case phaseIdle:
		v |= kmac.StatusIdleBit
	case phaseAbsorb:
		v |= kmac.StatusAbsorbBit
	case phaseSqueeze:
		v |= kmac.StatusSqueezeBit
	}

	if s.starveRemain > 0 {
		s.starveRemain--
		if s.starveRemain > 0 {
			v |= kmac.StatusEntropyStarvedBit
		}
	}

	if !s.stall {
		s.fifoBytes = 0
	}
	if s.fifoBytes == 0 {
		v |= kmac.StatusFIFOEmptyBit
	}
	if s.fifoBytes >= kmac.FIFODepthBytes {
		v |= kmac.StatusFIFOFullBit
	}
	return v
}

func (s *Simulator) stateWord(i int) uint32 {
	if s.phase != phaseSqueeze || i < 0 || (i+1)*4 > len(s.stateBuf) {
		return 0
	}
	if s.opts.OutputBigEndian {
		return binary.BigEndian.Uint32(s.stateBuf[i*4:])
	}
	return binary.LittleEndian.Uint32(s.stateBuf[i*4:])
}

func (s *Simulator) command(cmd uint32) {
	switch cmd {
	case kmac.CmdStart:
		s.start()
	case kmac.CmdProcess:
		if s.phase == phaseAbsorb {
			s.phase = phaseSqueeze
			s.nextBlock()
		}
	case kmac.CmdRun:
		if s.phase == phaseSqueeze {
			s.nextBlock()
		}
	case kmac.CmdDone:
		s.phase = phaseIdle
		s.sponge = nil
		s.stateBuf = nil
		s.fifoBytes = 0
	}
}

func (s *Simulator) start() {
	s.keyed, s.strength, s.opts = kmac.DecodeCfg(s.cfg)
	s.rate = (1600 - 2*s.strength) / 8
	s.errCode = kmac.ErrCodeNone

	n, c, err := s.decodePrefix()
	if err != nil {
		s.errCode = kmac.ErrCodeFIFOOverflow
		return
	}

	if s.strength == 128 {
		s.sponge = sha3.NewCShake128(n, c)
	} else {
		s.sponge = sha3.NewCShake256(n, c)
	}

	if s.keyed {
		key := s.keyBytes()
		init := leftEncode(uint64(len(key)) * 8)
		init = append(init, key...)
		s.sponge.Write(bytepad(init, s.rate))
	}

	if s.opts.EntropyMode == kmac.EntropyModeEDN {
		if !s.seeded || s.hashesSinceSeed >= s.threshold {
			s.starveRemain = s.refillLatency + 1
			s.seeded = true
			s.hashesSinceSeed = 0
		} else {
			s.hashesSinceSeed++
		}
	}

	s.phase = phaseAbsorb
	s.fifoBytes = 0
}

// keyBytes reconstructs the operating key. Shares are combined inside the
// masked datapath of real silicon; the simulator models only the result.
func (s *Simulator) keyBytes() []byte {
	if s.opts.Sideload {
		return s.sideload
	}
	words := kmac.KeyLen(s.keyLen).Words()
	key := make([]byte, words*4)
	for i := 0; i < words; i++ {
		binary.LittleEndian.PutUint32(key[i*4:], s.share0[i]^s.share1[i])
	}
	return key
}

func (s *Simulator) nextBlock() {
	if s.stateBuf == nil {
		s.stateBuf = make([]byte, s.rate)
	}
	s.sponge.Read(s.stateBuf)
}

// decodePrefix parses the encoded function name and customization string
// back out of the prefix register file.
func (s *Simulator) decodePrefix() (funcName, cust []byte, err error) {
	buf := make([]byte, kmac.MaxPrefixBytes)
	for i, w := range s.prefix {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	funcName, buf, err = decodeEncodedString(buf)
	if err != nil {
		return nil, nil, err
	}
	cust, _, err = decodeEncodedString(buf)
	if err != nil {
		return nil, nil, err
	}
	return funcName, cust, nil
}

// decodeEncodedString parses one SP 800-185 encode_string frame from the
// front of buf.
func decodeEncodedString(buf []byte) (val []byte, rest []byte, err error) {
	if len(buf) == 0 {
		return nil, nil, fmt.Errorf("simulator: empty prefix frame")
	}
	n := int(buf[0])
	if n < 1 || n > 8 || len(buf) < 1+n {
		return nil, nil, fmt.Errorf("simulator: malformed prefix length")
	}
	var bits uint64
	for i := 0; i < n; i++ {
		bits = bits<<8 | uint64(buf[1+i])
	}
	if bits%8 != 0 {
		return nil, nil, fmt.Errorf("simulator: prefix bit length %d not byte aligned", bits)
	}
	nbytes := int(bits / 8)
	if len(buf) < 1+n+nbytes {
		return nil, nil, fmt.Errorf("simulator: prefix frame truncated")
	}
	return buf[1+n : 1+n+nbytes], buf[1+n+nbytes:], nil
}

// leftEncode and bytepad are the SP 800-185 framing primitives used to
// absorb the key block.
func leftEncode(x uint64) []byte {
	b := make([]byte, 9)
	binary.BigEndian.PutUint64(b[1:], x)
	i := 0
	for i < 7 && b[1+i] == 0 {
		i++
	}
	out := b[i:]
	out[0] = byte(8 - i)
	return out
}

func bytepad(data []byte, rate int) []byte {
	out := leftEncode(uint64(rate))
	out = append(out, data...)
	if pad := rate - len(out)%rate; pad < rate {
		out = append(out, make([]byte, pad)...)
	}
	return out
}
