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

package kmac_test

import (
	"crypto/rand"
	"encoding/binary"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	"github.com/jeremyhahn/go-kmac/internal/testutil"
	"github.com/jeremyhahn/go-kmac/pkg/kmac"
	"github.com/jeremyhahn/go-kmac/pkg/kmac/simulator"
)

// countingDevice wraps a device and counts register writes, so tests can
// assert that rejected requests performed no hardware access.
type countingDevice struct {
	kmac.Device
	writes int
}

func (d *countingDevice) Write32(offset uint32, value uint32) {
	d.writes++
	d.Device.Write32(offset, value)
}

func (d *countingDevice) Write8(offset uint32, value uint8) {
	d.writes++
	d.Device.Write8(offset, value)
}

func newTestDriver(t *testing.T, cfg *kmac.Config, opts ...simulator.Option) (*kmac.KMAC, *simulator.Simulator) {
	t.Helper()
	sim := simulator.New(opts...)
	drv, err := kmac.New(&kmac.Params{Device: sim})
	require.NoError(t, err)
	if cfg == nil {
		cfg = &kmac.Config{}
	}
	require.NoError(t, drv.Configure(cfg))
	return drv, sim
}

func startedKMACOp(t *testing.T, drv *kmac.KMAC, mode kmac.Mode, digestWords int, key []byte, cust string) *kmac.OperationState {
	t.Helper()
	mk, err := kmac.NewMaskedKey(key, rand.Reader)
	require.NoError(t, err)
	var cs *kmac.CustomizationString
	if cust != "" {
		cs, err = kmac.NewCustomizationString(cust)
		require.NoError(t, err)
	}
	op, err := drv.NewOperation()
	require.NoError(t, err)
	require.NoError(t, drv.StartKMAC(op, mode, digestWords, mk, cs))
	return op
}

// Reference computations against golang.org/x/crypto/sha3 directly.

func refLeftEncode(x uint64) []byte {
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

func refRightEncode(x uint64) []byte {
	n := (bits.Len64(x) + 7) / 8
	if n == 0 {
		n = 1
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, x)
	out := append([]byte{}, b[8-n:]...)
	return append(out, byte(n))
}

func refBytepad(data []byte, rate int) []byte {
	out := refLeftEncode(uint64(rate))
	out = append(out, data...)
	if pad := rate - len(out)%rate; pad < rate {
		out = append(out, make([]byte, pad)...)
	}
	return out
}

// refKMAC256 computes KMAC256 (fixed outBits != 0) or KMACXOF256
// (outBits == 0) over the x/crypto sponge.
func refKMAC256(key, msg []byte, cust string, outWords int, xof bool) []uint32 {
	h := sha3.NewCShake256([]byte("KMAC"), []byte(cust))
	init := refLeftEncode(uint64(len(key)) * 8)
	init = append(init, key...)
	h.Write(refBytepad(init, 136))
	h.Write(msg)
	if xof {
		h.Write(refRightEncode(0))
	} else {
		h.Write(refRightEncode(uint64(outWords) * 32))
	}
	out := make([]byte, outWords*4)
	h.Read(out)
	words := make([]uint32, outWords)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(out[i*4:])
	}
	return words
}

func TestKMACXOF256KnownVector(t *testing.T) {
	v := testutil.KMACXOF256Sample
	drv, _ := newTestDriver(t, nil)

	mk, err := kmac.NewMaskedKey(v.Key, rand.Reader)
	require.NoError(t, err)
	cs, err := kmac.NewCustomizationString(v.CustomizationString)
	require.NoError(t, err)

	op, err := drv.NewOperation()
	require.NoError(t, err)
	require.NoError(t, drv.StartKMAC(op, v.Mode, 0, mk, cs))
	require.NoError(t, drv.Absorb(op, v.Message))
	assert.Equal(t, uint64(len(v.Message)), op.Absorbed())

	digest := make([]uint32, len(v.Digest))
	require.NoError(t, drv.Squeeze(op, digest))
	assert.Equal(t, v.Digest, digest)
	assert.True(t, op.IsPhase(kmac.PhaseSqueezing), "XOF operations stay squeezable")
}

func TestKMAC256FixedLengthMatchesReference(t *testing.T) {
	key := testutil.SequentialBytes(0x40, 32)
	msg := testutil.SequentialBytes(0x00, 137) // crosses a rate boundary
	const digestWords = 8

	drv, _ := newTestDriver(t, nil)
	op := startedKMACOp(t, drv, kmac.ModeKMAC256, digestWords, key, "My Tagged Application")
	require.NoError(t, drv.Absorb(op, msg))

	digest := make([]uint32, digestWords)
	require.NoError(t, drv.Squeeze(op, digest))

	assert.Equal(t, refKMAC256(key, msg, "My Tagged Application", digestWords, false), digest)
	assert.True(t, op.IsPhase(kmac.PhaseDone))
}

func TestCSHAKE256MatchesReference(t *testing.T) {
	msg := testutil.SequentialBytes(0x00, 200)
	drv, _ := newTestDriver(t, nil)

	cs, err := kmac.NewCustomizationString("Email Signature")
	require.NoError(t, err)
	op, err := drv.NewOperation()
	require.NoError(t, err)
	require.NoError(t, drv.StartCSHAKE(op, kmac.ModeCSHAKE256, nil, cs))
	require.NoError(t, drv.Absorb(op, msg))

	digest := make([]uint32, 16)
	require.NoError(t, drv.Squeeze(op, digest))

	h := sha3.NewCShake256(nil, []byte("Email Signature"))
	h.Write(msg)
	expected := make([]byte, 64)
	h.Read(expected)
	for i := range digest {
		assert.Equal(t, binary.LittleEndian.Uint32(expected[i*4:]), digest[i], "word %d", i)
	}
}

func TestChunkingInvariance(t *testing.T) {
	v := testutil.KMACXOF256Sample

	digestFor := func(chunks [][]byte) []uint32 {
		drv, _ := newTestDriver(t, nil)
		op := startedKMACOp(t, drv, v.Mode, 0, v.Key, v.CustomizationString)
		for _, chunk := range chunks {
			require.NoError(t, drv.Absorb(op, chunk))
		}
		digest := make([]uint32, len(v.Digest))
		require.NoError(t, drv.Squeeze(op, digest))
		return digest
	}

	for _, size := range []int{1, 3, 4, 7, 13, 64, 199} {
		var chunks [][]byte
		for off := 0; off < len(v.Message); off += size {
			end := off + size
			if end > len(v.Message) {
				end = len(v.Message)
			}
			chunks = append(chunks, v.Message[off:end])
		}
		assert.Equal(t, v.Digest, digestFor(chunks), "chunk size %d", size)
	}

	// Including zero-length absorptions.
	assert.Equal(t, v.Digest, digestFor([][]byte{nil, v.Message[:50], {}, v.Message[50:]}))
}

func TestEndiannessConfigurations(t *testing.T) {
	v := testutil.KMACXOF256Sample
	configs := []kmac.Config{
		{MessageBigEndian: true},
		{OutputBigEndian: true},
		{MessageBigEndian: true, OutputBigEndian: true},
	}

	for _, cfg := range configs {
		drv, _ := newTestDriver(t, &cfg)
		op := startedKMACOp(t, drv, v.Mode, 0, v.Key, v.CustomizationString)
		require.NoError(t, drv.Absorb(op, v.Message))
		digest := make([]uint32, len(v.Digest))
		require.NoError(t, drv.Squeeze(op, digest))
		assert.Equal(t, v.Digest, digest,
			"byte order configuration must be transparent end to end (msgBE=%t outBE=%t)",
			cfg.MessageBigEndian, cfg.OutputBigEndian)
	}
}

func TestSideloadedKey(t *testing.T) {
	v := testutil.KMACXOF256Sample
	cfg := &kmac.Config{
		EntropyMode:             kmac.EntropyModeEDN,
		EntropyRefreshThreshold: 50,
		EntropyWaitTimer:        0xFFFF,
		EntropyPrescaler:        1,
		Sideload:                true,
	}
	drv, sim := newTestDriver(t, cfg)
	sim.SideloadKey(v.Key)

	cs, err := kmac.NewCustomizationString(v.CustomizationString)
	require.NoError(t, err)
	op, err := drv.NewOperation()
	require.NoError(t, err)
	require.NoError(t, drv.StartKMAC(op, v.Mode, 0, nil, cs))
	require.NoError(t, drv.Absorb(op, v.Message))

	digest := make([]uint32, len(v.Digest))
	require.NoError(t, drv.Squeeze(op, digest))
	assert.Equal(t, v.Digest, digest, "sideloaded key must produce the same digest")
}

func TestSideloadRejectsSoftwareKey(t *testing.T) {
	cfg := &kmac.Config{
		EntropyMode:             kmac.EntropyModeEDN,
		EntropyRefreshThreshold: 50,
		EntropyWaitTimer:        0xFFFF,
		EntropyPrescaler:        1,
		Sideload:                true,
	}
	drv, _ := newTestDriver(t, cfg)

	mk, err := kmac.NewMaskedKey(make([]byte, 32), nil)
	require.NoError(t, err)
	op, err := drv.NewOperation()
	require.NoError(t, err)
	assert.ErrorIs(t, drv.StartKMAC(op, kmac.ModeKMAC256, 8, mk, nil), kmac.ErrInvalidConfig)
}

func TestSoftwareEntropyMode(t *testing.T) {
	v := testutil.KMACXOF256Sample
	cfg := &kmac.Config{
		EntropyMode: kmac.EntropyModeSoftware,
		EntropySeed: []uint32{0x5eed0001, 0x5eed0002, 0x5eed0003, 0x5eed0004},
	}
	drv, _ := newTestDriver(t, cfg)
	op := startedKMACOp(t, drv, v.Mode, 0, v.Key, v.CustomizationString)
	require.NoError(t, drv.Absorb(op, v.Message))

	digest := make([]uint32, len(v.Digest))
	require.NoError(t, drv.Squeeze(op, digest))
	assert.Equal(t, v.Digest, digest)
}

func TestPhaseOrdering(t *testing.T) {
	v := testutil.KMACXOF256Sample

	t.Run("squeeze before start", func(t *testing.T) {
		drv, _ := newTestDriver(t, nil)
		op, err := drv.NewOperation()
		require.NoError(t, err)
		assert.ErrorIs(t, drv.Squeeze(op, make([]uint32, 4)), kmac.ErrPhaseViolation)
	})

	t.Run("absorb before start", func(t *testing.T) {
		drv, _ := newTestDriver(t, nil)
		op, err := drv.NewOperation()
		require.NoError(t, err)
		assert.ErrorIs(t, drv.Absorb(op, []byte("message")), kmac.ErrPhaseViolation)
	})

	t.Run("absorb after squeeze", func(t *testing.T) {
		drv, _ := newTestDriver(t, nil)
		op := startedKMACOp(t, drv, v.Mode, 0, v.Key, "")
		require.NoError(t, drv.Absorb(op, v.Message))
		require.NoError(t, drv.Squeeze(op, make([]uint32, 4)))
		assert.ErrorIs(t, drv.Absorb(op, []byte("more")), kmac.ErrPhaseViolation)
	})

	t.Run("double start", func(t *testing.T) {
		drv, _ := newTestDriver(t, nil)
		op := startedKMACOp(t, drv, v.Mode, 0, v.Key, "")
		mk, err := kmac.NewMaskedKey(v.Key, nil)
		require.NoError(t, err)
		assert.ErrorIs(t, drv.StartKMAC(op, v.Mode, 0, mk, nil), kmac.ErrPhaseViolation)
	})

	t.Run("absorb after done", func(t *testing.T) {
		drv, _ := newTestDriver(t, nil)
		op := startedKMACOp(t, drv, kmac.ModeKMAC256, 4, v.Key, "")
		require.NoError(t, drv.Absorb(op, v.Message))
		require.NoError(t, drv.Squeeze(op, make([]uint32, 4)))
		require.True(t, op.IsPhase(kmac.PhaseDone))
		assert.ErrorIs(t, drv.Absorb(op, []byte("more")), kmac.ErrPhaseViolation)
		assert.ErrorIs(t, drv.Squeeze(op, make([]uint32, 1)), kmac.ErrPhaseViolation)
	})
}

func TestResetFromEveryPhase(t *testing.T) {
	v := testutil.KMACXOF256Sample
	drv, _ := newTestDriver(t, nil)

	// Configured.
	op, err := drv.NewOperation()
	require.NoError(t, err)
	drv.Reset(op)
	assert.True(t, op.IsPhase(kmac.PhaseIdle))

	// Absorbing.
	op = startedKMACOp(t, drv, v.Mode, 0, v.Key, "")
	require.NoError(t, drv.Absorb(op, v.Message[:10]))
	drv.Reset(op)
	assert.True(t, op.IsPhase(kmac.PhaseIdle))
	assert.Zero(t, op.Absorbed(), "reset discards partially absorbed state")

	// Squeezing.
	op = startedKMACOp(t, drv, v.Mode, 0, v.Key, "")
	require.NoError(t, drv.Absorb(op, v.Message))
	require.NoError(t, drv.Squeeze(op, make([]uint32, 2)))
	drv.Reset(op)
	assert.True(t, op.IsPhase(kmac.PhaseIdle))
	assert.Zero(t, op.Squeezed())

	// A fresh operation works after reset.
	op = startedKMACOp(t, drv, v.Mode, 0, v.Key, v.CustomizationString)
	require.NoError(t, drv.Absorb(op, v.Message))
	digest := make([]uint32, len(v.Digest))
	require.NoError(t, drv.Squeeze(op, digest))
	assert.Equal(t, v.Digest, digest)
}

func TestDigestLengthBounds(t *testing.T) {
	v := testutil.KMACXOF256Sample

	t.Run("start rejects oversized digest without hardware access", func(t *testing.T) {
		dev := &countingDevice{Device: simulator.New()}
		drv, err := kmac.New(&kmac.Params{Device: dev})
		require.NoError(t, err)
		require.NoError(t, drv.Configure(&kmac.Config{}))
		configureWrites := dev.writes

		mk, err := kmac.NewMaskedKey(v.Key, nil)
		require.NoError(t, err)
		op, err := drv.NewOperation()
		require.NoError(t, err)

		assert.ErrorIs(t, drv.StartKMAC(op, kmac.ModeKMAC256, kmac.MaxDigestWords+1, mk, nil),
			kmac.ErrDigestTooLong)
		assert.Equal(t, configureWrites, dev.writes, "no register writes after rejection")
	})

	t.Run("squeeze rejects oversized request", func(t *testing.T) {
		drv, _ := newTestDriver(t, nil)
		op := startedKMACOp(t, drv, v.Mode, 0, v.Key, "")
		require.NoError(t, drv.Absorb(op, v.Message))
		assert.ErrorIs(t, drv.Squeeze(op, make([]uint32, kmac.MaxDigestWords+1)),
			kmac.ErrDigestTooLong)
	})

	t.Run("squeeze rejects fixed-length overrun", func(t *testing.T) {
		drv, _ := newTestDriver(t, nil)
		op := startedKMACOp(t, drv, kmac.ModeKMAC256, 4, v.Key, "")
		require.NoError(t, drv.Absorb(op, v.Message))
		require.NoError(t, drv.Squeeze(op, make([]uint32, 3)))
		assert.ErrorIs(t, drv.Squeeze(op, make([]uint32, 2)), kmac.ErrDigestTooLong)
		// The remaining negotiated word is still readable.
		assert.NoError(t, drv.Squeeze(op, make([]uint32, 1)))
	})

	t.Run("fixed mode requires a length", func(t *testing.T) {
		drv, _ := newTestDriver(t, nil)
		mk, err := kmac.NewMaskedKey(v.Key, nil)
		require.NoError(t, err)
		op, err := drv.NewOperation()
		require.NoError(t, err)
		assert.ErrorIs(t, drv.StartKMAC(op, kmac.ModeKMAC256, 0, mk, nil), kmac.ErrInvalidMode)
	})
}

func TestXOFSqueezeAcrossRateBoundary(t *testing.T) {
	key := testutil.SequentialBytes(0x40, 32)
	msg := []byte("rate boundary crossing")
	drv, _ := newTestDriver(t, nil)
	op := startedKMACOp(t, drv, kmac.ModeKMACXOF256, 0, key, "")
	require.NoError(t, drv.Absorb(op, msg))

	// 80 words = 320 bytes, well past the 136-byte cSHAKE256 rate, read in
	// two uneven calls.
	first := make([]uint32, 30)
	second := make([]uint32, 50)
	require.NoError(t, drv.Squeeze(op, first))
	require.NoError(t, drv.Squeeze(op, second))

	expected := refKMAC256(key, msg, "", 80, true)
	assert.Equal(t, expected[:30], first)
	assert.Equal(t, expected[30:], second)
	assert.Equal(t, 80, op.Squeezed())
}

func TestQueueStall(t *testing.T) {
	drv, _ := newTestDriver(t, &kmac.Config{PollBudget: 8}, simulator.WithFIFOStall())
	op := startedKMACOp(t, drv, kmac.ModeKMACXOF256, 0, testutil.SequentialBytes(0, 32), "")

	err := drv.Absorb(op, make([]byte, kmac.FIFODepthBytes*2))
	assert.ErrorIs(t, err, kmac.ErrQueueStall)
	assert.True(t, op.IsPhase(kmac.PhaseError), "queue stall is fatal")

	assert.ErrorIs(t, drv.Absorb(op, []byte("x")), kmac.ErrPhaseViolation)
	drv.Reset(op)
	assert.True(t, op.IsPhase(kmac.PhaseIdle))
}

func TestStartValidation(t *testing.T) {
	v := testutil.KMACXOF256Sample
	drv, _ := newTestDriver(t, nil)

	mk, err := kmac.NewMaskedKey(v.Key, nil)
	require.NoError(t, err)

	t.Run("kmac start with cshake mode", func(t *testing.T) {
		op, err := drv.NewOperation()
		require.NoError(t, err)
		assert.ErrorIs(t, drv.StartKMAC(op, kmac.ModeCSHAKE256, 0, mk, nil), kmac.ErrInvalidMode)
	})

	t.Run("cshake start with keyed mode", func(t *testing.T) {
		op, err := drv.NewOperation()
		require.NoError(t, err)
		assert.ErrorIs(t, drv.StartCSHAKE(op, kmac.ModeKMAC256, nil, nil), kmac.ErrInvalidMode)
	})

	t.Run("missing key", func(t *testing.T) {
		op, err := drv.NewOperation()
		require.NoError(t, err)
		assert.ErrorIs(t, drv.StartKMAC(op, kmac.ModeKMAC256, 8, nil, nil), kmac.ErrKeyRequired)
	})
}

func TestNewDriverValidation(t *testing.T) {
	_, err := kmac.New(nil)
	assert.ErrorIs(t, err, kmac.ErrDeviceRequired)

	_, err = kmac.New(&kmac.Params{})
	assert.ErrorIs(t, err, kmac.ErrDeviceRequired)

	drv, err := kmac.New(&kmac.Params{Device: simulator.New()})
	require.NoError(t, err)

	_, err = drv.NewOperation()
	assert.ErrorIs(t, err, kmac.ErrNotConfigured)

	assert.ErrorIs(t, drv.Configure(nil), kmac.ErrInvalidConfig)
}

func TestOperationIDsAreUnique(t *testing.T) {
	drv, _ := newTestDriver(t, nil)
	a, err := drv.NewOperation()
	require.NoError(t, err)
	b, err := drv.NewOperation()
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}
