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

package simulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-kmac/pkg/kmac"
)

func TestLeftEncode(t *testing.T) {
	assert.Equal(t, []byte{0x01, 0x00}, leftEncode(0))
	assert.Equal(t, []byte{0x01, 0x88}, leftEncode(136))
	assert.Equal(t, []byte{0x02, 0x01, 0x00}, leftEncode(256))
}

func TestBytepad(t *testing.T) {
	out := bytepad([]byte{0xAA, 0xBB}, 136)
	require.Len(t, out, 136)
	assert.Equal(t, []byte{0x01, 0x88, 0xAA, 0xBB}, out[:4])
	for _, b := range out[4:] {
		assert.Zero(t, b)
	}

	// Already aligned input gets no extra block.
	aligned := bytepad(make([]byte, 134), 136)
	assert.Len(t, aligned, 136)
}

func TestDecodeEncodedString(t *testing.T) {
	val, rest, err := decodeEncodedString([]byte{0x01, 0x20, 'K', 'M', 'A', 'C', 0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte("KMAC"), val)

	val, _, err = decodeEncodedString(rest)
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestDecodeEncodedStringMalformed(t *testing.T) {
	cases := [][]byte{
		nil,                      // empty frame
		{0x00},                   // zero length-of-length
		{0x09, 0x01},             // length-of-length out of range
		{0x02, 0x01},             // truncated length
		{0x01, 0x21, 'K'},        // bit count not byte aligned
		{0x01, 0x20, 'K', 'M'},   // payload truncated
	}
	for _, buf := range cases {
		_, _, err := decodeEncodedString(buf)
		assert.Error(t, err, "%x", buf)
	}
}

func TestQueueOverflowLatchesErrCode(t *testing.T) {
	s := New(WithFIFOStall())
	s.Write32(kmac.RegCfg, 0) // cshake128, entropy off
	s.Write32(kmac.RegPrefix, 0x00010001)
	s.Write32(kmac.RegCmd, kmac.CmdStart)
	require.Equal(t, kmac.ErrCodeNone, s.ErrCode())

	// Push past the queue depth without an intervening status drain.
	for i := 0; i <= kmac.FIFODepthBytes; i++ {
		s.Write8(kmac.RegMsgFIFO, byte(i))
	}
	assert.Equal(t, kmac.ErrCodeFIFOOverflow, s.ErrCode())
}

func TestWriteOutsideAbsorbLatchesErrCode(t *testing.T) {
	s := New()
	s.Write8(kmac.RegMsgFIFO, 0xAB)
	assert.Equal(t, kmac.ErrCodeFIFOOverflow, s.ErrCode())
}

func TestStatusPhaseBits(t *testing.T) {
	s := New()
	assert.NotZero(t, s.Read32(kmac.RegStatus)&kmac.StatusIdleBit)

	s.Write32(kmac.RegCfg, 0)
	s.Write32(kmac.RegPrefix, 0x00010001)
	s.Write32(kmac.RegCmd, kmac.CmdStart)
	assert.NotZero(t, s.Read32(kmac.RegStatus)&kmac.StatusAbsorbBit)

	s.Write32(kmac.RegCmd, kmac.CmdProcess)
	assert.NotZero(t, s.Read32(kmac.RegStatus)&kmac.StatusSqueezeBit)

	s.Write32(kmac.RegCmd, kmac.CmdDone)
	assert.NotZero(t, s.Read32(kmac.RegStatus)&kmac.StatusIdleBit)
}

func TestSideloadKeyIsCopied(t *testing.T) {
	key := []byte{1, 2, 3, 4}
	s := New()
	s.SideloadKey(key)
	key[0] = 0xFF

	s.opts.Sideload = true
	assert.Equal(t, []byte{1, 2, 3, 4}, s.keyBytes())
}
