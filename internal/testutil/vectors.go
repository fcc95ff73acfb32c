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

// Package testutil carries the published test vectors shared by the driver
// tests and the self-test command.
package testutil

import "github.com/jeremyhahn/go-kmac/pkg/kmac"

// KMACVector is one known-answer vector: opaque inputs and the expected
// digest words.
type KMACVector struct {
	Name                string
	Mode                kmac.Mode
	Key                 []byte
	Message             []byte
	CustomizationString string
	Digest              []uint32
}

// KMACXOF256Sample is the NIST KMACXOF256 sample from the SP 800-185
// examples document: 256-bit sequential key, 200-byte sequential message,
// customization string "My Tagged Application", 512-bit output.
//
// https://csrc.nist.gov/CSRC/media/Projects/Cryptographic-Standards-and-Guidelines/documents/examples/KMAC_samples.pdf
var KMACXOF256Sample = KMACVector{
	Name:                "KMACXOF256 sample",
	Mode:                kmac.ModeKMACXOF256,
	Key:                 SequentialBytes(0x40, 32),
	Message:             SequentialBytes(0x00, 200),
	CustomizationString: "My Tagged Application",
	Digest: []uint32{
		0x1c73bed5, 0x73d74e95, 0x59bb4628, 0xe3a8e3db,
		0x7ae7830f, 0x5944ff4b, 0xb4c2f1f2, 0xceb8ebec,
		0xc601ba67, 0x57b88a2e, 0x9b492d8d, 0x6727bbd1,
		0x90117868, 0x6a300a02, 0x1d28de97, 0x5d3030cc,
	},
}

// SequentialBytes returns n bytes counting up from start.
func SequentialBytes(start byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}
