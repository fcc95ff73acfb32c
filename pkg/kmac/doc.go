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

// Package kmac drives a register-mapped Keccak MAC accelerator that computes
// KMAC and cSHAKE message authentication codes while masking its secret key
// as two boolean shares, consuming externally supplied entropy to defend
// against power and timing side channels.
//
// # Overview
//
// The driver turns the raw register interface into a safe, stateful API:
// configuration is validated and latched before any operation may start, the
// secret key is split and loaded share-wise so the unmasked key never exists
// in an addressable buffer, customization strings are framed per NIST SP
// 800-185, and a strict phase machine gates absorption and squeezing over
// the finite hardware message queue.
//
// # Lifecycle
//
//	Configured --Start--> Absorbing --Squeeze--> Squeezing --full digest--> Done
//
// Reset returns to Idle from any phase; any fatal condition (queue stall,
// entropy timeout) parks the operation in the error phase until Reset.
//
// # Usage
//
//	drv, err := kmac.New(&kmac.Params{Device: dev})
//	...
//	err = drv.Configure(&kmac.Config{
//		EntropyMode:             kmac.EntropyModeEDN,
//		EntropyRefreshThreshold: 50,
//		EntropyWaitTimer:        0xFFFF,
//		EntropyPrescaler:        1,
//	})
//	...
//	key, err := kmac.NewMaskedKey(secret, rand.Reader)
//	cust, err := kmac.NewCustomizationString("My Tagged Application")
//	op, err := drv.NewOperation()
//	err = drv.StartKMAC(op, kmac.ModeKMAC256, 16, key, cust)
//	err = drv.Absorb(op, message)
//	digest := make([]uint32, 16)
//	err = drv.Squeeze(op, digest)
//
// # Concurrency
//
// The driver is a single-threaded polling driver for a single hardware
// instance: no interrupts, no callbacks, and no internal locking. Callers
// serialize access externally; every polling loop carries an explicit
// iteration budget so no call blocks indefinitely.
package kmac
