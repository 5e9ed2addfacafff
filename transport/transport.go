// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

// Port is the byte-stream boundary the device client talks through.
// Any full-duplex stream satisfies it: a serial line, a TCP socket to a
// serial server, or an in-process simulator.
//
// Write and Read must return within a bounded time. Read never waits for
// bytes that have not arrived yet; callers use Available to decide when a
// response is complete.
type Port interface {
	Write(p []byte) (int, error)
	// Available returns the number of received bytes not yet read.
	Available() int
	Read(p []byte) (int, error)
	IsOpen() bool
	Close() error
}
