// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"
	"sync"
	"time"

	"github.com/ffutop/ups-modbus/modbus"
)

// Source is the inbound half of a transport.
type Source interface {
	// Available returns the number of bytes that can be read without blocking.
	Available() int
	Read(p []byte) (int, error)
}

// AdaptiveReader drains a Source once its inbound byte count stops growing.
//
// Serial drivers hand bytes over in chunks of unpredictable size and timing.
// The reader waits a per-operation base delay, then samples Available every
// PollInterval until two consecutive samples report the same non-zero count
// or the extra wait budget is spent.
type AdaptiveReader struct {
	src Source

	PollInterval time.Duration
	// Sleep is replaced in tests.
	Sleep func(time.Duration)
	// OnUnderRun, when set, is called for every read whose adaptive phase
	// took longer than one poll step.
	OnUnderRun func(operation string, waited time.Duration)

	mu           sync.Mutex
	underRuns    map[string]uint64
	lastUnderRun string
}

// NewAdaptiveReader returns a reader over src with the default poll interval.
func NewAdaptiveReader(src Source) *AdaptiveReader {
	return &AdaptiveReader{
		src:          src,
		PollInterval: DefaultPollInterval,
		Sleep:        time.Sleep,
		underRuns:    make(map[string]uint64),
	}
}

// Read waits for a response and returns every byte available. operation
// labels the under-run telemetry. It fails with modbus.ErrTimeout when
// nothing arrived within baseDelay+maxExtraDelay.
func (r *AdaptiveReader) Read(operation string, baseDelay, maxExtraDelay time.Duration) ([]byte, error) {
	step := r.PollInterval
	if step <= 0 {
		step = DefaultPollInterval
	}

	r.Sleep(baseDelay)

	var waited time.Duration
	prev := -1
	for {
		n := r.src.Available()
		if n > 0 && n == prev {
			break
		}
		prev = n
		if waited >= maxExtraDelay {
			break
		}
		d := step
		if rest := maxExtraDelay - waited; rest < d {
			d = rest
		}
		r.Sleep(d)
		waited += d
	}

	if waited > step {
		r.recordUnderRun(operation, waited)
	}

	n := r.src.Available()
	if n == 0 {
		return nil, fmt.Errorf("%w: no response to %s after %v", modbus.ErrTimeout, operation, baseDelay+waited)
	}

	buf := make([]byte, n)
	read := 0
	for read < n {
		m, err := r.src.Read(buf[read:])
		read += m
		if err != nil {
			return nil, fmt.Errorf("modbus: read %s response: %w", operation, err)
		}
		if m == 0 {
			break
		}
	}
	return buf[:read], nil
}

func (r *AdaptiveReader) recordUnderRun(operation string, waited time.Duration) {
	r.mu.Lock()
	r.underRuns[operation]++
	r.lastUnderRun = operation
	r.mu.Unlock()

	if r.OnUnderRun != nil {
		r.OnUnderRun(operation, waited)
	}
}

// UnderRuns returns a copy of the per-operation under-run counters.
func (r *AdaptiveReader) UnderRuns() map[string]uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]uint64, len(r.underRuns))
	for k, v := range r.underRuns {
		out[k] = v
	}
	return out
}

// LastUnderRun returns the operation that most recently under-ran.
func (r *AdaptiveReader) LastUnderRun() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastUnderRun
}

// FrameDelay returns the wire time of chars characters plus the 3.5
// character inter-frame gap at baudRate.
func FrameDelay(baudRate, chars int) time.Duration {
	var characterDelay, frameDelay int

	if baudRate <= 0 || baudRate > 19200 {
		characterDelay = 750
		frameDelay = 1750
	} else {
		characterDelay = 15000000 / baudRate
		frameDelay = 35000000 / baudRate
	}
	return time.Duration(characterDelay*chars+frameDelay) * time.Microsecond
}
