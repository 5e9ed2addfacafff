// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package local

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ffutop/ups-modbus/internal/config"
	"github.com/ffutop/ups-modbus/internal/simulator"
	"github.com/ffutop/ups-modbus/modbus"
	"github.com/ffutop/ups-modbus/modbus/rtu"
	"github.com/ffutop/ups-modbus/transport"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestPort_Immediate(t *testing.T) {
	p := New(simulator.NewSeededDevice(1))

	req := rtu.EncodeRequest(1, modbus.FuncCodeReadInputRegisters, 20100, 3)
	if _, err := p.Write(req); err != nil {
		t.Fatal(err)
	}
	// 1 + 1 + (1 + 6) + 2
	if got := p.Available(); got != 11 {
		t.Fatalf("Available() = %d, want 11", got)
	}
	buf := make([]byte, 32)
	n, _ := p.Read(buf)
	f, err := rtu.DecodeFrame(buf[:n])
	if err != nil || !f.CRCValid {
		t.Fatalf("bad response % X: %v", buf[:n], err)
	}
	if p.Available() != 0 {
		t.Error("bytes left after draining")
	}
}

func TestPort_Chunked(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	p := New(simulator.NewSeededDevice(1))
	p.ChunkSize = 4
	p.ChunkDelay = 5 * time.Millisecond
	p.Now = clock.Now

	p.Write(rtu.EncodeRequest(1, modbus.FuncCodeReadInputRegisters, 20025, 8))
	// 1 + 1 + (1 + 16) + 2 = 21 bytes

	steps := []struct {
		advance time.Duration
		want    int
	}{
		{0, 0},
		{5 * time.Millisecond, 4},
		{5 * time.Millisecond, 8},
		{12 * time.Millisecond, 16},
		{10 * time.Millisecond, 21},
		{time.Second, 21},
	}
	for i, s := range steps {
		clock.Advance(s.advance)
		if got := p.Available(); got != s.want {
			t.Errorf("step %d: Available() = %d, want %d", i, got, s.want)
		}
	}
}

func TestPort_PartialReadKeepsRemainder(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	p := New(simulator.NewSeededDevice(1))
	p.ChunkSize = 3
	p.ChunkDelay = time.Millisecond
	p.Now = clock.Now

	p.Write(rtu.EncodeRequest(1, modbus.FuncCodeReadInputRegisters, 20100, 3))
	clock.Advance(2 * time.Millisecond)

	buf := make([]byte, 32)
	n, _ := p.Read(buf)
	if n != 6 {
		t.Fatalf("Read() = %d bytes, want 6", n)
	}
	clock.Advance(10 * time.Millisecond)
	if got := p.Available(); got != 5 {
		t.Errorf("Available() = %d after partial read, want 5", got)
	}
}

func TestPort_Silence(t *testing.T) {
	p := New(simulator.NewSeededDevice(1))
	p.Write(rtu.EncodeRequest(7, modbus.FuncCodeReadInputRegisters, 20100, 3))
	if p.Available() != 0 {
		t.Error("simulator answered another slave")
	}
}

func TestPort_Close(t *testing.T) {
	p := New(simulator.NewSeededDevice(1))
	p.Close()
	if p.IsOpen() {
		t.Error("closed port reports open")
	}
	if _, err := p.Write([]byte{0x01}); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Write() after close = %v", err)
	}
}

func TestOpen_Image(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")
	p, err := Open(config.LocalConfig{Image: path, ChunkSize: 8, ChunkDelay: time.Millisecond}, 3)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer p.Close()

	if p.Device().SlaveID != 3 || p.ChunkSize != 8 {
		t.Errorf("port not configured: slave %d chunk %d", p.Device().SlaveID, p.ChunkSize)
	}
	// a fresh image is all zeroes
	if p.Device().Model().InputRegisters[20025] != 0 {
		t.Error("image not empty")
	}
}
