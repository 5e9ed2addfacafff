// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package local provides an in-process Port backed by the device simulator.
package local

import (
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/ffutop/ups-modbus/internal/config"
	"github.com/ffutop/ups-modbus/internal/mirror"
	"github.com/ffutop/ups-modbus/internal/simulator"
	"github.com/ffutop/ups-modbus/transport"
)

// Port hands every written frame to a simulated device and releases the
// response over time, ChunkSize bytes every ChunkDelay. With either left at
// zero the whole response is available as soon as Write returns.
type Port struct {
	dev *simulator.Device

	ChunkSize  int
	ChunkDelay time.Duration
	// Now is replaced in tests.
	Now func() time.Time

	mu      sync.Mutex
	pending []byte
	readPos int
	sentAt  time.Time
	closed  bool
	image   *mirror.Mirror
}

var _ transport.Port = (*Port)(nil)

// New returns a Port in front of dev.
func New(dev *simulator.Device) *Port {
	return &Port{dev: dev, Now: time.Now}
}

// Open builds a simulated device from cfg. Without an image the device
// serves a seeded healthy unit.
func Open(cfg config.LocalConfig, slaveID byte) (*Port, error) {
	var (
		dev   *simulator.Device
		image *mirror.Mirror
	)
	if cfg.Image == "" {
		slog.Info("Initializing simulated device with seeded image")
		dev = simulator.NewSeededDevice(slaveID)
	} else {
		var err error
		image, err = mirror.Open(config.MirrorConfig{Type: "file", Path: cfg.Image})
		if err != nil {
			return nil, err
		}
		slog.Info("Initializing simulated device from image", "path", cfg.Image)
		dev = simulator.NewDevice(slaveID, image.Model())
	}

	p := New(dev)
	p.ChunkSize = cfg.ChunkSize
	p.ChunkDelay = cfg.ChunkDelay
	p.image = image
	return p, nil
}

// Device returns the simulated device.
func (p *Port) Device() *simulator.Device {
	return p.dev
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, transport.ErrClosed
	}
	resp := p.dev.Handle(b)
	slog.Debug("local: exchange", "request", hex.EncodeToString(b), "response", hex.EncodeToString(resp))

	p.pending = append(p.pending[:0], p.pending[p.readPos:]...)
	p.readPos = 0
	// unread bytes of an earlier response stay ahead of the new one
	p.pending = append(p.pending, resp...)
	p.sentAt = p.Now()
	return len(b), nil
}

// arrived returns how many pending bytes have been delivered. Caller must hold the mutex.
func (p *Port) arrived() int {
	if p.ChunkSize <= 0 || p.ChunkDelay <= 0 {
		return len(p.pending)
	}
	chunks := int(p.Now().Sub(p.sentAt) / p.ChunkDelay)
	if n := chunks * p.ChunkSize; n < len(p.pending) {
		return n
	}
	return len(p.pending)
}

func (p *Port) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := p.arrived() - p.readPos; n > 0 {
		return n
	}
	return 0
}

func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, transport.ErrClosed
	}
	end := p.arrived()
	if end <= p.readPos {
		return 0, nil
	}
	n := copy(b, p.pending[p.readPos:end])
	p.readPos += n
	return n, nil
}

func (p *Port) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

// Close releases the image, if any.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if p.image != nil {
		return p.image.Close()
	}
	return nil
}
