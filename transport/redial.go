// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"
	"log/slog"
	"sync"
)

// Connector is implemented by ports that can (re)establish their link.
type Connector interface {
	Connect(ctx context.Context) error
}

// DialFunc opens a fresh port.
type DialFunc func(ctx context.Context) (Port, error)

// Redialer is a Port that dials lazily and drops its link after a write
// failure or a closed stream, so the next Connect reconnects.
type Redialer struct {
	dial DialFunc

	mu   sync.Mutex
	port Port
}

// NewRedialer returns a Redialer that is not yet connected.
func NewRedialer(dial DialFunc) *Redialer {
	return &Redialer{dial: dial}
}

// Connect ensures there is an open port.
func (r *Redialer) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.port != nil {
		if r.port.IsOpen() {
			return nil
		}
		slog.Debug("transport: dropping dead link")
		r.port.Close()
		r.port = nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	port, err := r.dial(ctx)
	if err != nil {
		return err
	}
	r.port = port
	return nil
}

func (r *Redialer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.port == nil {
		return 0, ErrClosed
	}
	n, err := r.port.Write(p)
	if err != nil {
		r.port.Close()
		r.port = nil
	}
	return n, err
}

func (r *Redialer) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.port == nil {
		return 0
	}
	return r.port.Available()
}

func (r *Redialer) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.port == nil {
		return 0, ErrClosed
	}
	return r.port.Read(p)
}

func (r *Redialer) IsOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.port != nil && r.port.IsOpen()
}

// Close closes the current link. A later Connect dials again.
func (r *Redialer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.port == nil {
		return nil
	}
	err := r.port.Close()
	r.port = nil
	return err
}
