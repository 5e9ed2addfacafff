// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package rtuovertcp reaches a serial device through a TCP serial server.
// RTU frames are carried unchanged over the socket.
package rtuovertcp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/ffutop/ups-modbus/transport"
)

const (
	tcpTimeout = 10 * time.Second
)

// Dial connects to address and wraps the connection in a buffered stream.
// timeout bounds both the dial and every write; zero selects the default.
func Dial(ctx context.Context, address string, timeout time.Duration) (*transport.Stream, error) {
	if timeout <= 0 {
		timeout = tcpTimeout
	}

	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("modbus: failed to connect to %s: %w", address, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		// frames are small and latency matters more than throughput
		_ = tc.SetNoDelay(true)
	}
	slog.Debug("rtu-over-tcp connected", "address", address, "local", conn.LocalAddr().String())

	s := transport.NewStream(conn, nil)
	s.WriteTimeout = timeout
	return s, nil
}
