// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

const pumpBufferSize = 256

// ErrClosed is returned by operations on a closed Stream.
var ErrClosed = errors.New("transport: port closed")

// Stream adapts a blocking io.ReadWriteCloser into a Port. A background
// goroutine copies inbound bytes into a buffer so that Available can report
// what has arrived without blocking.
type Stream struct {
	conn io.ReadWriteCloser

	// WriteTimeout bounds Write when conn supports write deadlines.
	WriteTimeout time.Duration
	// Transient reports read errors the pump should ignore, such as a
	// driver read timeout with nothing received.
	Transient func(error) bool

	mu     sync.Mutex
	buf    bytes.Buffer
	err    error
	closed bool
	done   chan struct{}
}

// NewStream starts pumping conn. transient may be nil.
func NewStream(conn io.ReadWriteCloser, transient func(error) bool) *Stream {
	s := &Stream{
		conn:      conn,
		Transient: transient,
		done:      make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *Stream) pump() {
	defer close(s.done)

	chunk := make([]byte, pumpBufferSize)
	for {
		n, err := s.conn.Read(chunk)
		if n > 0 {
			s.mu.Lock()
			s.buf.Write(chunk[:n])
			s.mu.Unlock()
		}
		if err == nil || s.isTransient(err) {
			continue
		}

		s.mu.Lock()
		if !s.closed {
			s.err = err
			slog.Debug("transport: stream reader stopped", "err", err)
		}
		s.mu.Unlock()
		return
	}
}

func (s *Stream) isTransient(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return s.Transient != nil && s.Transient(err)
}

// Write sends p to the underlying connection.
func (s *Stream) Write(p []byte) (int, error) {
	if !s.IsOpen() {
		return 0, ErrClosed
	}
	if s.WriteTimeout > 0 {
		if dc, ok := s.conn.(interface{ SetWriteDeadline(time.Time) error }); ok {
			if err := dc.SetWriteDeadline(time.Now().Add(s.WriteTimeout)); err != nil {
				return 0, fmt.Errorf("transport: set write deadline: %w", err)
			}
		}
	}
	return s.conn.Write(p)
}

// Available returns the number of buffered bytes.
func (s *Stream) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

// Read copies buffered bytes into p without waiting. It returns the pump's
// terminal error once the buffer is drained.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buf.Len() == 0 {
		if s.closed {
			return 0, ErrClosed
		}
		return 0, s.err
	}
	return s.buf.Read(p)
}

// IsOpen reports whether the stream can still exchange bytes.
func (s *Stream) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.err == nil
}

// Close closes the connection and waits for the pump to stop.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.conn.Close()
	<-s.done
	return err
}
