// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStream_BuffersInbound(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	s := NewStream(local, nil)
	defer s.Close()

	if _, err := remote.Write([]byte{0x01, 0x04, 0x02}); err != nil {
		t.Fatal(err)
	}
	if _, err := remote.Write([]byte{0x00, 0x2A}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return s.Available() == 5 })

	buf := make([]byte, 3)
	n, err := s.Read(buf)
	if err != nil || n != 3 {
		t.Fatalf("Read() = %d, %v", n, err)
	}
	if s.Available() != 2 {
		t.Errorf("Available() = %d after partial read, want 2", s.Available())
	}

	rest := make([]byte, 8)
	n, _ = s.Read(rest)
	if !bytes.Equal(append(buf, rest[:n]...), []byte{0x01, 0x04, 0x02, 0x00, 0x2A}) {
		t.Errorf("bytes out of order")
	}

	n, err = s.Read(rest)
	if n != 0 || err != nil {
		t.Errorf("Read() on empty buffer = %d, %v; want 0, nil", n, err)
	}
}

func TestStream_Write(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	s := NewStream(local, nil)
	s.WriteTimeout = time.Second
	defer s.Close()

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 8)
		n, _ := io.ReadFull(remote, buf)
		got <- buf[:n]
	}()

	req := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01, 0x84, 0x0A}
	if _, err := s.Write(req); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if b := <-got; !bytes.Equal(b, req) {
		t.Errorf("remote received % X", b)
	}
}

func TestStream_RemoteClose(t *testing.T) {
	local, remote := net.Pipe()
	s := NewStream(local, nil)
	defer s.Close()

	remote.Close()
	waitFor(t, func() bool { return !s.IsOpen() })

	if _, err := s.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Errorf("Read() error = %v, want io.EOF", err)
	}
}

func TestStream_Close(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	s := NewStream(local, nil)
	if !s.IsOpen() {
		t.Fatal("new stream is not open")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if s.IsOpen() {
		t.Error("closed stream reports open")
	}
	if _, err := s.Write([]byte{0x01}); !errors.Is(err, ErrClosed) {
		t.Errorf("Write() after close = %v, want ErrClosed", err)
	}
	if _, err := s.Read(make([]byte, 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("Read() after close = %v, want ErrClosed", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestStream_TransientErrorsAreIgnored(t *testing.T) {
	errFlaky := errors.New("flaky")
	conn := &flakyConn{errs: []error{errFlaky, errFlaky}, data: []byte{0xAB}}

	s := NewStream(conn, func(err error) bool { return errors.Is(err, errFlaky) })
	waitFor(t, func() bool { return s.Available() == 1 })
	if !s.IsOpen() {
		t.Error("transient errors closed the stream")
	}
	s.Close()
}

// flakyConn returns the scripted errors, then data once, then blocks until closed.
type flakyConn struct {
	errs   []error
	data   []byte
	closed chan struct{}
}

func (c *flakyConn) Read(p []byte) (int, error) {
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return 0, err
	}
	if len(c.data) > 0 {
		n := copy(p, c.data)
		c.data = c.data[n:]
		return n, nil
	}
	if c.closed == nil {
		c.closed = make(chan struct{})
	}
	<-c.closed
	return 0, io.EOF
}

func (c *flakyConn) Write(p []byte) (int, error) { return len(p), nil }

func (c *flakyConn) Close() error {
	if c.closed != nil {
		close(c.closed)
	}
	return nil
}
