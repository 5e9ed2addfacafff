// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/grid-x/serial"

	"github.com/ffutop/ups-modbus/internal/config"
)

func TestSerialConfig(t *testing.T) {
	cfg := config.SerialConfig{
		Device:             "/dev/ttyUSB0",
		BaudRate:           9600,
		DataBits:           8,
		Parity:             "N",
		StopBits:           1,
		RS485:              true,
		DelayRtsBeforeSend: 2 * time.Millisecond,
		RtsHighDuringSend:  true,
	}

	sc := SerialConfig(cfg)
	if sc.Address != "/dev/ttyUSB0" || sc.BaudRate != 9600 || sc.Parity != "N" {
		t.Errorf("unexpected mapping: %+v", sc)
	}
	if sc.Timeout != serialTimeout {
		t.Errorf("Timeout = %v, want default %v", sc.Timeout, serialTimeout)
	}
	if !sc.RS485.Enabled || sc.RS485.DelayRtsBeforeSend != 2*time.Millisecond || !sc.RS485.RtsHighDuringSend {
		t.Errorf("RS485 not mapped: %+v", sc.RS485)
	}

	cfg.RS485 = false
	if SerialConfig(cfg).RS485.Enabled {
		t.Error("RS485 enabled without being configured")
	}
}

func TestOpen(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	orig := openFunc
	defer func() { openFunc = orig }()

	var opened *serial.Config
	openFunc = func(c *serial.Config) (io.ReadWriteCloser, error) {
		opened = c
		return local, nil
	}

	s, err := Open(config.SerialConfig{Device: "/dev/ttyS1", BaudRate: 19200})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if opened == nil || opened.Address != "/dev/ttyS1" {
		t.Fatalf("driver opened with %+v", opened)
	}
	if !s.IsOpen() {
		t.Error("stream not open")
	}
}

func TestOpen_Error(t *testing.T) {
	orig := openFunc
	defer func() { openFunc = orig }()

	errBusy := errors.New("device busy")
	openFunc = func(c *serial.Config) (io.ReadWriteCloser, error) { return nil, errBusy }

	if _, err := Open(config.SerialConfig{Device: "/dev/ttyS9"}); !errors.Is(err, errBusy) {
		t.Errorf("Open() error = %v, want wrapped errBusy", err)
	}
}

func TestIsTimeout(t *testing.T) {
	if !isTimeout(fmt.Errorf("read: %w", serial.ErrTimeout)) {
		t.Error("wrapped serial timeout not recognised")
	}
	if isTimeout(io.EOF) {
		t.Error("EOF treated as timeout")
	}
}
