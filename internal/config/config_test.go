// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "log:\n  level: debug\n"), nil)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
	if cfg.Device.SlaveID != 1 || cfg.Device.Transport != "serial" || cfg.Device.Serial.BaudRate != 9600 {
		t.Errorf("device defaults = %+v", cfg.Device)
	}
	if cfg.Cache.MaxAge != 500*time.Millisecond || cfg.Reader.PollInterval != 10*time.Millisecond {
		t.Errorf("timing defaults = %v %v", cfg.Cache.MaxAge, cfg.Reader.PollInterval)
	}
	if !cfg.CRC.DiscardInvalid {
		t.Error("crc.discard_invalid should default to true")
	}
	for name, want := range DefaultGroups() {
		if got := cfg.Groups[name]; got != want {
			t.Errorf("groups.%s = %+v, want %+v", name, got, want)
		}
	}
	if cfg.Commands.Backlight.Header != "682740" || cfg.Metrics.Address != ":9105" {
		t.Errorf("commands/metrics defaults = %+v %+v", cfg.Commands, cfg.Metrics)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
device:
  slave_id: 3
  transport: tcp
  tcp:
    address: 10.0.0.5:4001
  serial:
    parity: e
groups:
  status:
    count: 5
    base_delay: 25ms
mirror:
  type: sql
  path: /var/lib/upsctl/mirror.db
`)
	cfg, err := LoadConfig(path, nil)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Device.SlaveID != 3 || cfg.Device.Tcp.Address != "10.0.0.5:4001" {
		t.Errorf("device = %+v", cfg.Device)
	}
	if cfg.Device.Serial.Parity != "E" {
		t.Errorf("parity not upper-cased: %q", cfg.Device.Serial.Parity)
	}
	st := cfg.Groups[GroupStatus]
	if st.Count != 5 || st.BaseDelay != 25*time.Millisecond || st.Start != 20100 {
		t.Errorf("partial group override = %+v", st)
	}
	if cfg.Mirror.Type != "sql" {
		t.Errorf("mirror = %+v", cfg.Mirror)
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "device:\n  slave_id: 3\n  transport: tcp\n")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("slave_id", 1, "")
	fs.String("transport", "serial", "")
	fs.Duration("max_age", 0, "")
	if err := fs.Parse([]string{"--slave_id=9", "--max_age=1s"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path, fs)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Device.SlaveID != 9 {
		t.Errorf("changed flag ignored: slave_id = %d", cfg.Device.SlaveID)
	}
	if cfg.Device.Transport != "tcp" {
		t.Errorf("unchanged flag overrode file: transport = %q", cfg.Device.Transport)
	}
	if cfg.Cache.MaxAge != time.Second {
		t.Errorf("max_age = %v", cfg.Cache.MaxAge)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Error("LoadConfig() of a missing explicit file succeeded")
	}
}

func TestCommandConfig_HeaderBytes(t *testing.T) {
	b, err := CommandConfig{Header: "68 27 40"}.HeaderBytes()
	if err != nil || len(b) != 3 || b[0] != 0x68 || b[2] != 0x40 {
		t.Errorf("HeaderBytes() = % X, %v", b, err)
	}
	if _, err := (CommandConfig{Header: ""}).HeaderBytes(); err == nil {
		t.Error("empty header accepted")
	}
	if _, err := (CommandConfig{Header: "6G"}).HeaderBytes(); err == nil {
		t.Error("invalid hex accepted")
	}
}
