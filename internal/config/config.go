// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Query group names, in polling order.
const (
	GroupIdentity = "identity"
	GroupInput    = "input"
	GroupOutput   = "output"
	GroupBattery  = "battery"
	GroupStatus   = "status"
)

var GroupNames = []string{GroupIdentity, GroupInput, GroupOutput, GroupBattery, GroupStatus}

// Config defines the global configuration structure
type Config struct {
	Log      LogConfig              `mapstructure:"log"`
	Device   DeviceConfig           `mapstructure:"device"`
	Cache    CacheConfig            `mapstructure:"cache"`
	Reader   ReaderConfig           `mapstructure:"reader"`
	CRC      CRCConfig              `mapstructure:"crc"`
	Groups   map[string]GroupConfig `mapstructure:"groups"`
	Commands CommandsConfig         `mapstructure:"commands"`
	Registry RegistryConfig         `mapstructure:"registry"`
	Mirror   MirrorConfig           `mapstructure:"mirror"`
	Metrics  MetricsConfig          `mapstructure:"metrics"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// DeviceConfig defines how the unit is reached
type DeviceConfig struct {
	SlaveID      int           `mapstructure:"slave_id"`
	Transport    string        `mapstructure:"transport"` // "serial", "tcp", "local"
	Serial       SerialConfig  `mapstructure:"serial"`    // Used if Transport is "serial"
	Tcp          TcpConfig     `mapstructure:"tcp"`       // Used if Transport is "tcp"
	Local        LocalConfig   `mapstructure:"local"`     // Used if Transport is "local"
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LocalConfig defines the simulated device
type LocalConfig struct {
	Image      string        `mapstructure:"image"` // register image file, empty for a seeded unit
	ChunkSize  int           `mapstructure:"chunk_size"`
	ChunkDelay time.Duration `mapstructure:"chunk_delay"`
}

// TcpConfig defines a serial server reached over TCP
type TcpConfig struct {
	Address string        `mapstructure:"address"` // e.g. "192.168.1.100:4001"
	Timeout time.Duration `mapstructure:"timeout"`
}

// SerialConfig defines RTU settings
type SerialConfig struct {
	Device   string        `mapstructure:"device"`
	BaudRate int           `mapstructure:"baud_rate"`
	DataBits int           `mapstructure:"data_bits"`
	Parity   string        `mapstructure:"parity"`
	StopBits int           `mapstructure:"stop_bits"`
	Timeout  time.Duration `mapstructure:"timeout"`

	// RS485 specific
	RS485              bool          `mapstructure:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

type CacheConfig struct {
	MaxAge time.Duration `mapstructure:"max_age"`
}

// ReaderConfig tunes the adaptive response reader
type ReaderConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	MaxExtraDelay time.Duration `mapstructure:"max_extra_delay"`
}

type CRCConfig struct {
	DiscardInvalid bool `mapstructure:"discard_invalid"` // reject responses failing the CRC check
}

// GroupConfig defines one register block read in a single exchange
type GroupConfig struct {
	FunctionCode int           `mapstructure:"function_code"`
	Start        int           `mapstructure:"start"`
	Count        int           `mapstructure:"count"`
	MinRegisters int           `mapstructure:"min_registers"`
	BaseDelay    time.Duration `mapstructure:"base_delay"`
}

type CommandsConfig struct {
	Backlight CommandConfig `mapstructure:"backlight"`
}

// CommandConfig defines a vendor control command
type CommandConfig struct {
	Header    string        `mapstructure:"header"` // hex, first byte is the function code
	BaseDelay time.Duration `mapstructure:"base_delay"`
}

// HeaderBytes decodes the hex header.
func (c CommandConfig) HeaderBytes() ([]byte, error) {
	b, err := hex.DecodeString(strings.ReplaceAll(c.Header, " ", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid command header %q: %w", c.Header, err)
	}
	if len(b) == 0 {
		return nil, errors.New("empty command header")
	}
	return b, nil
}

type RegistryConfig struct {
	File string `mapstructure:"file"` // optional YAML replacing the built-in directory
}

// MirrorConfig defines register image storage
type MirrorConfig struct {
	Type string `mapstructure:"type"` // "memory", "file", "mmap", "sql"
	Path string `mapstructure:"path"` // File path, or DSN for "sql"
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"log_level":  "log.level",
	"log_file":   "log.file",
	"slave_id":   "device.slave_id",
	"transport":  "device.transport",
	"device":     "device.serial.device",
	"baud_rate":  "device.serial.baud_rate",
	"parity":     "device.serial.parity",
	"timeout":    "device.serial.timeout",
	"address":    "device.tcp.address",
	"image":      "device.local.image",
	"max_age":    "cache.max_age",
	"mirror":     "mirror.type",
	"mirror_dsn": "mirror.path",
	"registry":   "registry.file",
	"listen":     "metrics.address",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("device.slave_id", 1)
	v.SetDefault("device.transport", "serial")
	v.SetDefault("device.serial.device", "/dev/ttyUSB0")
	v.SetDefault("device.serial.baud_rate", 9600)
	v.SetDefault("device.serial.data_bits", 8)
	v.SetDefault("device.serial.parity", "N")
	v.SetDefault("device.serial.stop_bits", 1)
	v.SetDefault("device.serial.timeout", 500*time.Millisecond)
	v.SetDefault("device.tcp.address", "127.0.0.1:4001")
	v.SetDefault("device.tcp.timeout", 2*time.Second)
	v.SetDefault("device.local.image", "")
	v.SetDefault("device.local.chunk_size", 0)
	v.SetDefault("device.local.chunk_delay", 0)
	v.SetDefault("device.write_timeout", 500*time.Millisecond)

	v.SetDefault("cache.max_age", 500*time.Millisecond)
	v.SetDefault("reader.poll_interval", 10*time.Millisecond)
	v.SetDefault("reader.max_extra_delay", 500*time.Millisecond)
	v.SetDefault("crc.discard_invalid", true)

	for name, g := range DefaultGroups() {
		prefix := "groups." + name + "."
		v.SetDefault(prefix+"function_code", g.FunctionCode)
		v.SetDefault(prefix+"start", g.Start)
		v.SetDefault(prefix+"count", g.Count)
		v.SetDefault(prefix+"min_registers", g.MinRegisters)
		v.SetDefault(prefix+"base_delay", g.BaseDelay)
	}

	v.SetDefault("commands.backlight.header", "682740")
	v.SetDefault("commands.backlight.base_delay", 40*time.Millisecond)

	v.SetDefault("registry.file", "")
	v.SetDefault("mirror.type", "memory")
	v.SetDefault("mirror.path", "")
	v.SetDefault("metrics.address", ":9105")
}

// DefaultGroups returns the register blocks of the standard unit.
func DefaultGroups() map[string]GroupConfig {
	return map[string]GroupConfig{
		GroupIdentity: {FunctionCode: 3, Start: 10000, Count: 12, MinRegisters: 12, BaseDelay: 150 * time.Millisecond},
		GroupInput:    {FunctionCode: 4, Start: 20000, Count: 6, MinRegisters: 6, BaseDelay: 60 * time.Millisecond},
		GroupOutput:   {FunctionCode: 4, Start: 20025, Count: 8, MinRegisters: 8, BaseDelay: 60 * time.Millisecond},
		GroupBattery:  {FunctionCode: 4, Start: 20050, Count: 6, MinRegisters: 6, BaseDelay: 60 * time.Millisecond},
		GroupStatus:   {FunctionCode: 4, Start: 20100, Count: 3, MinRegisters: 3, BaseDelay: 40 * time.Millisecond},
	}
}

// LoadConfig loads configuration from file, defaults and the changed flags
// of fs. fs may be nil. A missing default config file is not an error.
func LoadConfig(configFile string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/upsctl/")
		v.AddConfigPath("$HOME/.upsctl")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	fixupSerial(&config.Device.Serial)

	return &config, nil
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.Timeout == 0 {
		s.Timeout = 500 * time.Millisecond
	}
}
