// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
)

const usage = `Usage: upsctl [flags] [command] [args]

Commands:
  status                 read every group and print it (default)
  get <name|address>     read one register, names may be approximate
  lookup <name|address>  resolve a register name or address without touching the device
  backlight <minutes>    set the LCD backlight timer (1, 3, 5, 10, 20 or 30)
  mirror                 print the stored register image of every group
  serve                  expose readings as Prometheus metrics until interrupted

Flags:
`

// newFlagSet 定义命令行参数, 参数名与 internal/config 中的 flagKeys 对应
func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("upsctl", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}

	fs.StringP("config", "c", "", "Configuration file path.")

	// 日志配置
	fs.StringP("log_level", "v", "info", "Log verbosity level (debug, info, warn, error).")
	fs.StringP("log_file", "L", "", "Log file name ('-' for logging to STDOUT only).")

	// 设备与传输层配置
	fs.IntP("slave_id", "u", 1, "Modbus slave address of the unit.")
	fs.StringP("transport", "t", "serial", "Transport to the unit (serial, tcp, local).")
	fs.StringP("device", "p", "/dev/ttyUSB0", "Serial port device name.")
	fs.IntP("baud_rate", "s", 9600, "Serial port speed.")
	fs.String("parity", "N", "Serial parity (N, E, O).")
	fs.DurationP("timeout", "W", 500*time.Millisecond, "Serial read timeout.")
	fs.StringP("address", "a", "127.0.0.1:4001", "Serial server address when transport is tcp.")
	fs.String("image", "", "Register image replayed when transport is local, empty for a seeded unit.")

	// 缓存与本地镜像
	fs.Duration("max_age", 500*time.Millisecond, "Maximum age of cached readings.")
	fs.String("mirror", "memory", "Register mirror storage (memory, file, mmap, sql).")
	fs.String("mirror_dsn", "", "Mirror file path, or DSN for sql.")
	fs.String("registry", "", "YAML file replacing the built-in register directory.")

	// 指标服务
	fs.StringP("listen", "l", ":9105", "Metrics listen address for serve.")
	return fs
}
