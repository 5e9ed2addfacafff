// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ffutop/ups-modbus/internal/config"
	"github.com/ffutop/ups-modbus/internal/mirror"
	"github.com/ffutop/ups-modbus/internal/registry"
	"github.com/ffutop/ups-modbus/internal/telemetry"
	"github.com/ffutop/ups-modbus/internal/ups"
	"github.com/ffutop/ups-modbus/modbus"
)

const scrapeTimeout = 5 * time.Second

func statusCommand(ctx context.Context, c *ups.Client) error {
	err := c.RefreshAll(ctx)
	r := c.Snapshot()

	row := func(label, format string, a ...any) {
		fmt.Printf("%-14s"+format+"\n", append([]any{label + ":"}, a...)...)
	}
	row("Model", "%s", r.Identity.Model)
	row("Firmware", "%s", r.Identity.FirmwareVersion)
	row("Hardware", "%s", r.Identity.Hardware)
	row("Input", "%.1f V / %.1f V / %.1f V, %.2f Hz (bypass %.1f V, %.2f Hz)",
		r.Input.VoltageA, r.Input.VoltageB, r.Input.VoltageC, r.Input.Frequency,
		r.Input.BypassVoltage, r.Input.BypassFrequency)
	row("Output", "%.1f V, %.1f A, %.2f Hz, %s",
		r.Output.VoltageA, r.Output.CurrentA, r.Output.Frequency, r.Output.State)
	row("Load", "%.0f%%, %.1f kW / %.1f kVA, PF %.2f",
		r.Output.LoadPercent, r.Output.ActivePower, r.Output.ApparentPower, r.Output.PowerFactor)
	row("Battery", "%.1f V, %.1f A, %.0f%%, %.0f min, %.1f °C, %s",
		r.Battery.Voltage, r.Battery.Current, r.Battery.Capacity, r.Battery.Runtime,
		r.Battery.Temperature, r.Battery.State)
	row("Power path", "%s", r.Status.Switch)
	row("Alarms", "%s", r.Status.Alarms)
	row("Status", "%s", r.Status.Flags)

	if runs := c.UnderRuns(); len(runs) > 0 {
		slog.Debug("Buffer under-runs", "counts", runs)
	}
	return err
}

// resolve turns a register address or a possibly misspelt name into an entry.
func resolve(dir *registry.Directory, arg string) (registry.Entry, error) {
	if n, err := strconv.ParseUint(arg, 0, 16); err == nil {
		addr := uint16(n)
		return registry.Entry{Address: addr, Name: dir.LookupByAddress(addr)}, nil
	}
	e, exact, ok := dir.Resolve(arg)
	if !ok {
		return e, fmt.Errorf("%w: no register matches %q", modbus.ErrInvalidArgument, arg)
	}
	if !exact {
		fmt.Fprintf(os.Stderr, "no register named %q, using %q (distance %d)\n",
			arg, e.Name, registry.Distance(strings.ToLower(arg), strings.ToLower(e.Name)))
	}
	return e, nil
}

// functionCodeFor picks the read function for addr: the one of the group
// containing it, else holding registers below the measurement blocks.
func functionCodeFor(c *ups.Client, addr uint16) byte {
	for _, g := range ups.Groups {
		spec := c.Spec(g)
		if addr >= spec.Start && uint32(addr) < uint32(spec.Start)+uint32(spec.Count) {
			return spec.FunctionCode
		}
	}
	if addr < c.Spec(ups.GroupInput).Start {
		return modbus.FuncCodeReadHoldingRegisters
	}
	return modbus.FuncCodeReadInputRegisters
}

func getCommand(ctx context.Context, c *ups.Client, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: get <name|address>")
	}
	e, err := resolve(c.Directory(), args[0])
	if err != nil {
		return err
	}
	regs, err := c.ReadRegisters(ctx, functionCodeFor(c, e.Address), e.Address, 1)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d): %d (0x%04X)\n", e.Name, e.Address, regs[0], regs[0])
	return nil
}

func lookupCommand(dir *registry.Directory, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: lookup <name|address>")
	}
	e, err := resolve(dir, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%d\t%s\n", e.Address, e.Name)
	return nil
}

func backlightCommand(ctx context.Context, c *ups.Client, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: backlight <minutes>")
	}
	minutes, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: %q is not a number of minutes", modbus.ErrInvalidArgument, args[0])
	}
	if err := c.SetBacklightTimer(ctx, minutes); err != nil {
		return err
	}
	fmt.Printf("Backlight timer set to %d min\n", minutes)
	return nil
}

// mirrorCommand prints the persisted image of every configured group.
func mirrorCommand(cfg *config.Config) error {
	if cfg.Mirror.Type == "" || cfg.Mirror.Type == "memory" {
		return errors.New("mirror type is memory, nothing is persisted")
	}
	mr, err := mirror.Open(cfg.Mirror)
	if err != nil {
		return err
	}
	defer mr.Close()

	for _, name := range config.GroupNames {
		gc := cfg.Groups[name]
		table, err := mirror.TableFor(byte(gc.FunctionCode))
		if err != nil {
			return err
		}
		regs, err := mr.Registers(table, uint16(gc.Start), uint16(gc.Count))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		words := make([]string, len(regs))
		for i, v := range regs {
			words[i] = fmt.Sprintf("%04X", v)
		}
		fmt.Printf("%-9s %s[%d]: %s\n", name, table, gc.Start, strings.Join(words, " "))
	}
	return nil
}

// serveCommand exposes the readings on /metrics until SIGINT or SIGTERM.
func serveCommand(ctx context.Context, c *ups.Client, reg *prometheus.Registry, addr string) error {
	reg.MustRegister(
		telemetry.NewReadingsCollector(c, scrapeTimeout),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: scrapeTimeout}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Serving metrics", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	// Wait for Signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-sigChan:
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("Goodbye.")
	return nil
}
