// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ffutop/ups-modbus/internal/decode"
)

// Readings is the part of the device client the collector reads. Each call
// may refresh its group when the cached values are stale.
type Readings interface {
	Identity(ctx context.Context) (decode.Identity, error)
	Input(ctx context.Context) (decode.Input, error)
	Output(ctx context.Context) (decode.Output, error)
	Battery(ctx context.Context) (decode.Battery, error)
	Status(ctx context.Context) (decode.Status, error)
}

var (
	descUp   = prometheus.NewDesc("ups_up", "Whether every group of the last scrape was read.", nil, nil)
	descInfo = prometheus.NewDesc("ups_info", "Unit identity.", []string{"model", "firmware", "hardware"}, nil)

	descInputVoltage   = prometheus.NewDesc("ups_input_voltage_volts", "Input voltage per phase.", []string{"phase"}, nil)
	descInputFrequency = prometheus.NewDesc("ups_input_frequency_hertz", "Input frequency.", nil, nil)
	descBypassVoltage  = prometheus.NewDesc("ups_bypass_voltage_volts", "Bypass voltage.", nil, nil)

	descOutputVoltage  = prometheus.NewDesc("ups_output_voltage_volts", "Output voltage.", nil, nil)
	descOutputCurrent  = prometheus.NewDesc("ups_output_current_amperes", "Output current.", nil, nil)
	descOutputFreq     = prometheus.NewDesc("ups_output_frequency_hertz", "Output frequency.", nil, nil)
	descOutputLoad     = prometheus.NewDesc("ups_output_load_percent", "Output load.", nil, nil)
	descOutputActive   = prometheus.NewDesc("ups_output_active_power_kilowatts", "Output active power.", nil, nil)
	descOutputApparent = prometheus.NewDesc("ups_output_apparent_power_kva", "Output apparent power.", nil, nil)
	descOutputState    = prometheus.NewDesc("ups_output_state", "Output state (0 unknown, 1 off, 2 on, 3 standby).", nil, nil)

	descBatteryVoltage = prometheus.NewDesc("ups_battery_voltage_volts", "Battery voltage.", nil, nil)
	descBatteryCurrent = prometheus.NewDesc("ups_battery_current_amperes", "Battery current, negative while discharging.", nil, nil)
	descBatteryCharge  = prometheus.NewDesc("ups_battery_capacity_percent", "Battery capacity.", nil, nil)
	descBatteryRuntime = prometheus.NewDesc("ups_battery_runtime_seconds", "Estimated remaining runtime.", nil, nil)
	descBatteryTemp    = prometheus.NewDesc("ups_battery_temperature_celsius", "Battery temperature.", nil, nil)

	descSwitchState = prometheus.NewDesc("ups_switch_state", "Power path (0 unknown, 1 normal, 2 bypass, 3 battery, 4 eco, 5 maintenance).", nil, nil)
	descAlarm       = prometheus.NewDesc("ups_alarm", "Active alarms.", []string{"alarm"}, nil)
	descStatusFlags = prometheus.NewDesc("ups_status_flags", "Raw status bitmask, reserved bits included.", nil, nil)
)

var alarmLabels = []struct {
	bit  decode.Alarm
	name string
}{
	{decode.AlarmOverload, "overload"},
	{decode.AlarmOverTemperature, "over_temperature"},
	{decode.AlarmBatteryLow, "battery_low"},
	{decode.AlarmBatteryFault, "battery_fault"},
	{decode.AlarmFanFault, "fan_fault"},
	{decode.AlarmInputAbnormal, "input_abnormal"},
	{decode.AlarmOutputShort, "output_short"},
	{decode.AlarmEPO, "epo"},
}

// ReadingsCollector reads the device on scrape. The client's freshness
// cache bounds how often a scrape reaches the wire.
type ReadingsCollector struct {
	src     Readings
	timeout time.Duration
}

// NewReadingsCollector returns a collector over src. timeout bounds one scrape.
func NewReadingsCollector(src Readings, timeout time.Duration) *ReadingsCollector {
	return &ReadingsCollector{src: src, timeout: timeout}
}

func (c *ReadingsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		descUp, descInfo, descInputVoltage, descInputFrequency, descBypassVoltage,
		descOutputVoltage, descOutputCurrent, descOutputFreq, descOutputLoad, descOutputActive,
		descOutputApparent, descOutputState, descBatteryVoltage, descBatteryCurrent,
		descBatteryCharge, descBatteryRuntime, descBatteryTemp, descSwitchState, descAlarm,
		descStatusFlags,
	} {
		ch <- d
	}
}

func (c *ReadingsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	up := 1.0
	fail := func(group string, err error) {
		slog.Warn("scrape: group read failed", "group", group, "err", err)
		up = 0
	}
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	if id, err := c.src.Identity(ctx); err != nil {
		fail("identity", err)
	} else {
		gauge(descInfo, 1, id.Model, id.FirmwareVersion, id.Hardware.String())
	}

	if in, err := c.src.Input(ctx); err != nil {
		fail("input", err)
	} else {
		gauge(descInputVoltage, in.VoltageA, "A")
		gauge(descInputVoltage, in.VoltageB, "B")
		gauge(descInputVoltage, in.VoltageC, "C")
		gauge(descInputFrequency, in.Frequency)
		gauge(descBypassVoltage, in.BypassVoltage)
	}

	if out, err := c.src.Output(ctx); err != nil {
		fail("output", err)
	} else {
		gauge(descOutputVoltage, out.VoltageA)
		gauge(descOutputCurrent, out.CurrentA)
		gauge(descOutputFreq, out.Frequency)
		gauge(descOutputLoad, out.LoadPercent)
		gauge(descOutputActive, out.ActivePower)
		gauge(descOutputApparent, out.ApparentPower)
		gauge(descOutputState, float64(out.State))
	}

	if bat, err := c.src.Battery(ctx); err != nil {
		fail("battery", err)
	} else {
		gauge(descBatteryVoltage, bat.Voltage)
		gauge(descBatteryCurrent, bat.Current)
		gauge(descBatteryCharge, bat.Capacity)
		gauge(descBatteryRuntime, bat.Runtime*60)
		gauge(descBatteryTemp, bat.Temperature)
	}

	if st, err := c.src.Status(ctx); err != nil {
		fail("status", err)
	} else {
		gauge(descSwitchState, float64(st.Switch))
		for _, a := range alarmLabels {
			v := 0.0
			if st.Alarms.Has(a.bit) {
				v = 1
			}
			gauge(descAlarm, v, a.name)
		}
		gauge(descStatusFlags, float64(st.Flags))
	}

	gauge(descUp, up)
}
