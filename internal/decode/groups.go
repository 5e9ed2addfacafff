// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package decode

// Identity is read once; it does not change while the unit runs.
type Identity struct {
	Model           string
	FirmwareVersion string
	Hardware        HardwareType
}

type Input struct {
	VoltageA        float64 // V
	VoltageB        float64 // V
	VoltageC        float64 // V
	Frequency       float64 // Hz
	BypassVoltage   float64 // V
	BypassFrequency float64 // Hz
}

type Output struct {
	VoltageA      float64 // V
	CurrentA      float64 // A
	Frequency     float64 // Hz
	LoadPercent   float64
	ActivePower   float64 // kW
	ApparentPower float64 // kVA
	PowerFactor   float64
	State         OutputState
}

type Battery struct {
	Voltage     float64 // V
	Current     float64 // A, negative while discharging
	Capacity    float64 // %
	Runtime     float64 // minutes
	Temperature float64 // °C
	State       BatteryState
}

type Status struct {
	Switch SwitchState
	Alarms Alarm
	Flags  StatusFlag
}

// Register layout of the identity block.
const (
	identityModelFrom   = 1
	identityModelTo     = 17
	identityVersionReg  = 8
	identityHardwareReg = 11
	identityRegisters   = 12
)

var inputTable = []Scaled[Input]{
	{Index: 0, Scale: 0.1, Field: func(v *Input) *float64 { return &v.VoltageA }},
	{Index: 1, Scale: 0.1, Field: func(v *Input) *float64 { return &v.VoltageB }},
	{Index: 2, Scale: 0.1, Field: func(v *Input) *float64 { return &v.VoltageC }},
	{Index: 3, Scale: 0.01, Field: func(v *Input) *float64 { return &v.Frequency }},
	{Index: 4, Scale: 0.1, Field: func(v *Input) *float64 { return &v.BypassVoltage }},
	{Index: 5, Scale: 0.01, Field: func(v *Input) *float64 { return &v.BypassFrequency }},
}

var outputTable = []Scaled[Output]{
	{Index: 0, Scale: 0.1, Field: func(v *Output) *float64 { return &v.VoltageA }},
	{Index: 1, Scale: 0.1, Field: func(v *Output) *float64 { return &v.CurrentA }},
	{Index: 2, Scale: 0.01, Field: func(v *Output) *float64 { return &v.Frequency }},
	{Index: 3, Scale: 1, Field: func(v *Output) *float64 { return &v.LoadPercent }},
	{Index: 4, Scale: 0.1, Field: func(v *Output) *float64 { return &v.ActivePower }},
	{Index: 5, Scale: 0.1, Field: func(v *Output) *float64 { return &v.ApparentPower }},
	{Index: 6, Scale: 0.01, Field: func(v *Output) *float64 { return &v.PowerFactor }},
}

const outputStateReg = 7

var batteryTable = []Scaled[Battery]{
	{Index: 0, Scale: 0.1, Field: func(v *Battery) *float64 { return &v.Voltage }},
	{Index: 1, Scale: 0.1, Signed: true, Field: func(v *Battery) *float64 { return &v.Current }},
	{Index: 2, Scale: 1, Field: func(v *Battery) *float64 { return &v.Capacity }},
	{Index: 3, Scale: 1, Field: func(v *Battery) *float64 { return &v.Runtime }},
	{Index: 4, Scale: 0.1, Signed: true, Field: func(v *Battery) *float64 { return &v.Temperature }},
}

const batteryStateReg = 5

// Minimum register counts per group.
var (
	MinIdentity = identityRegisters
	MinInput    = MinRegisters(inputTable)
	MinOutput   = outputStateReg + 1
	MinBattery  = batteryStateReg + 1
	MinStatus   = 3
)

// DecodeIdentity decodes the identity block. data is the raw frame payload,
// byte-count prefix included; the model string is not register aligned.
func DecodeIdentity(data []byte, regs []uint16) (Identity, error) {
	if err := Require("identity", regs, MinIdentity); err != nil {
		return Identity{}, err
	}
	return Identity{
		Model:           ASCII(data, identityModelFrom, identityModelTo),
		FirmwareVersion: Version(regs[identityVersionReg : identityVersionReg+3]...),
		Hardware:        HardwareTypeOf(regs[identityHardwareReg]),
	}, nil
}

func DecodeInput(regs []uint16) (Input, error) {
	var v Input
	if err := Require("input", regs, MinInput); err != nil {
		return v, err
	}
	Apply(&v, regs, inputTable)
	return v, nil
}

func DecodeOutput(regs []uint16) (Output, error) {
	var v Output
	if err := Require("output", regs, MinOutput); err != nil {
		return v, err
	}
	Apply(&v, regs, outputTable)
	v.State = OutputStateOf(regs[outputStateReg])
	return v, nil
}

func DecodeBattery(regs []uint16) (Battery, error) {
	var v Battery
	if err := Require("battery", regs, MinBattery); err != nil {
		return v, err
	}
	Apply(&v, regs, batteryTable)
	v.State = BatteryStateOf(regs[batteryStateReg])
	return v, nil
}

func DecodeStatus(regs []uint16) (Status, error) {
	if err := Require("status", regs, MinStatus); err != nil {
		return Status{}, err
	}
	return Status{
		Switch: SwitchStateOf(regs[0]),
		Alarms: Alarm(regs[1]),
		Flags:  StatusFlag(regs[2]),
	}, nil
}
