// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package decode

// Raw values outside an enumeration decode to its Unknown member.

type HardwareType uint8

const (
	HardwareUnknown HardwareType = iota
	HardwareTower
	HardwareRackMount
	HardwareModular
)

var hardwareNames = [...]string{"Unknown", "Tower", "RackMount", "Modular"}

func HardwareTypeOf(raw uint16) HardwareType {
	if int(raw) >= len(hardwareNames) {
		return HardwareUnknown
	}
	return HardwareType(raw)
}

func (h HardwareType) String() string { return nameOf(hardwareNames[:], int(h)) }

// SwitchState is the power path the unit is currently on.
type SwitchState uint8

const (
	SwitchUnknown SwitchState = iota
	SwitchNormal
	SwitchBypass
	SwitchBattery
	SwitchEcoMode
	SwitchMaintenance
)

var switchNames = [...]string{"Unknown", "Normal", "Bypass", "Battery", "EcoMode", "Maintenance"}

func SwitchStateOf(raw uint16) SwitchState {
	if int(raw) >= len(switchNames) {
		return SwitchUnknown
	}
	return SwitchState(raw)
}

func (s SwitchState) String() string { return nameOf(switchNames[:], int(s)) }

type OutputState uint8

const (
	OutputUnknown OutputState = iota
	OutputOff
	OutputOn
	OutputStandby
)

var outputNames = [...]string{"Unknown", "Off", "On", "Standby"}

func OutputStateOf(raw uint16) OutputState {
	if int(raw) >= len(outputNames) {
		return OutputUnknown
	}
	return OutputState(raw)
}

func (o OutputState) String() string { return nameOf(outputNames[:], int(o)) }

type BatteryState uint8

const (
	BatteryUnknown BatteryState = iota
	BatteryIdle
	BatteryCharging
	BatteryDischarging
	BatteryFloat
	BatteryFault
)

var batteryNames = [...]string{"Unknown", "Idle", "Charging", "Discharging", "Float", "Fault"}

func BatteryStateOf(raw uint16) BatteryState {
	if int(raw) >= len(batteryNames) {
		return BatteryUnknown
	}
	return BatteryState(raw)
}

func (b BatteryState) String() string { return nameOf(batteryNames[:], int(b)) }

func nameOf(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return names[0]
	}
	return names[i]
}
