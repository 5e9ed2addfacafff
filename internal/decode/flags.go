// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package decode

import (
	"fmt"
	"strings"
)

// Alarm is the active alarm bitmask. Bits without a name are kept.
type Alarm uint16

const (
	AlarmOverload Alarm = 1 << iota
	AlarmOverTemperature
	AlarmBatteryLow
	AlarmBatteryFault
	AlarmFanFault
	AlarmInputAbnormal
	AlarmOutputShort
	AlarmEPO

	alarmKnown = AlarmOverload | AlarmOverTemperature | AlarmBatteryLow | AlarmBatteryFault |
		AlarmFanFault | AlarmInputAbnormal | AlarmOutputShort | AlarmEPO
)

var alarmNames = []string{"Overload", "OverTemperature", "BatteryLow", "BatteryFault", "FanFault", "InputAbnormal", "OutputShort", "EPO"}

// Has reports whether every bit of f is set.
func (a Alarm) Has(f Alarm) bool { return a&f == f }

// Reserved returns the set bits that have no name.
func (a Alarm) Reserved() uint16 { return uint16(a &^ alarmKnown) }

func (a Alarm) String() string { return flagString(uint16(a), alarmNames, a.Reserved()) }

// StatusFlag is the unit status bitmask. Bits without a name are kept.
type StatusFlag uint16

const (
	StatusUtilityFail StatusFlag = 1 << iota
	StatusBatteryLow
	StatusBypassActive
	StatusUPSFailed
	StatusShutdownActive
	StatusTestInProgress
	StatusBeeperOn

	statusKnown = StatusUtilityFail | StatusBatteryLow | StatusBypassActive | StatusUPSFailed |
		StatusShutdownActive | StatusTestInProgress | StatusBeeperOn
)

var statusNames = []string{"UtilityFail", "BatteryLow", "BypassActive", "UPSFailed", "ShutdownActive", "TestInProgress", "BeeperOn"}

func (s StatusFlag) Has(f StatusFlag) bool { return s&f == f }

func (s StatusFlag) Reserved() uint16 { return uint16(s &^ statusKnown) }

func (s StatusFlag) String() string { return flagString(uint16(s), statusNames, s.Reserved()) }

func flagString(v uint16, names []string, reserved uint16) string {
	if v == 0 {
		return "none"
	}
	var parts []string
	for i, name := range names {
		if v&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	if reserved != 0 {
		parts = append(parts, fmt.Sprintf("0x%04X", reserved))
	}
	return strings.Join(parts, "|")
}
