// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dot

import (
	"fmt"
	"strconv"
	"strings"
)

// PayloadMode is the measurement mode byte written to the control characteristic.
type PayloadMode byte

const (
	ModeHighFidelityWithMag    PayloadMode = 1
	ModeExtendedQuaternion     PayloadMode = 2
	ModeCompleteQuaternion     PayloadMode = 3
	ModeOrientationEuler       PayloadMode = 4
	ModeOrientationQuaternion  PayloadMode = 5
	ModeFreeAcceleration       PayloadMode = 6
	ModeExtendedEuler          PayloadMode = 7
	ModeCompleteEuler          PayloadMode = 16
	ModeHighFidelity           PayloadMode = 17
	ModeDeltaQuantitiesWithMag PayloadMode = 18
	ModeDeltaQuantities        PayloadMode = 19
	ModeRateQuantitiesWithMag  PayloadMode = 20
	ModeRateQuantities         PayloadMode = 21
	ModeCustom1                PayloadMode = 22
	ModeCustom2                PayloadMode = 23
	ModeCustom3                PayloadMode = 24
	ModeCustom4                PayloadMode = 25
	ModeCustom5                PayloadMode = 26
)

// PayloadSize names the three notification characteristics.
type PayloadSize int

const (
	PayloadShort  PayloadSize = iota + 1 // 20 bytes
	PayloadMedium                        // 40 bytes
	PayloadLong                          // 63 bytes
)

type modeInfo struct {
	name string
	size PayloadSize
}

var modes = map[PayloadMode]modeInfo{
	ModeHighFidelityWithMag:    {"high_fidelity_with_mag", PayloadMedium},
	ModeExtendedQuaternion:     {"extended_quaternion", PayloadMedium},
	ModeCompleteQuaternion:     {"complete_quaternion", PayloadMedium},
	ModeOrientationEuler:       {"orientation_euler", PayloadShort},
	ModeOrientationQuaternion:  {"orientation_quaternion", PayloadShort},
	ModeFreeAcceleration:       {"free_acceleration", PayloadShort},
	ModeExtendedEuler:          {"extended_euler", PayloadMedium},
	ModeCompleteEuler:          {"complete_euler", PayloadMedium},
	ModeHighFidelity:           {"high_fidelity", PayloadMedium},
	ModeDeltaQuantitiesWithMag: {"delta_quantities_with_mag", PayloadMedium},
	ModeDeltaQuantities:        {"delta_quantities", PayloadMedium},
	ModeRateQuantitiesWithMag:  {"rate_quantities_with_mag", PayloadMedium},
	ModeRateQuantities:         {"rate_quantities", PayloadMedium},
	ModeCustom1:                {"custom_mode_1", PayloadMedium},
	ModeCustom2:                {"custom_mode_2", PayloadMedium},
	ModeCustom3:                {"custom_mode_3", PayloadMedium},
	ModeCustom4:                {"custom_mode_4", PayloadLong},
	ModeCustom5:                {"custom_mode_5", PayloadShort},
}

func (m PayloadMode) String() string {
	if info, ok := modes[m]; ok {
		return info.name
	}
	return fmt.Sprintf("mode(%d)", byte(m))
}

// Valid reports whether m is a mode the sensor firmware knows.
func (m PayloadMode) Valid() bool {
	_, ok := modes[m]
	return ok
}

// PayloadSize returns which notification characteristic carries m.
func (m PayloadMode) PayloadSize() PayloadSize {
	return modes[m].size
}

// ParsePayloadMode accepts a snake_case mode name or its numeric id.
func ParsePayloadMode(s string) (PayloadMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 255 || !PayloadMode(n).Valid() {
			return 0, fmt.Errorf("unknown payload mode id %d", n)
		}
		return PayloadMode(n), nil
	}
	for m, info := range modes {
		if info.name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown payload mode %q", s)
}

var payloadBytes = map[PayloadSize]int{
	PayloadShort:  20,
	PayloadMedium: 40,
	PayloadLong:   63,
}

// Bytes returns the notification length of the characteristic, or 0 for an
// unknown one.
func (p PayloadSize) Bytes() int {
	return payloadBytes[p]
}

func (p PayloadSize) String() string {
	switch p {
	case PayloadShort:
		return "short"
	case PayloadMedium:
		return "medium"
	case PayloadLong:
		return "long"
	}
	return fmt.Sprintf("payload(%d)", int(p))
}

// ParsePayloadSize accepts "short", "medium" or "long".
func ParsePayloadSize(s string) (PayloadSize, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "short":
		return PayloadShort, nil
	case "medium":
		return PayloadMedium, nil
	case "long":
		return PayloadLong, nil
	}
	return 0, fmt.Errorf("unknown payload characteristic %q (want short, medium or long)", s)
}
