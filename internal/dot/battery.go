// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dot

// Battery is the decoded battery characteristic.
type Battery struct {
	Level    uint8 `json:"level"` // percent
	Charging bool  `json:"charging"`
}

// DecodeBattery reads level (byte 0) and charging flag (byte 1).
func DecodeBattery(data []byte) (Battery, error) {
	if len(data) < 2 {
		return Battery{}, &MalformedPayloadError{Layout: "battery", Got: len(data), Want: 2}
	}
	return Battery{
		Level:    data[0],
		Charging: data[1] != 0,
	}, nil
}
