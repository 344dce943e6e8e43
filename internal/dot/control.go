// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dot

const (
	controlTypeMeasurement byte = 0x01

	actionStop  byte = 0x00
	actionStart byte = 0x01
)

// StartCommand turns the measurement service on in mode m.
func StartCommand(m PayloadMode) []byte {
	return []byte{controlTypeMeasurement, actionStart, byte(m)}
}

// StopCommand turns the measurement service off.
func StopCommand(m PayloadMode) []byte {
	return []byte{controlTypeMeasurement, actionStop, byte(m)}
}

// MeasurementState is the decoded value of the control characteristic.
type MeasurementState struct {
	Type    byte        `json:"type"`
	Started bool        `json:"started"`
	Mode    PayloadMode `json:"mode"`
}

// DecodeMeasurementState parses a read of the control characteristic.
func DecodeMeasurementState(data []byte) (MeasurementState, error) {
	if len(data) < 3 {
		return MeasurementState{}, &MalformedPayloadError{Layout: "measurement control", Got: len(data), Want: 3}
	}
	return MeasurementState{
		Type:    data[0],
		Started: data[1] == actionStart,
		Mode:    PayloadMode(data[2]),
	}, nil
}
