// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dot

// Vec3 is a three-axis float32 vector as sent by the sensor.
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Quaternion is a unit quaternion in w,x,y,z order.
type Quaternion struct {
	W float32 `json:"w"`
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Reading represents a single decoded measurement notification.
// Optional blocks are nil when the payload variant does not carry them.
type Reading struct {
	Timestamp    uint32 `json:"timestamp_us"` // sensor clock, microseconds
	Acceleration Vec3   `json:"acc"`          // free acceleration, m/s²

	Orientation     *Quaternion `json:"quat,omitempty"`
	AngularVelocity *Vec3       `json:"gyro,omitempty"` // deg/s
	Extra           *Vec3       `json:"extra,omitempty"`
}

// Sensor identifies one configured DOT. ID is 1-based in config order.
type Sensor struct {
	ID      int    `json:"id"`
	Address string `json:"address"`
}
