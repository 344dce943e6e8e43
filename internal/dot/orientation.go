// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dot

import (
	"math"
)

// Euler is orientation as roll/pitch/yaw in degrees.
type Euler struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Euler converts q to aerospace (ZYX) angles.
//
//	roll  = atan2(2(wx + yz), 1 - 2(x² + y²))
//	pitch = asin(2(wy - zx))
//	yaw   = atan2(2(wz + xy), 1 - 2(y² + z²))
func (q Quaternion) Euler() Euler {
	w, x, y, z := float64(q.W), float64(q.X), float64(q.Y), float64(q.Z)

	rollRad := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))

	// clamp: numeric noise can push |sinp| slightly over 1 at gimbal lock
	sinp := 2 * (w*y - z*x)
	if sinp > 1 {
		sinp = 1
	} else if sinp < -1 {
		sinp = -1
	}
	pitchRad := math.Asin(sinp)

	yawRad := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))

	return Euler{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
		Yaw:   yawRad * 180.0 / math.Pi,
	}
}

// Norm returns the quaternion magnitude; ~1 for a healthy sensor.
func (q Quaternion) Norm() float64 {
	w, x, y, z := float64(q.W), float64(q.X), float64(q.Y), float64(q.Z)
	return math.Sqrt(w*w + x*x + y*y + z*z)
}
