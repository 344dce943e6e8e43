// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Variant selects the fixed byte layout of a measurement notification.
// It is chosen by configuration; Decode never guesses it from the length.
type Variant int

const (
	// VariantFreeAcceleration: timestamp + acc(x,y,z). 16 bytes.
	VariantFreeAcceleration Variant = iota + 1
	// VariantFreeAccelerationQuaternion: timestamp + acc + quat(w,x,y,z). 32 bytes.
	VariantFreeAccelerationQuaternion
	// VariantFreeAccelerationPadded: short payload characteristic layout,
	// timestamp + acc + 4 bytes zero padding. 20 bytes.
	VariantFreeAccelerationPadded
	// VariantMediumIMU: timestamp + acc + gyro + extra vector. 40 bytes.
	VariantMediumIMU
)

var variantNames = map[Variant]string{
	VariantFreeAcceleration:           "free_acceleration",
	VariantFreeAccelerationQuaternion: "free_acceleration_quaternion",
	VariantFreeAccelerationPadded:     "free_acceleration_padded",
	VariantMediumIMU:                  "medium_imu",
}

var variantSizes = map[Variant]int{
	VariantFreeAcceleration:           16,
	VariantFreeAccelerationQuaternion: 32,
	VariantFreeAccelerationPadded:     20,
	VariantMediumIMU:                  40,
}

// Size returns the exact payload length for v, or 0 for an unknown variant.
func (v Variant) Size() int {
	return variantSizes[v]
}

func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// ParseVariant resolves a variant by its config name.
func ParseVariant(name string) (Variant, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for v, n := range variantNames {
		if n == name {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown payload variant %q", name)
}

// ErrMalformedPayload is matched by every length/shape decode failure.
var ErrMalformedPayload = errors.New("malformed payload")

// MalformedPayloadError reports a buffer whose length does not fit the layout.
type MalformedPayloadError struct {
	Layout string
	Got    int
	Want   int
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed payload: %s expects %d bytes, got %d", e.Layout, e.Want, e.Got)
}

func (e *MalformedPayloadError) Is(target error) bool {
	return target == ErrMalformedPayload
}

const (
	offTimestamp = 0
	offAcc       = 4
	offBlock2    = 16 // quaternion or gyro
	offExtra     = 28
)

// Decode converts one raw notification into a Reading.
// All fields are little-endian; float fields are IEEE-754 single precision.
func Decode(v Variant, data []byte) (Reading, error) {
	want := v.Size()
	if want == 0 {
		return Reading{}, fmt.Errorf("decode: unknown payload variant %d", int(v))
	}
	if len(data) != want {
		return Reading{}, &MalformedPayloadError{Layout: v.String(), Got: len(data), Want: want}
	}

	r := Reading{
		Timestamp:    binary.LittleEndian.Uint32(data[offTimestamp : offTimestamp+4]),
		Acceleration: vec3At(data, offAcc),
	}

	switch v {
	case VariantFreeAccelerationQuaternion:
		q := Quaternion{
			W: f32At(data, offBlock2),
			X: f32At(data, offBlock2+4),
			Y: f32At(data, offBlock2+8),
			Z: f32At(data, offBlock2+12),
		}
		r.Orientation = &q
	case VariantMediumIMU:
		gyro := vec3At(data, offBlock2)
		extra := vec3At(data, offExtra)
		r.AngularVelocity = &gyro
		r.Extra = &extra
	}

	return r, nil
}

// Encode is the inverse of Decode. Missing optional blocks encode as zeros.
func Encode(v Variant, r Reading) ([]byte, error) {
	size := v.Size()
	if size == 0 {
		return nil, fmt.Errorf("encode: unknown payload variant %d", int(v))
	}

	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[offTimestamp:], r.Timestamp)
	putVec3(buf, offAcc, r.Acceleration)

	switch v {
	case VariantFreeAccelerationQuaternion:
		var q Quaternion
		if r.Orientation != nil {
			q = *r.Orientation
		}
		putF32(buf, offBlock2, q.W)
		putF32(buf, offBlock2+4, q.X)
		putF32(buf, offBlock2+8, q.Y)
		putF32(buf, offBlock2+12, q.Z)
	case VariantMediumIMU:
		if r.AngularVelocity != nil {
			putVec3(buf, offBlock2, *r.AngularVelocity)
		}
		if r.Extra != nil {
			putVec3(buf, offExtra, *r.Extra)
		}
	}

	return buf, nil
}

// Decoder binds Decode to the configured variant.
type Decoder struct {
	variant Variant
}

func NewDecoder(v Variant) Decoder {
	return Decoder{variant: v}
}

func (d Decoder) Variant() Variant {
	return d.variant
}

func (d Decoder) Decode(data []byte) (Reading, error) {
	return Decode(d.variant, data)
}

func f32At(data []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
}

func vec3At(data []byte, off int) Vec3 {
	return Vec3{
		X: f32At(data, off),
		Y: f32At(data, off+4),
		Z: f32At(data, off+8),
	}
}

func putF32(buf []byte, off int, f float32) {
	binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(f))
}

func putVec3(buf []byte, off int, v Vec3) {
	putF32(buf, off, v.X)
	putF32(buf, off+4, v.Y)
	putF32(buf, off+8, v.Z)
}
