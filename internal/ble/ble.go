// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ble wraps tinygo.org/x/bluetooth with the few central-role
// operations the bridge needs: find a peripheral by address, connect, and
// read / write / subscribe to characteristics by UUID.
package ble

import (
	"context"
	"errors"

	"tinygo.org/x/bluetooth"

	"github.com/relabs-tech/dot_bridge/internal/dot"
)

var (
	ErrDeviceNotFound         = errors.New("device not found")
	ErrCharacteristicNotFound = errors.New("characteristic not found")
)

// Conn is a connected peripheral.
type Conn interface {
	Address() string
	Read(char bluetooth.UUID) ([]byte, error)
	Write(char bluetooth.UUID, p []byte) error
	Subscribe(char bluetooth.UUID, fn func(buf []byte)) error
	Disconnect() error
}

// Dialer opens a Conn to the peripheral at a MAC (or, on macOS, UUID) address.
type Dialer interface {
	Dial(ctx context.Context, address string) (Conn, error)
}

// Advertisement is one scan result.
type Advertisement struct {
	Address string
	Name    string
	RSSI    int16
}

// ReadBattery reads and decodes the battery characteristic.
func ReadBattery(c Conn) (dot.Battery, error) {
	p, err := c.Read(dot.BatteryUUID)
	if err != nil {
		return dot.Battery{}, err
	}
	return dot.DecodeBattery(p)
}

// ReadMeasurementState reads the measurement service control characteristic.
func ReadMeasurementState(c Conn) (dot.MeasurementState, error) {
	p, err := c.Read(dot.ControlUUID)
	if err != nil {
		return dot.MeasurementState{}, err
	}
	return dot.DecodeMeasurementState(p)
}
