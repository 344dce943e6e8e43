// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ble

import (
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

// defaultReadSize is used when the stack cannot report an MTU.
const defaultReadSize = 512

// Link is a connected tinygo bluetooth.Device with its characteristics
// discovered up front.
type Link struct {
	address string
	device  bluetooth.Device
	chars   map[bluetooth.UUID]bluetooth.DeviceCharacteristic
}

var _ Conn = (*Link)(nil)

func newLink(address string, dev bluetooth.Device) (*Link, error) {
	srvcs, err := dev.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("%s: discover services: %w", address, err)
	}

	l := &Link{
		address: address,
		device:  dev,
		chars:   make(map[bluetooth.UUID]bluetooth.DeviceCharacteristic),
	}
	for _, srvc := range srvcs {
		chars, err := srvc.DiscoverCharacteristics(nil)
		if err != nil {
			log.Warnf("ble: %s: discover characteristics of %s: %v", address, srvc.UUID().String(), err)
			continue
		}
		for _, c := range chars {
			l.chars[c.UUID()] = c
		}
	}
	log.WithField("address", address).Debugf("ble: discovered %d services, %d characteristics", len(srvcs), len(l.chars))
	return l, nil
}

func (l *Link) Address() string {
	return l.address
}

func (l *Link) characteristic(u bluetooth.UUID) (bluetooth.DeviceCharacteristic, error) {
	c, ok := l.chars[u]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("%s: %w: %s", l.address, ErrCharacteristicNotFound, u.String())
	}
	return c, nil
}

// Read reads the current value of a characteristic.
func (l *Link) Read(u bluetooth.UUID) ([]byte, error) {
	c, err := l.characteristic(u)
	if err != nil {
		return nil, err
	}

	size := defaultReadSize
	if mtu, err := c.GetMTU(); err == nil && mtu > 0 {
		size = int(mtu)
	}
	buf := make([]byte, size)
	n, err := c.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return buf[:n], fmt.Errorf("%s: read %s: %w", l.address, u.String(), err)
	}
	return buf[:n], nil
}

// Write writes p to a characteristic. WriteWithoutResponse is the only write
// every tinygo backend offers; on Linux BlueZ picks the write type from the
// characteristic's properties.
func (l *Link) Write(u bluetooth.UUID, p []byte) error {
	c, err := l.characteristic(u)
	if err != nil {
		return err
	}
	if _, err := c.WriteWithoutResponse(p); err != nil {
		return fmt.Errorf("%s: write %s: %w", l.address, u.String(), err)
	}
	return nil
}

// Subscribe enables notifications; fn runs on the stack's goroutine and
// buf is only valid for the duration of the call.
func (l *Link) Subscribe(u bluetooth.UUID, fn func(buf []byte)) error {
	c, err := l.characteristic(u)
	if err != nil {
		return err
	}
	if err := c.EnableNotifications(fn); err != nil {
		return fmt.Errorf("%s: enable notifications on %s: %w", l.address, u.String(), err)
	}
	return nil
}

func (l *Link) Disconnect() error {
	if err := l.device.Disconnect(); err != nil {
		return fmt.Errorf("%s: disconnect: %w", l.address, err)
	}
	return nil
}
