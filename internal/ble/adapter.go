// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

// Adapter is a Dialer backed by a host Bluetooth adapter.
// Scans are serialized: the host stack only runs one at a time.
type Adapter struct {
	adapter     *bluetooth.Adapter
	scanTimeout time.Duration

	enableOnce sync.Once
	enableErr  error
	scanMu     sync.Mutex
}

// NewAdapter wraps a (normally bluetooth.DefaultAdapter) host adapter.
func NewAdapter(a *bluetooth.Adapter, scanTimeout time.Duration) *Adapter {
	return &Adapter{adapter: a, scanTimeout: scanTimeout}
}

// Enable brings the BLE stack up once.
func (a *Adapter) Enable() error {
	a.enableOnce.Do(func() {
		if err := a.adapter.Enable(); err != nil {
			a.enableErr = fmt.Errorf("enable BLE stack: %w", err)
		}
	})
	return a.enableErr
}

// Scan reports every advertisement seen until timeout or ctx ends.
func (a *Adapter) Scan(ctx context.Context, timeout time.Duration, fn func(Advertisement)) error {
	if err := a.Enable(); err != nil {
		return err
	}
	a.scanMu.Lock()
	defer a.scanMu.Unlock()

	return a.scan(ctx, timeout, func(r bluetooth.ScanResult) bool {
		fn(Advertisement{Address: r.Address.String(), Name: r.LocalName(), RSSI: r.RSSI})
		return false
	})
}

// Find scans until the peripheral with the given address advertises.
func (a *Adapter) Find(ctx context.Context, address string) (bluetooth.ScanResult, error) {
	if err := a.Enable(); err != nil {
		return bluetooth.ScanResult{}, err
	}
	a.scanMu.Lock()
	defer a.scanMu.Unlock()

	var found bluetooth.ScanResult
	var ok bool
	err := a.scan(ctx, a.scanTimeout, func(r bluetooth.ScanResult) bool {
		if strings.EqualFold(r.Address.String(), address) {
			found, ok = r, true
			return true
		}
		return false
	})
	if err != nil {
		return bluetooth.ScanResult{}, err
	}
	if !ok {
		return bluetooth.ScanResult{}, fmt.Errorf("%s: %w after %s", address, ErrDeviceNotFound, a.scanTimeout)
	}
	return found, nil
}

// scan runs one blocking adapter scan in the background; match returning
// true stops it early. Returns nil on timeout.
func (a *Adapter) scan(ctx context.Context, timeout time.Duration, match func(bluetooth.ScanResult) bool) error {
	var (
		mu      sync.Mutex
		stopped bool
	)
	done := make(chan error, 1)
	go func() {
		done <- a.adapter.Scan(func(ad *bluetooth.Adapter, r bluetooth.ScanResult) {
			mu.Lock()
			defer mu.Unlock()
			if stopped {
				return
			}
			if match(r) {
				stopped = true
				_ = ad.StopScan()
			}
		})
	}()

	stop := func() {
		mu.Lock()
		already := stopped
		stopped = true
		mu.Unlock()
		if !already {
			if err := a.adapter.StopScan(); err != nil {
				log.Debugf("ble: stop scan: %v", err)
			}
		}
	}

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		return nil
	case <-timer:
		stop()
		<-done
		return nil
	case <-ctx.Done():
		stop()
		<-done
		return ctx.Err()
	}
}

// Dial finds the peripheral, connects and discovers its characteristics.
func (a *Adapter) Dial(ctx context.Context, address string) (Conn, error) {
	log.WithField("address", address).Info("ble: looking for device")
	res, err := a.Find(ctx, address)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"address": address, "rssi": res.RSSI, "name": res.LocalName()}).Info("ble: device found, connecting")
	dev, err := a.adapter.Connect(res.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", address, err)
	}

	link, err := newLink(address, dev)
	if err != nil {
		_ = dev.Disconnect()
		return nil, err
	}
	return link, nil
}
