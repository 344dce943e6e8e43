// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/relabs-tech/dot_bridge/internal/ble"
	"github.com/relabs-tech/dot_bridge/internal/config"
	"github.com/relabs-tech/dot_bridge/internal/dot"
	"github.com/relabs-tech/dot_bridge/internal/sink"
	"github.com/relabs-tech/dot_bridge/internal/stream"
)

// RunBattery connects to each configured sensor in turn, prints its battery
// and measurement state, and disconnects.
func RunBattery(ctx context.Context, w io.Writer, mock bool) error {
	cfg := config.Get()

	addresses := cfg.DOTAddresses
	var dialer ble.Dialer
	if mock {
		if len(addresses) == 0 {
			addresses = mockAddresses
		}
		dialer = &ble.MockDialer{Variant: cfg.PayloadVariant, Battery: dot.Battery{Level: 87}}
	} else {
		if len(addresses) == 0 {
			return errors.New("no sensors configured, set DOT_ADDRESSES")
		}
		dialer = ble.NewAdapter(bluetooth.DefaultAdapter, cfg.ScanTimeout)
	}

	return reportBatteries(ctx, dialer, stream.Sensors(addresses), w)
}

func reportBatteries(ctx context.Context, dialer ble.Dialer, sensors []dot.Sensor, w io.Writer) error {
	console := sink.NewConsole(w)
	var errs []error
	for _, s := range sensors {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := reportBattery(ctx, dialer, s, console, w); err != nil {
			log.WithField("sensor", s.ID).Warnf("battery: %v", err)
			_ = console.BatteryError(s, err)
			errs = append(errs, fmt.Errorf("sensor %d: %w", s.ID, err))
		}
	}
	return errors.Join(errs...)
}

func reportBattery(ctx context.Context, dialer ble.Dialer, s dot.Sensor, console *sink.Console, w io.Writer) error {
	conn, err := dialer.Dial(ctx, s.Address)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Disconnect(); err != nil {
			log.WithField("sensor", s.ID).Warnf("battery: %v", err)
		}
	}()

	b, err := ble.ReadBattery(conn)
	if err != nil {
		return err
	}
	if err := console.Battery(s, b); err != nil {
		return err
	}

	st, err := ble.ReadMeasurementState(conn)
	if err != nil {
		return err
	}
	state := "stopped"
	if st.Started {
		state = "started"
	}
	_, err = fmt.Fprintf(w, "[DOT-%d] Measurement: %s | Mode: %s\n", s.ID, state, st.Mode)
	return err
}
