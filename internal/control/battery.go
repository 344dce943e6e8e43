// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package control answers OSC requests sent to the bridge while it streams.
package control

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/hypebeast/go-osc/osc"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/dot_bridge/internal/ble"
	"github.com/relabs-tech/dot_bridge/internal/dot"
	"github.com/relabs-tech/dot_bridge/internal/sink"
	"github.com/relabs-tech/dot_bridge/internal/stream"
)

// BatteryStatusAddress is the OSC address that triggers a battery report.
const BatteryStatusAddress = "/batterystatus"

// ErrInvalidSensorID is reported for a /batterystatus argument that is not a
// non-negative number.
var ErrInvalidSensorID = errors.New("invalid sensor id")

// BatteryServer reads the battery of connected sensors on request and
// reports the result through a sink.
type BatteryServer struct {
	addr     string
	registry *stream.Registry
	sink     sink.Sink
}

func NewBatteryServer(addr string, r *stream.Registry, k sink.Sink) *BatteryServer {
	return &BatteryServer{addr: addr, registry: r, sink: k}
}

// Report reads the battery of sensor id, or of every connected sensor when
// id is 0.
func (b *BatteryServer) Report(id int) {
	var targets []stream.Connected
	if id > 0 {
		if c, ok := b.registry.Lookup(id); ok {
			targets = append(targets, c)
		}
	} else {
		targets = b.registry.Connected()
	}

	if len(targets) == 0 {
		b.deliverError(dot.Sensor{ID: id}, sink.ErrNotConnected)
		return
	}

	for _, c := range targets {
		level, err := ble.ReadBattery(c.Conn)
		if err != nil {
			b.deliverError(c.Sensor, err)
			continue
		}
		log.WithField("sensor", c.Sensor.ID).Debugf("control: battery %d%% charging=%v", level.Level, level.Charging)
		if err := b.sink.Battery(c.Sensor, level); err != nil {
			log.Warnf("control: report battery: %v", err)
		}
	}
}

func (b *BatteryServer) deliverError(s dot.Sensor, cause error) {
	if err := b.sink.BatteryError(s, cause); err != nil {
		log.Warnf("control: report battery error: %v", err)
	}
}

// handle serves one /batterystatus message. An optional numeric argument
// selects a single sensor; any other argument is answered with an error.
func (b *BatteryServer) handle(msg *osc.Message) {
	if len(msg.Arguments) == 0 {
		b.Report(0)
		return
	}
	id, ok := sensorID(msg.Arguments[0])
	if !ok {
		log.Warnf("control: %s: bad argument %v (%T)", msg.Address, msg.Arguments[0], msg.Arguments[0])
		b.deliverError(dot.Sensor{}, fmt.Errorf("%w: %v", ErrInvalidSensorID, msg.Arguments[0]))
		return
	}
	b.Report(id)
}

func sensorID(arg interface{}) (int, bool) {
	var id int
	switch v := arg.(type) {
	case int32:
		id = int(v)
	case int64:
		id = int(v)
	case float32:
		id = int(v)
	case float64:
		id = int(v)
	default:
		return 0, false
	}
	return id, id >= 0
}

// Serve listens for OSC messages until ctx is cancelled.
func (b *BatteryServer) Serve(ctx context.Context) error {
	pc, err := net.ListenPacket("udp", b.addr)
	if err != nil {
		return fmt.Errorf("osc listen %s: %w", b.addr, err)
	}
	return b.serve(ctx, pc)
}

func (b *BatteryServer) serve(ctx context.Context, pc net.PacketConn) error {
	d := osc.NewStandardDispatcher()
	if err := d.AddMsgHandler(BatteryStatusAddress, b.handle); err != nil {
		pc.Close()
		return err
	}
	server := &osc.Server{Addr: pc.LocalAddr().String(), Dispatcher: d}

	go func() {
		<-ctx.Done()
		pc.Close()
	}()

	log.Infof("control: OSC server listening on %s", pc.LocalAddr())
	err := server.Serve(pc)
	if ctx.Err() != nil {
		return nil
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
