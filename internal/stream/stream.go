// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package stream runs one measurement session per DOT: subscribe to the
// payload characteristic, start the measurement, decode every notification
// and hand the readings to a sink until the context ends.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"tinygo.org/x/bluetooth"

	"github.com/relabs-tech/dot_bridge/internal/analysis"
	"github.com/relabs-tech/dot_bridge/internal/ble"
	"github.com/relabs-tech/dot_bridge/internal/dot"
	"github.com/relabs-tech/dot_bridge/internal/sink"
)

const defaultNotifyBuffer = 256

// Options configure every session of a run.
type Options struct {
	Mode           dot.PayloadMode
	Characteristic bluetooth.UUID // payload characteristic to subscribe to
	Variant        dot.Variant
	NotifyBuffer   int           // notifications queued per sensor
	VarianceWindow int           // samples per variance window, 0 disables
	Duration       time.Duration // 0 streams until cancelled
}

// Sensors numbers addresses from 1 in the order given.
func Sensors(addresses []string) []dot.Sensor {
	out := make([]dot.Sensor, len(addresses))
	for i, a := range addresses {
		out[i] = dot.Sensor{ID: i + 1, Address: a}
	}
	return out
}

// Streamer connects to a set of sensors and runs their sessions concurrently.
type Streamer struct {
	dialer   ble.Dialer
	sink     sink.Sink
	opts     Options
	metrics  *Metrics
	registry *Registry
}

func NewStreamer(d ble.Dialer, s sink.Sink, opts Options, m *Metrics, r *Registry) *Streamer {
	if opts.NotifyBuffer <= 0 {
		opts.NotifyBuffer = defaultNotifyBuffer
	}
	return &Streamer{dialer: d, sink: s, opts: opts, metrics: m, registry: r}
}

// Run streams from every sensor until ctx is cancelled or the configured
// duration elapses. Sensors that cannot be found are skipped.
func (st *Streamer) Run(ctx context.Context, sensors []dot.Sensor) error {
	if st.opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.opts.Duration)
		defer cancel()
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range sensors {
		s := s
		g.Go(func() error {
			return st.runSensor(ctx, s)
		})
	}
	return g.Wait()
}

func (st *Streamer) runSensor(ctx context.Context, s dot.Sensor) error {
	logger := log.WithFields(log.Fields{"sensor": s.ID, "address": s.Address})

	conn, err := st.dialer.Dial(ctx, s.Address)
	if err != nil {
		switch {
		case errors.Is(err, ble.ErrDeviceNotFound):
			logger.Warnf("stream: %v, skipping", err)
			return nil
		case ctx.Err() != nil:
			return nil
		}
		return fmt.Errorf("sensor %d: %w", s.ID, err)
	}

	st.registry.Add(s, conn)
	defer func() {
		st.registry.Remove(s.ID)
		if err := conn.Disconnect(); err != nil {
			logger.Warnf("stream: %v", err)
		}
		logger.Info("stream: disconnected")
	}()

	sess := NewSession(s, conn, st.sink, st.opts, st.metrics)
	if err := sess.Run(ctx); err != nil {
		return fmt.Errorf("sensor %d: %w", s.ID, err)
	}
	return nil
}

// Session is one measurement run on a connected sensor.
type Session struct {
	ID      string
	sensor  dot.Sensor
	conn    ble.Conn
	sink    sink.Sink
	opts    Options
	metrics *Metrics
	decoder dot.Decoder
	window  *analysis.VarianceWindow
	log     *log.Entry
}

func NewSession(s dot.Sensor, c ble.Conn, k sink.Sink, opts Options, m *Metrics) *Session {
	if opts.NotifyBuffer <= 0 {
		opts.NotifyBuffer = defaultNotifyBuffer
	}
	id := uuid.NewString()
	return &Session{
		ID:      id,
		sensor:  s,
		conn:    c,
		sink:    k,
		opts:    opts,
		metrics: m,
		decoder: dot.NewDecoder(opts.Variant),
		window:  analysis.NewVarianceWindow(opts.VarianceWindow),
		log: log.WithFields(log.Fields{
			"sensor":  s.ID,
			"address": s.Address,
			"session": id,
		}),
	}
}

// Run subscribes, starts the measurement and consumes notifications until
// ctx is done, then writes the stop command. It does not disconnect.
func (s *Session) Run(ctx context.Context) error {
	label := strconv.Itoa(s.sensor.ID)
	notifications := s.metrics.Notifications.WithLabelValues(label)
	dropped := s.metrics.Dropped.WithLabelValues(label)

	queue := make(chan []byte, s.opts.NotifyBuffer)
	err := s.conn.Subscribe(s.opts.Characteristic, func(buf []byte) {
		notifications.Inc()
		select {
		case queue <- bytes.Clone(buf):
		default:
			dropped.Inc()
		}
	})
	if err != nil {
		return err
	}

	if err := s.conn.Write(dot.ControlUUID, dot.StartCommand(s.opts.Mode)); err != nil {
		return fmt.Errorf("start measurement: %w", err)
	}
	s.log.Infof("stream: measurement started (%s, %s)", s.opts.Mode, s.opts.Variant)

	defer func() {
		if err := s.conn.Write(dot.ControlUUID, dot.StopCommand(s.opts.Mode)); err != nil {
			s.log.Warnf("stream: stop measurement: %v", err)
			return
		}
		s.log.Info("stream: measurement stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case buf := <-queue:
			s.handle(label, buf)
		}
	}
}

func (s *Session) handle(label string, buf []byte) {
	r, err := s.decoder.Decode(buf)
	if err != nil {
		s.metrics.Malformed.WithLabelValues(label).Inc()
		s.log.Warnf("stream: dropping notification: %v", err)
		return
	}

	if err := s.sink.Reading(s.sensor, r); err != nil {
		s.metrics.SinkErrors.WithLabelValues(label).Inc()
		s.log.Debugf("stream: sink: %v", err)
	} else {
		s.metrics.Forwarded.WithLabelValues(label).Inc()
	}

	if axis, ok := s.window.Add(r.Acceleration); ok {
		if err := s.sink.Variance(s.sensor, axis); err != nil {
			s.metrics.SinkErrors.WithLabelValues(label).Inc()
			s.log.Debugf("stream: sink: %v", err)
		}
	}
}
