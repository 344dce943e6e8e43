// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ble

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/relabs-tech/dot_bridge/internal/dot"
)

// MockDialer hands out synthetic DOTs that stream smoothly changing values
// once the measurement start command is written. No radio involved.
type MockDialer struct {
	Variant dot.Variant
	Rate    time.Duration // notification interval, 60 Hz when zero
	// MalformedEvery > 0 replaces every n-th notification with a truncated one.
	MalformedEvery int
	Battery        dot.Battery
}

func (d *MockDialer) Dial(ctx context.Context, address string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Variant.Size() == 0 {
		return nil, fmt.Errorf("mock %s: unknown payload variant %v", address, d.Variant)
	}
	rate := d.Rate
	if rate <= 0 {
		rate = time.Second / 60
	}
	log.WithField("address", address).Info("ble: mock device connected")
	return &mockConn{
		address: address,
		variant: d.Variant,
		rate:    rate,
		every:   d.MalformedEvery,
		battery: d.Battery,
		subs:    make(map[bluetooth.UUID]func([]byte)),
		phase:   float64(len(address) % 7),
	}, nil
}

type mockConn struct {
	address string
	variant dot.Variant
	rate    time.Duration
	every   int
	battery dot.Battery
	phase   float64

	mu      sync.Mutex
	subs    map[bluetooth.UUID]func([]byte)
	state   dot.MeasurementState
	stop    chan struct{}
	stopped chan struct{}
	closed  bool
}

func (c *mockConn) Address() string {
	return c.address
}

func (c *mockConn) Read(u bluetooth.UUID) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch u {
	case dot.BatteryUUID:
		charging := byte(0)
		if c.battery.Charging {
			charging = 1
		}
		return []byte{c.battery.Level, charging}, nil
	case dot.ControlUUID:
		if c.state.Started {
			return dot.StartCommand(c.state.Mode), nil
		}
		return dot.StopCommand(c.state.Mode), nil
	}
	return nil, fmt.Errorf("%s: %w: %s", c.address, ErrCharacteristicNotFound, u.String())
}

func (c *mockConn) Write(u bluetooth.UUID, p []byte) error {
	if u != dot.ControlUUID {
		return fmt.Errorf("%s: %w: %s", c.address, ErrCharacteristicNotFound, u.String())
	}
	st, err := dot.DecodeMeasurementState(p)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.awaitHalt()
	if c.closed {
		return fmt.Errorf("%s: write after disconnect", c.address)
	}
	c.state = st
	switch {
	case st.Started && c.stop == nil:
		c.stop = make(chan struct{})
		c.stopped = make(chan struct{})
		go c.run(c.stop, c.stopped)
	case !st.Started && c.stop != nil:
		c.halt()
	}
	return nil
}

func (c *mockConn) Subscribe(u bluetooth.UUID, fn func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[u] = fn
	return nil
}

func (c *mockConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.stop != nil {
		c.halt()
	}
	c.awaitHalt()
	return nil
}

// halt stops the generator and waits for it; c.mu must be held. While the
// lock is released c.stop is nil and c.stopped is set, which awaitHalt
// treats as halting.
func (c *mockConn) halt() {
	stop, stopped := c.stop, c.stopped
	c.stop = nil
	close(stop)
	c.mu.Unlock()
	<-stopped
	c.mu.Lock()
	if c.stopped == stopped {
		c.stopped = nil
	}
}

// awaitHalt blocks until a halt in progress on another goroutine finishes;
// c.mu must be held.
func (c *mockConn) awaitHalt() {
	for c.stop == nil && c.stopped != nil {
		stopped := c.stopped
		c.mu.Unlock()
		<-stopped
		c.mu.Lock()
		if c.stopped == stopped {
			c.stopped = nil
		}
	}
}

func (c *mockConn) run(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	start := time.Now()
	ticker := time.NewTicker(c.rate)
	defer ticker.Stop()

	n := 0
	for {
		select {
		case <-stop:
			return
		case t := <-ticker.C:
			n++
			payload, err := dot.Encode(c.variant, c.sample(t.Sub(start)))
			if err != nil {
				log.Errorf("ble: mock %s: %v", c.address, err)
				return
			}
			if c.every > 0 && n%c.every == 0 {
				payload = payload[:len(payload)/2]
			}

			c.mu.Lock()
			fns := make([]func([]byte), 0, len(c.subs))
			for _, fn := range c.subs {
				fns = append(fns, fn)
			}
			c.mu.Unlock()
			for _, fn := range fns {
				fn(bytes.Clone(payload))
			}
		}
	}
}

func (c *mockConn) sample(elapsed time.Duration) dot.Reading {
	s := elapsed.Seconds() + c.phase

	yaw := math.Mod(s*30, 360) * math.Pi / 180
	return dot.Reading{
		Timestamp: uint32(elapsed.Microseconds()),
		Acceleration: dot.Vec3{
			X: float32(2 * math.Sin(s)),
			Y: float32(1.5 * math.Cos(s*0.7)),
			Z: float32(0.5 * math.Sin(s*2)),
		},
		Orientation: &dot.Quaternion{
			W: float32(math.Cos(yaw / 2)),
			Z: float32(math.Sin(yaw / 2)),
		},
		AngularVelocity: &dot.Vec3{Z: 30},
		Extra:           &dot.Vec3{X: 0.2, Y: 0, Z: 0.4},
	}
}
