// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sink

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/relabs-tech/dot_bridge/internal/analysis"
	"github.com/relabs-tech/dot_bridge/internal/dot"
)

// Console prints one line per event.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Reading(s dot.Sensor, r dot.Reading) error {
	return c.println(FormatReading(s.ID, r))
}

func (c *Console) Variance(s dot.Sensor, axis analysis.Axis) error {
	return c.println(fmt.Sprintf("[DOT-%d] axis with max variance: %s", s.ID, axis))
}

func (c *Console) Battery(s dot.Sensor, b dot.Battery) error {
	charging := "No"
	if b.Charging {
		charging = "Yes"
	}
	return c.println(fmt.Sprintf("[DOT-%d] Battery: %d%% | Charging: %s", s.ID, b.Level, charging))
}

func (c *Console) BatteryError(s dot.Sensor, err error) error {
	return c.println(fmt.Sprintf("[DOT-%d] Battery read error: %v", s.ID, err))
}

func (c *Console) println(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, line)
	return err
}

// FormatReading renders a reading the way the console shows it.
func FormatReading(id int, r dot.Reading) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[DOT-%d] [%10d] Acc: %7.3f, %7.3f, %7.3f",
		id, r.Timestamp, r.Acceleration.X, r.Acceleration.Y, r.Acceleration.Z)
	if g := r.AngularVelocity; g != nil {
		fmt.Fprintf(&b, " | Gyro: %7.3f, %7.3f, %7.3f", g.X, g.Y, g.Z)
	}
	if e := r.Extra; e != nil {
		fmt.Fprintf(&b, " | Extra: %7.3f, %7.3f, %7.3f", e.X, e.Y, e.Z)
	}
	if q := r.Orientation; q != nil {
		eu := q.Euler()
		fmt.Fprintf(&b, " | Quat: %6.3f, %6.3f, %6.3f, %6.3f (R=%6.1f P=%6.1f Y=%6.1f)",
			q.W, q.X, q.Y, q.Z, eu.Roll, eu.Pitch, eu.Yaw)
	}
	return b.String()
}
