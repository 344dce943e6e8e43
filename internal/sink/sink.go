// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sink forwards decoded readings to their consumers: the terminal,
// an OSC receiver and the MQTT broker.
package sink

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/dot_bridge/internal/analysis"
	"github.com/relabs-tech/dot_bridge/internal/dot"
)

// ErrNotConnected is reported when a battery status is requested while no
// sensor is connected.
var ErrNotConnected = errors.New("Not connected")

// Sink receives everything the streamer produces. Implementations must be
// safe for concurrent use: every sensor session calls in from its own goroutine.
type Sink interface {
	Reading(s dot.Sensor, r dot.Reading) error
	Variance(s dot.Sensor, axis analysis.Axis) error
	Battery(s dot.Sensor, b dot.Battery) error
	BatteryError(s dot.Sensor, err error) error
}

// ReadingMessage is the JSON published for every reading.
type ReadingMessage struct {
	SensorID   int       `json:"sensor"`
	Address    string    `json:"address"`
	Session    string    `json:"session,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	dot.Reading
}

// VarianceMessage is the JSON published when a variance window closes.
type VarianceMessage struct {
	SensorID int           `json:"sensor"`
	Address  string        `json:"address"`
	Axis     analysis.Axis `json:"max_variance_axis"`
	Time     time.Time     `json:"time"`
}

// BatteryMessage is the JSON published for a battery read.
type BatteryMessage struct {
	SensorID int       `json:"sensor"`
	Address  string    `json:"address,omitempty"`
	Level    uint8     `json:"level"`
	Charging bool      `json:"charging"`
	Error    string    `json:"error,omitempty"`
	Time     time.Time `json:"time"`
}

// Expand substitutes the sensor id into a "{id}" template.
func Expand(template string, id int) string {
	return strings.ReplaceAll(template, "{id}", strconv.Itoa(id))
}

// Wildcard turns a topic template into an MQTT subscription filter.
func Wildcard(template string) string {
	return strings.ReplaceAll(template, "{id}", "+")
}

// Multi fans every call out to all sinks and joins their errors.
type Multi []Sink

func (m Multi) Reading(s dot.Sensor, r dot.Reading) error {
	var errs []error
	for _, k := range m {
		errs = append(errs, k.Reading(s, r))
	}
	return errors.Join(errs...)
}

func (m Multi) Variance(s dot.Sensor, axis analysis.Axis) error {
	var errs []error
	for _, k := range m {
		errs = append(errs, k.Variance(s, axis))
	}
	return errors.Join(errs...)
}

func (m Multi) Battery(s dot.Sensor, b dot.Battery) error {
	var errs []error
	for _, k := range m {
		errs = append(errs, k.Battery(s, b))
	}
	return errors.Join(errs...)
}

func (m Multi) BatteryError(s dot.Sensor, err error) error {
	var errs []error
	for _, k := range m {
		errs = append(errs, k.BatteryError(s, err))
	}
	return errors.Join(errs...)
}
