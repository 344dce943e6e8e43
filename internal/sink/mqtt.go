// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sink

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/relabs-tech/dot_bridge/internal/analysis"
	"github.com/relabs-tech/dot_bridge/internal/dot"
)

// Publisher is the part of mqtt.Client the sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Topics holds the "{id}" templates the MQTT sink publishes on.
type Topics struct {
	Readings string
	Variance string
	Battery  string
}

// MQTT publishes JSON messages on per-sensor topics.
type MQTT struct {
	client  Publisher
	topics  Topics
	session string
	timeout time.Duration
	now     func() time.Time
}

// NewMQTT wraps an already connected client. Every message carries a
// session id so consumers can tell streamer restarts apart.
func NewMQTT(client Publisher, topics Topics) *MQTT {
	return &MQTT{
		client:  client,
		topics:  topics,
		session: uuid.NewString(),
		timeout: 2 * time.Second,
		now:     time.Now,
	}
}

// Session returns the id stamped on every reading.
func (m *MQTT) Session() string {
	return m.session
}

func (m *MQTT) publish(topic string, retained bool, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal (%s): %w", topic, err)
	}
	token := m.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("MQTT publish (%s): timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT publish (%s): %w", topic, err)
	}
	return nil
}

func (m *MQTT) Reading(s dot.Sensor, r dot.Reading) error {
	msg := ReadingMessage{
		SensorID:   s.ID,
		Address:    s.Address,
		Session:    m.session,
		ReceivedAt: m.now(),
		Reading:    r,
	}
	return m.publish(Expand(m.topics.Readings, s.ID), false, msg)
}

func (m *MQTT) Variance(s dot.Sensor, axis analysis.Axis) error {
	msg := VarianceMessage{SensorID: s.ID, Address: s.Address, Axis: axis, Time: m.now()}
	return m.publish(Expand(m.topics.Variance, s.ID), true, msg)
}

func (m *MQTT) Battery(s dot.Sensor, b dot.Battery) error {
	msg := BatteryMessage{
		SensorID: s.ID,
		Address:  s.Address,
		Level:    b.Level,
		Charging: b.Charging,
		Time:     m.now(),
	}
	return m.publish(Expand(m.topics.Battery, s.ID), true, msg)
}

func (m *MQTT) BatteryError(s dot.Sensor, err error) error {
	msg := BatteryMessage{SensorID: s.ID, Address: s.Address, Error: err.Error(), Time: m.now()}
	return m.publish(Expand(m.topics.Battery, s.ID), true, msg)
}
