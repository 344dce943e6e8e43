// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/dot_bridge/internal/config"
	"github.com/relabs-tech/dot_bridge/internal/sink"
)

// RunConsoleMQTT subscribes to the streamer's topics and prints every
// message, or renders a live table when dashboard is set.
func RunConsoleMQTT(ctx context.Context, w io.Writer, dashboard bool) error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	var c consumer
	if dashboard {
		c = newBoard()
	} else {
		c = &printer{w: w}
	}

	topics := []struct {
		template string
		handle   func(payload []byte) error
	}{
		{cfg.TopicReadings, c.reading},
		{cfg.TopicVariance, c.variance},
		{cfg.TopicBattery, c.battery},
	}
	for _, t := range topics {
		handle := t.handle
		topic := sink.Wildcard(t.template)
		err := subscribe(client, topic, func(_ mqtt.Client, msg mqtt.Message) {
			if err := handle(msg.Payload()); err != nil {
				log.Warnf("console: %s: %v", msg.Topic(), err)
			}
		})
		if err != nil {
			return err
		}
	}

	if b, ok := c.(*board); ok {
		return runDashboard(ctx, b)
	}
	<-ctx.Done()
	log.Info("console: shutting down")
	return nil
}

// consumer turns MQTT payloads into output.
type consumer interface {
	reading(payload []byte) error
	variance(payload []byte) error
	battery(payload []byte) error
}

// printer writes one line per message.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) println(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintln(p.w, line)
	return err
}

func (p *printer) reading(payload []byte) error {
	var m sink.ReadingMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("reading unmarshal error: %w", err)
	}
	return p.println(sink.FormatReading(m.SensorID, m.Reading))
}

func (p *printer) variance(payload []byte) error {
	var m sink.VarianceMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("variance unmarshal error: %w", err)
	}
	return p.println(fmt.Sprintf("[DOT-%d] axis with max variance: %s", m.SensorID, m.Axis))
}

func (p *printer) battery(payload []byte) error {
	var m sink.BatteryMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("battery unmarshal error: %w", err)
	}
	if m.Error != "" {
		return p.println(fmt.Sprintf("[DOT-%d] Battery read error: %s", m.SensorID, m.Error))
	}
	return p.println(fmt.Sprintf("[DOT-%d] Battery: %d%% | Charging: %v", m.SensorID, m.Level, m.Charging))
}
