// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"tinygo.org/x/bluetooth"

	"github.com/relabs-tech/dot_bridge/internal/dot"
)

// EnvPrefix prefixes the environment variables that override file values,
// e.g. DOT_OSC_PORT overrides OSC_PORT.
const EnvPrefix = "DOT"

// Config holds all application configuration values.
type Config struct {
	// Sensors
	DOTAddresses   []string
	ScanTimeout    time.Duration
	StreamDuration time.Duration // 0 streams until interrupted

	// Payload
	PayloadMode           dot.PayloadMode
	PayloadCharacteristic dot.PayloadSize // 0 follows PayloadMode
	PayloadVariant        dot.Variant
	NotifyBuffer          int
	VarianceWindow        int // samples, 0 disables

	// OSC
	OSCEnabled    bool
	OSCHost       string
	OSCPort       int
	OSCListenAddr string // battery status requests, empty disables
	OSCPrefix     string // "{id}" expands to the sensor id, may be empty
	OSCAccPath    string // segment before /x /y /z of acceleration, e.g. "/acc"

	// MQTT
	MQTTEnabled          bool
	MQTTBroker           string
	MQTTClientIDStreamer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string

	// Topics
	TopicReadings string
	TopicVariance string
	TopicBattery  string

	// Console
	ConsoleEnabled bool

	// Web Server
	WebServerPort int

	// Metrics
	MetricsAddr string // empty disables

	// Mock sensors
	MockMalformedEvery int

	Debug bool
}

var defaults = map[string]string{
	"DOT_ADDRESSES":           "",
	"SCAN_TIMEOUT":            "20s",
	"STREAM_DURATION":         "0",
	"PAYLOAD_MODE":            "free_acceleration",
	"PAYLOAD_CHARACTERISTIC":  "",
	"PAYLOAD_VARIANT":         "free_acceleration_padded",
	"NOTIFY_BUFFER":           "256",
	"VARIANCE_WINDOW":         "10",
	"OSC_ENABLED":             "true",
	"OSC_HOST":                "127.0.0.1",
	"OSC_PORT":                "5555",
	"OSC_LISTEN_ADDR":         "0.0.0.0:5556",
	"OSC_PREFIX":              "/sensor_{id}",
	"OSC_ACC_PATH":            "",
	"MQTT_ENABLED":            "false",
	"MQTT_BROKER":             "tcp://localhost:1883",
	"MQTT_CLIENT_ID_STREAMER": "dot-bridge-streamer",
	"MQTT_CLIENT_ID_CONSOLE":  "dot-bridge-console",
	"MQTT_CLIENT_ID_WEB":      "dot-bridge-web",
	"TOPIC_READINGS":          "dot/{id}/readings",
	"TOPIC_VARIANCE":          "dot/{id}/variance",
	"TOPIC_BATTERY":           "dot/{id}/battery",
	"CONSOLE_ENABLED":         "true",
	"WEB_SERVER_PORT":         "8080",
	"METRICS_ADDR":            ":9100",
	"MOCK_MALFORMED_EVERY":    "0",
	"DEBUG":                   "false",
}

// Package-level singleton: InitGlobal sets it once, Get reads it under the
// read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads a KEY=VALUE file (empty path: defaults only) and applies
// DOT_-prefixed environment overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := checkKeys(v.AllKeys()); err != nil {
			return nil, err
		}
	}

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	cfg := &Config{}
	keys := make([]string, 0, len(defaults))
	for key := range defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := strings.TrimSpace(v.GetString(key))
		if err := cfg.setValue(key, value); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func checkKeys(keys []string) error {
	for _, k := range keys {
		if _, ok := defaults[strings.ToUpper(k)]; !ok {
			return fmt.Errorf("unknown config key: %q", strings.ToUpper(k))
		}
	}
	return nil
}

// setValue sets a config field based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Sensors
	case "DOT_ADDRESSES":
		c.DOTAddresses = splitList(value)
	case "SCAN_TIMEOUT":
		c.ScanTimeout, err = parseDuration(value)
	case "STREAM_DURATION":
		c.StreamDuration, err = parseDuration(value)

	// Payload
	case "PAYLOAD_MODE":
		c.PayloadMode, err = dot.ParsePayloadMode(value)
	case "PAYLOAD_CHARACTERISTIC":
		if value != "" {
			c.PayloadCharacteristic, err = dot.ParsePayloadSize(value)
		}
	case "PAYLOAD_VARIANT":
		c.PayloadVariant, err = dot.ParseVariant(value)
	case "NOTIFY_BUFFER":
		c.NotifyBuffer, err = strconv.Atoi(value)
	case "VARIANCE_WINDOW":
		c.VarianceWindow, err = strconv.Atoi(value)

	// OSC
	case "OSC_ENABLED":
		c.OSCEnabled, err = strconv.ParseBool(value)
	case "OSC_HOST":
		c.OSCHost = value
	case "OSC_PORT":
		c.OSCPort, err = strconv.Atoi(value)
	case "OSC_LISTEN_ADDR":
		c.OSCListenAddr = value
	case "OSC_PREFIX":
		c.OSCPrefix = value
	case "OSC_ACC_PATH":
		c.OSCAccPath = value

	// MQTT
	case "MQTT_ENABLED":
		c.MQTTEnabled, err = strconv.ParseBool(value)
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_STREAMER":
		c.MQTTClientIDStreamer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_READINGS":
		c.TopicReadings = value
	case "TOPIC_VARIANCE":
		c.TopicVariance = value
	case "TOPIC_BATTERY":
		c.TopicBattery = value

	case "CONSOLE_ENABLED":
		c.ConsoleEnabled, err = strconv.ParseBool(value)
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = strconv.Atoi(value)
	case "METRICS_ADDR":
		c.MetricsAddr = value
	case "MOCK_MALFORMED_EVERY":
		c.MockMalformedEvery, err = strconv.Atoi(value)
	case "DEBUG":
		c.Debug, err = strconv.ParseBool(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return nil
}

func parseDuration(value string) (time.Duration, error) {
	if value == "0" {
		return 0, nil
	}
	return time.ParseDuration(value)
}

func splitList(value string) []string {
	var out []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// validate checks ranges and required fields.
func (c *Config) validate() error {
	if c.ScanTimeout <= 0 {
		return fmt.Errorf("SCAN_TIMEOUT must be positive")
	}
	if c.StreamDuration < 0 {
		return fmt.Errorf("STREAM_DURATION must not be negative")
	}
	if c.NotifyBuffer <= 0 {
		return fmt.Errorf("NOTIFY_BUFFER must be positive")
	}
	if c.VarianceWindow < 0 {
		return fmt.Errorf("VARIANCE_WINDOW must not be negative")
	}
	if c.MockMalformedEvery < 0 {
		return fmt.Errorf("MOCK_MALFORMED_EVERY must not be negative")
	}
	if c.OSCEnabled {
		if c.OSCHost == "" {
			return fmt.Errorf("OSC_HOST is required when OSC_ENABLED")
		}
		if err := checkPort("OSC_PORT", c.OSCPort); err != nil {
			return err
		}
		if c.OSCPrefix != "" && !strings.HasPrefix(c.OSCPrefix, "/") {
			return fmt.Errorf("OSC_PREFIX must be empty or start with '/'")
		}
		if c.OSCAccPath != "" && !strings.HasPrefix(c.OSCAccPath, "/") {
			return fmt.Errorf("OSC_ACC_PATH must be empty or start with '/'")
		}
	}
	if c.MQTTEnabled && c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required when MQTT_ENABLED")
	}
	if err := checkPort("WEB_SERVER_PORT", c.WebServerPort); err != nil {
		return err
	}
	return nil
}

func checkPort(key string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s %d out of range 1-65535", key, port)
	}
	return nil
}

// payloadSize is the notification characteristic in use.
func (c *Config) payloadSize() dot.PayloadSize {
	if c.PayloadCharacteristic != 0 {
		return c.PayloadCharacteristic
	}
	return c.PayloadMode.PayloadSize()
}

// Characteristic is the payload characteristic to subscribe to.
func (c *Config) Characteristic() bluetooth.UUID {
	return c.payloadSize().UUID()
}

// CheckPayload reports when PAYLOAD_VARIANT cannot decode the notifications
// of the selected characteristic.
func (c *Config) CheckPayload() error {
	p := c.payloadSize()
	if c.PayloadVariant.Size() == p.Bytes() {
		return nil
	}
	return fmt.Errorf("PAYLOAD_VARIANT %s expects %d bytes but the %s characteristic (PAYLOAD_MODE %s) notifies %d bytes; every notification will be reported malformed",
		c.PayloadVariant, c.PayloadVariant.Size(), p, c.PayloadMode, p.Bytes())
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads; later calls return nil.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
