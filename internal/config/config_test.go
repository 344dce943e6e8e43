// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/relabs-tech/dot_bridge/internal/dot"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dot_config.txt")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PayloadMode != dot.ModeFreeAcceleration || cfg.PayloadVariant != dot.VariantFreeAccelerationPadded {
		t.Errorf("payload = %v / %v", cfg.PayloadMode, cfg.PayloadVariant)
	}
	if cfg.ScanTimeout != 20*time.Second || cfg.StreamDuration != 0 {
		t.Errorf("timing = %v / %v", cfg.ScanTimeout, cfg.StreamDuration)
	}
	if cfg.OSCPort != 5555 || cfg.OSCPrefix != "/sensor_{id}" || !cfg.OSCEnabled {
		t.Errorf("osc = %+v", cfg)
	}
	if cfg.Characteristic() != dot.ShortPayloadUUID {
		t.Errorf("characteristic = %s, want short payload", cfg.Characteristic().String())
	}
	if len(cfg.DOTAddresses) != 0 {
		t.Errorf("addresses = %v", cfg.DOTAddresses)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
# two sensors
DOT_ADDRESSES=D4:22:CD:00:A6:83, D4:22:CD:00:A6:84
PAYLOAD_MODE=complete_quaternion
PAYLOAD_CHARACTERISTIC=short
PAYLOAD_VARIANT=free_acceleration_quaternion
STREAM_DURATION=30s
VARIANCE_WINDOW=0
MQTT_ENABLED=true
OSC_PORT=9000
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"D4:22:CD:00:A6:83", "D4:22:CD:00:A6:84"}
	if strings.Join(cfg.DOTAddresses, "|") != strings.Join(want, "|") {
		t.Errorf("addresses = %v, want %v", cfg.DOTAddresses, want)
	}
	if cfg.PayloadMode != dot.ModeCompleteQuaternion || cfg.PayloadVariant != dot.VariantFreeAccelerationQuaternion {
		t.Errorf("payload = %v / %v", cfg.PayloadMode, cfg.PayloadVariant)
	}
	// complete_quaternion is a medium mode; the explicit override wins.
	if cfg.Characteristic() != dot.ShortPayloadUUID {
		t.Errorf("characteristic = %s", cfg.Characteristic().String())
	}
	if cfg.StreamDuration != 30*time.Second || cfg.VarianceWindow != 0 || !cfg.MQTTEnabled || cfg.OSCPort != 9000 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "OSC_PORT=9000\n")
	t.Setenv("DOT_OSC_PORT", "7000")
	t.Setenv("DOT_DEBUG", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OSCPort != 7000 || !cfg.Debug {
		t.Errorf("port = %d debug = %v, want env values", cfg.OSCPort, cfg.Debug)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "FOO=bar\n", "FOO"},
		{"bad variant", "PAYLOAD_VARIANT=raw\n", "PAYLOAD_VARIANT"},
		{"bad mode", "PAYLOAD_MODE=warp\n", "PAYLOAD_MODE"},
		{"bad port", "OSC_PORT=70000\n", "OSC_PORT"},
		{"bad duration", "STREAM_DURATION=soon\n", "STREAM_DURATION"},
		{"bad bool", "MQTT_ENABLED=maybe\n", "MQTT_ENABLED"},
		{"bad prefix", "OSC_PREFIX=sensor\n", "OSC_PREFIX"},
		{"bad acc path", "OSC_ACC_PATH=acc\n", "OSC_ACC_PATH"},
		{"zero buffer", "NOTIFY_BUFFER=0\n", "NOTIFY_BUFFER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not name %s", err, tt.want)
			}
		})
	}
}

func TestLoad_UnprefixedOSC(t *testing.T) {
	cfg, err := Load(writeConfig(t, "OSC_PREFIX=\nOSC_ACC_PATH=/acc\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OSCPrefix != "" || cfg.OSCAccPath != "/acc" {
		t.Errorf("prefix = %q acc = %q", cfg.OSCPrefix, cfg.OSCAccPath)
	}
}

func TestCheckPayload(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"defaults", "", false},
		{"unpadded on short", "PAYLOAD_VARIANT=free_acceleration\n", true},
		{"medium imu", "PAYLOAD_MODE=rate_quantities\nPAYLOAD_VARIANT=medium_imu\n", false},
		{"medium imu on short override", "PAYLOAD_MODE=rate_quantities\nPAYLOAD_CHARACTERISTIC=short\nPAYLOAD_VARIANT=medium_imu\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.body))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			err = cfg.CheckPayload()
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckPayload = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "PAYLOAD_VARIANT") {
				t.Errorf("error %q does not name PAYLOAD_VARIANT", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "dot_config.txt"))
	if err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
	if len(cfg.DOTAddresses) == 0 {
		t.Error("sample config lists no sensors")
	}
}
