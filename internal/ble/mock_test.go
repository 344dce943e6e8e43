// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ble

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relabs-tech/dot_bridge/internal/dot"
)

func TestMockDialer_Streams(t *testing.T) {
	d := &MockDialer{
		Variant:        dot.VariantFreeAccelerationQuaternion,
		Rate:           time.Millisecond,
		MalformedEvery: 3,
		Battery:        dot.Battery{Level: 64, Charging: true},
	}
	conn, err := d.Dial(context.Background(), "d4:22:cd:00:a6:83")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Disconnect()

	payloads := make(chan []byte, 64)
	if err := conn.Subscribe(dot.ShortPayloadUUID, func(buf []byte) {
		select {
		case payloads <- buf:
		default:
		}
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := conn.Write(dot.ControlUUID, dot.StartCommand(dot.ModeFreeAcceleration)); err != nil {
		t.Fatalf("Write start: %v", err)
	}

	var good, bad int
	timeout := time.After(2 * time.Second)
	for good+bad < 9 {
		select {
		case p := <-payloads:
			_, err := dot.Decode(dot.VariantFreeAccelerationQuaternion, p)
			switch {
			case err == nil:
				good++
			case errors.Is(err, dot.ErrMalformedPayload):
				bad++
			default:
				t.Fatalf("unexpected decode error: %v", err)
			}
		case <-timeout:
			t.Fatalf("timed out after %d good / %d bad payloads", good, bad)
		}
	}
	if bad != 3 || good != 6 {
		t.Errorf("good/bad = %d/%d, want 6/3", good, bad)
	}

	st, err := ReadMeasurementState(conn)
	if err != nil || !st.Started || st.Mode != dot.ModeFreeAcceleration {
		t.Errorf("state = %+v, %v", st, err)
	}

	if err := conn.Write(dot.ControlUUID, dot.StopCommand(dot.ModeFreeAcceleration)); err != nil {
		t.Fatalf("Write stop: %v", err)
	}
	if st, _ := ReadMeasurementState(conn); st.Started {
		t.Error("still started after stop command")
	}
	b, err := ReadBattery(conn)
	if err != nil || b.Level != 64 || !b.Charging {
		t.Errorf("battery = %+v, %v", b, err)
	}
}

func TestMockDialer_UnknownCharacteristic(t *testing.T) {
	conn, err := (&MockDialer{Variant: dot.VariantFreeAcceleration}).Dial(context.Background(), "aa:bb")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if _, err := conn.Read(dot.MediumPayloadUUID); !errors.Is(err, ErrCharacteristicNotFound) {
		t.Errorf("err = %v, want ErrCharacteristicNotFound", err)
	}
	if err := conn.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if err := conn.Write(dot.ControlUUID, dot.StartCommand(dot.ModeFreeAcceleration)); err == nil {
		t.Error("expected error writing after disconnect")
	}
}

func TestMockConn_DisconnectWhileStarting(t *testing.T) {
	for i := 0; i < 20; i++ {
		conn, err := (&MockDialer{Variant: dot.VariantFreeAcceleration, Rate: time.Millisecond}).Dial(context.Background(), "aa:bb")
		if err != nil {
			t.Fatalf("Dial: %v", err)
		}
		var count atomic.Int64
		if err := conn.Subscribe(dot.ShortPayloadUUID, func([]byte) { count.Add(1) }); err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		start := dot.StartCommand(dot.ModeFreeAcceleration)
		if err := conn.Write(dot.ControlUUID, start); err != nil {
			t.Fatalf("Write start: %v", err)
		}

		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_ = conn.Write(dot.ControlUUID, dot.StopCommand(dot.ModeFreeAcceleration))
			}()
			go func() {
				defer wg.Done()
				_ = conn.Write(dot.ControlUUID, start)
			}()
		}
		if err := conn.Disconnect(); err != nil {
			t.Fatalf("Disconnect: %v", err)
		}
		wg.Wait()

		if err := conn.Write(dot.ControlUUID, start); err == nil {
			t.Fatal("expected error writing after disconnect")
		}
		before := count.Load()
		time.Sleep(10 * time.Millisecond)
		if after := count.Load(); after != before {
			t.Fatalf("run %d: %d notifications after disconnect", i, after-before)
		}
	}
}

func TestMockDialer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&MockDialer{Variant: dot.VariantFreeAcceleration}).Dial(ctx, "aa:bb"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
