// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package live

import (
	"testing"

	"github.com/relabs-tech/dot_bridge/internal/dot"
	"github.com/relabs-tech/dot_bridge/internal/sink"
)

func msg(id int, ts uint32) sink.ReadingMessage {
	return sink.ReadingMessage{SensorID: id, Reading: dot.Reading{Timestamp: ts}}
}

func TestHub_Latest(t *testing.T) {
	h := NewHub()
	if _, ok := h.Get(1); ok {
		t.Fatal("empty hub returned a reading")
	}

	h.Update(msg(2, 10))
	h.Update(msg(1, 5))
	h.Update(msg(2, 20))

	got := h.Latest()
	if len(got) != 2 || got[0].SensorID != 1 || got[1].SensorID != 2 {
		t.Fatalf("Latest = %+v", got)
	}
	if got[1].Timestamp != 20 {
		t.Errorf("sensor 2 timestamp = %d, want 20", got[1].Timestamp)
	}
	if m, ok := h.Get(1); !ok || m.Timestamp != 5 {
		t.Errorf("Get(1) = %+v, %v", m, ok)
	}
}

func TestHub_Subscribe(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)

	h.Update(msg(1, 1))
	h.Update(msg(1, 2)) // buffer full, dropped for this subscriber

	if m := <-ch; m.Timestamp != 1 {
		t.Errorf("first = %+v", m)
	}
	cancel()
	cancel()
	if _, open := <-ch; open {
		t.Error("channel still open after cancel")
	}

	h.Update(msg(1, 3))
	if m, _ := h.Get(1); m.Timestamp != 3 {
		t.Errorf("latest = %+v", m)
	}
}
