// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package live keeps the most recent reading of every sensor and fans new
// readings out to subscribers such as websocket clients.
package live

import (
	"sort"
	"sync"

	"github.com/relabs-tech/dot_bridge/internal/sink"
)

type Hub struct {
	mu     sync.RWMutex
	latest map[int]sink.ReadingMessage
	subs   map[chan sink.ReadingMessage]struct{}
}

func NewHub() *Hub {
	return &Hub{
		latest: make(map[int]sink.ReadingMessage),
		subs:   make(map[chan sink.ReadingMessage]struct{}),
	}
}

// Update stores m as the sensor's latest reading and offers it to every
// subscriber. Slow subscribers miss readings instead of blocking.
func (h *Hub) Update(m sink.ReadingMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest[m.SensorID] = m
	for ch := range h.subs {
		select {
		case ch <- m:
		default:
		}
	}
}

// Get returns the latest reading of one sensor.
func (h *Hub) Get(id int) (sink.ReadingMessage, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.latest[id]
	return m, ok
}

// Latest returns the latest reading of every sensor ordered by id.
func (h *Hub) Latest() []sink.ReadingMessage {
	h.mu.RLock()
	out := make([]sink.ReadingMessage, 0, len(h.latest))
	for _, m := range h.latest {
		out = append(out, m)
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out
}

// Subscribe registers a buffered channel of new readings. The returned
// function unsubscribes and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan sink.ReadingMessage, func()) {
	ch := make(chan sink.ReadingMessage, buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			h.mu.Unlock()
		})
	}
}
