// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stream

import (
	"sort"
	"sync"

	"github.com/relabs-tech/dot_bridge/internal/ble"
	"github.com/relabs-tech/dot_bridge/internal/dot"
)

// Connected is a sensor with a live connection.
type Connected struct {
	Sensor dot.Sensor
	Conn   ble.Conn
}

// Registry tracks the sensors that currently have a session running.
type Registry struct {
	mu    sync.RWMutex
	conns map[int]Connected
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[int]Connected)}
}

// Add records a live connection.
func (r *Registry) Add(s dot.Sensor, c ble.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[s.ID] = Connected{Sensor: s, Conn: c}
}

// Remove forgets a sensor.
func (r *Registry) Remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
}

// Lookup returns the connection of one sensor.
func (r *Registry) Lookup(id int) (Connected, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Connected returns all live connections ordered by sensor id.
func (r *Registry) Connected() []Connected {
	r.mu.RLock()
	out := make([]Connected, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Sensor.ID < out[j].Sensor.ID })
	return out
}
