// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/relabs-tech/dot_bridge/internal/sink"
)

var dashboardHeader = []string{"ID", "Address", "Timestamp", "Acceleration", "Euler", "Max var", "Battery"}

type boardRow struct {
	address   string
	timestamp string
	acc       string
	euler     string
	axis      string
	battery   string
}

// board keeps one row per sensor for the dashboard table.
type board struct {
	mu   sync.Mutex
	rows map[int]*boardRow
}

func newBoard() *board {
	return &board{rows: make(map[int]*boardRow)}
}

func (b *board) row(id int) *boardRow {
	r, ok := b.rows[id]
	if !ok {
		r = &boardRow{timestamp: "-", acc: "-", euler: "-", axis: "-", battery: "-"}
		b.rows[id] = r
	}
	return r
}

func (b *board) reading(payload []byte) error {
	var m sink.ReadingMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("reading unmarshal error: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.row(m.SensorID)
	r.address = m.Address
	r.timestamp = fmt.Sprintf("%d", m.Timestamp)
	a := m.Acceleration
	r.acc = fmt.Sprintf("%.2f, %.2f, %.2f", a.X, a.Y, a.Z)
	if q := m.Orientation; q != nil {
		e := q.Euler()
		r.euler = fmt.Sprintf("%.1f, %.1f, %.1f", e.Roll, e.Pitch, e.Yaw)
	}
	return nil
}

func (b *board) variance(payload []byte) error {
	var m sink.VarianceMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("variance unmarshal error: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.row(m.SensorID).axis = string(m.Axis)
	return nil
}

func (b *board) battery(payload []byte) error {
	var m sink.BatteryMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("battery unmarshal error: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.row(m.SensorID)
	switch {
	case m.Error != "":
		r.battery = m.Error
	case m.Charging:
		r.battery = fmt.Sprintf("%d%% (charging)", m.Level)
	default:
		r.battery = fmt.Sprintf("%d%%", m.Level)
	}
	return nil
}

// table renders the rows ordered by sensor id, header first.
func (b *board) table() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]int, 0, len(b.rows))
	for id := range b.rows {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := [][]string{dashboardHeader}
	for _, id := range ids {
		r := b.rows[id]
		out = append(out, []string{fmt.Sprintf("%d", id), r.address, r.timestamp, r.acc, r.euler, r.axis, r.battery})
	}
	return out
}

func runDashboard(ctx context.Context, b *board) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("failed to initialize termui: %w", err)
	}
	defer ui.Close()

	table := widgets.NewTable()
	table.Title = "Xsens DOT (q to quit)"
	table.ColumnWidths = []int{4, 19, 12, 22, 22, 8, 16}
	table.TextStyle = ui.NewStyle(ui.ColorWhite)
	table.TextAlignment = ui.AlignRight
	table.RowSeparator = false
	table.SetRect(0, 0, 106, 12)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	uiEvents := ui.PollEvents()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-uiEvents:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			}
		case <-ticker.C:
			table.Rows = b.table()
			ui.Render(table)
		}
	}
}
