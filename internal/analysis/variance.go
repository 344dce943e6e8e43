// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package analysis holds small per-sensor statistics computed on the
// streamed readings.
package analysis

import (
	"github.com/relabs-tech/dot_bridge/internal/dot"
)

// Axis names one acceleration axis.
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
	AxisZ Axis = "z"
)

// VarianceWindow collects acceleration samples and, every Size samples,
// reports the axis that moved the most. Not safe for concurrent use.
type VarianceWindow struct {
	size    int
	x, y, z []float64
}

// NewVarianceWindow returns a window of n samples. n <= 0 disables it.
func NewVarianceWindow(n int) *VarianceWindow {
	w := &VarianceWindow{size: n}
	if n > 0 {
		w.x = make([]float64, 0, n)
		w.y = make([]float64, 0, n)
		w.z = make([]float64, 0, n)
	}
	return w
}

// Add records one sample. When the window fills it returns the axis with the
// greatest population variance and true, then starts a fresh window.
func (w *VarianceWindow) Add(v dot.Vec3) (Axis, bool) {
	if w.size <= 0 {
		return "", false
	}

	w.x = append(w.x, float64(v.X))
	w.y = append(w.y, float64(v.Y))
	w.z = append(w.z, float64(v.Z))
	if len(w.x) < w.size {
		return "", false
	}

	axis := MaxVarianceAxis(w.x, w.y, w.z)
	w.x, w.y, w.z = w.x[:0], w.y[:0], w.z[:0]
	return axis, true
}

// Len is the number of samples currently buffered.
func (w *VarianceWindow) Len() int {
	return len(w.x)
}

// MaxVarianceAxis picks the axis with the largest variance; ties go to the
// earlier axis in x, y, z order.
func MaxVarianceAxis(x, y, z []float64) Axis {
	best, bestVar := AxisX, Variance(x)
	if vy := Variance(y); vy > bestVar {
		best, bestVar = AxisY, vy
	}
	if vz := Variance(z); vz > bestVar {
		best = AxisZ
	}
	return best
}

// Variance is the population variance of xs (0 for an empty slice).
func Variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, v := range xs {
		mean += v
	}
	mean /= float64(len(xs))

	var sum float64
	for _, v := range xs {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(xs))
}
