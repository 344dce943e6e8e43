// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sink

import (
	"errors"
	"fmt"

	"github.com/hypebeast/go-osc/osc"

	"github.com/relabs-tech/dot_bridge/internal/analysis"
	"github.com/relabs-tech/dot_bridge/internal/dot"
)

// OSC sends every value as its own OSC message over UDP.
//
// Address layout, with prefix "/sensor_{id}" expanded per sensor and an
// optional acceleration path (e.g. "/acc"):
//
//	<prefix><acc>/x, /y, /z     free acceleration (float32)
//	<prefix>/timestamp          sensor clock in µs (int64)
//	<prefix>/quat/w|x|y|z       orientation (float32)
//	<prefix>/gyro/x|y|z         angular velocity (float32)
//	<prefix>/extra/x|y|z        extra vector (float32)
//	<prefix>/max_variance_axis  "x", "y" or "z"
//	<prefix>/battery/level      int32 percent
//	<prefix>/battery/charging   int32 0/1
//	<prefix>/battery/error      string
//
// An empty prefix with acc "/acc" gives the single sensor layout
// /acc/x, /gyro/x, /timestamp.
type OSC struct {
	client *osc.Client
	prefix string
	acc    string
}

// NewOSC creates a sink sending to host:port. go-osc's client is
// stateless per Send, so one instance serves all sessions.
func NewOSC(host string, port int, prefix, acc string) *OSC {
	return &OSC{client: osc.NewClient(host, port), prefix: prefix, acc: acc}
}

func (o *OSC) addr(id int, suffix string) string {
	if id <= 0 {
		return suffix
	}
	return Expand(o.prefix, id) + suffix
}

func (o *OSC) send(addr string, args ...interface{}) error {
	if err := o.client.Send(osc.NewMessage(addr, args...)); err != nil {
		return fmt.Errorf("osc send %s: %w", addr, err)
	}
	return nil
}

func (o *OSC) sendVec3(id int, base string, v dot.Vec3) error {
	return errors.Join(
		o.send(o.addr(id, base+"/x"), v.X),
		o.send(o.addr(id, base+"/y"), v.Y),
		o.send(o.addr(id, base+"/z"), v.Z),
	)
}

func (o *OSC) Reading(s dot.Sensor, r dot.Reading) error {
	errs := []error{
		o.sendVec3(s.ID, o.acc, r.Acceleration),
		o.send(o.addr(s.ID, "/timestamp"), int64(r.Timestamp)),
	}
	if q := r.Orientation; q != nil {
		errs = append(errs,
			o.send(o.addr(s.ID, "/quat/w"), q.W),
			o.send(o.addr(s.ID, "/quat/x"), q.X),
			o.send(o.addr(s.ID, "/quat/y"), q.Y),
			o.send(o.addr(s.ID, "/quat/z"), q.Z),
		)
	}
	if g := r.AngularVelocity; g != nil {
		errs = append(errs, o.sendVec3(s.ID, "/gyro", *g))
	}
	if e := r.Extra; e != nil {
		errs = append(errs, o.sendVec3(s.ID, "/extra", *e))
	}
	return errors.Join(errs...)
}

func (o *OSC) Variance(s dot.Sensor, axis analysis.Axis) error {
	return o.send(o.addr(s.ID, "/max_variance_axis"), string(axis))
}

func (o *OSC) Battery(s dot.Sensor, b dot.Battery) error {
	charging := int32(0)
	if b.Charging {
		charging = 1
	}
	return errors.Join(
		o.send(o.addr(s.ID, "/battery/level"), int32(b.Level)),
		o.send(o.addr(s.ID, "/battery/charging"), charging),
	)
}

func (o *OSC) BatteryError(s dot.Sensor, err error) error {
	return o.send(o.addr(s.ID, "/battery/error"), err.Error())
}
