// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sink

import (
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/hypebeast/go-osc/osc"

	"github.com/relabs-tech/dot_bridge/internal/analysis"
	"github.com/relabs-tech/dot_bridge/internal/dot"
)

var sensor1 = dot.Sensor{ID: 1, Address: "D4:22:CD:00:00:01"}

func TestExpandAndWildcard(t *testing.T) {
	if got := Expand("/sensor_{id}", 3); got != "/sensor_3" {
		t.Errorf("Expand = %q", got)
	}
	if got := Wildcard("dot/{id}/readings"); got != "dot/+/readings" {
		t.Errorf("Wildcard = %q", got)
	}
	if got := Expand("static", 3); got != "static" {
		t.Errorf("Expand without placeholder = %q", got)
	}
}

func TestFormatReading(t *testing.T) {
	r := dot.Reading{Timestamp: 42, Acceleration: dot.Vec3{X: 1, Y: -2, Z: 0.5}}
	line := FormatReading(1, r)
	for _, want := range []string{"[DOT-1]", "42", "1.000", "-2.000", "0.500"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "Quat") {
		t.Errorf("line %q shows a quaternion that was not decoded", line)
	}

	r.Orientation = &dot.Quaternion{W: 1}
	if line := FormatReading(1, r); !strings.Contains(line, "Quat") || !strings.Contains(line, "R=") {
		t.Errorf("line %q missing orientation", line)
	}
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	if err := c.Battery(sensor1, dot.Battery{Level: 77, Charging: true}); err != nil {
		t.Fatal(err)
	}
	if err := c.Variance(sensor1, analysis.AxisY); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Battery: 77% | Charging: Yes") {
		t.Errorf("battery line missing in %q", out)
	}
	if !strings.Contains(out, "max variance: y") {
		t.Errorf("variance line missing in %q", out)
	}
}

type recorder struct {
	readings int
	err      error
}

func (r *recorder) Reading(dot.Sensor, dot.Reading) error    { r.readings++; return r.err }
func (r *recorder) Variance(dot.Sensor, analysis.Axis) error { return r.err }
func (r *recorder) Battery(dot.Sensor, dot.Battery) error    { return r.err }
func (r *recorder) BatteryError(dot.Sensor, error) error     { return r.err }

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recorder{}, &recorder{err: boom}
	m := Multi{a, b}

	err := m.Reading(sensor1, dot.Reading{})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if a.readings != 1 || b.readings != 1 {
		t.Errorf("a=%d b=%d, want both delivered", a.readings, b.readings)
	}
	if err := (Multi{a}).Variance(sensor1, analysis.AxisX); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

type token struct{ err error }

func (t token) Wait() bool                     { return true }
func (t token) WaitTimeout(time.Duration) bool { return true }
func (t token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t token) Error() error { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic, retained, payload.([]byte)})
	return token{f.err}
}

func TestMQTT_Reading(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMQTT(pub, Topics{Readings: "dot/{id}/readings", Variance: "dot/{id}/variance", Battery: "dot/{id}/battery"})
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	r := dot.Reading{Timestamp: 1000, Acceleration: dot.Vec3{X: 1, Y: 2, Z: 3}, Orientation: &dot.Quaternion{W: 1}}
	if err := m.Reading(sensor1, r); err != nil {
		t.Fatal(err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.msgs))
	}
	p := pub.msgs[0]
	if p.topic != "dot/1/readings" || p.retained {
		t.Errorf("topic %q retained %v", p.topic, p.retained)
	}

	var got ReadingMessage
	if err := json.Unmarshal(p.payload, &got); err != nil {
		t.Fatal(err)
	}
	if got.SensorID != 1 || got.Address != sensor1.Address || got.Session != m.Session() {
		t.Errorf("header = %+v", got)
	}
	if !got.ReceivedAt.Equal(fixed) || got.Timestamp != 1000 || got.Acceleration != r.Acceleration {
		t.Errorf("body = %+v", got)
	}
	if got.Orientation == nil || got.Orientation.W != 1 {
		t.Errorf("orientation = %v", got.Orientation)
	}
	if got.AngularVelocity != nil {
		t.Errorf("gyro should be omitted, got %v", got.AngularVelocity)
	}
}

func TestMQTT_BatteryAndErrors(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMQTT(pub, Topics{Battery: "dot/{id}/battery"})

	if err := m.BatteryError(dot.Sensor{ID: 2}, ErrNotConnected); err != nil {
		t.Fatal(err)
	}
	var got BatteryMessage
	if err := json.Unmarshal(pub.msgs[0].payload, &got); err != nil {
		t.Fatal(err)
	}
	if pub.msgs[0].topic != "dot/2/battery" || got.Error != "Not connected" || !pub.msgs[0].retained {
		t.Errorf("got %+v on %q", got, pub.msgs[0].topic)
	}

	pub.err = errors.New("broker gone")
	if err := m.Battery(sensor1, dot.Battery{Level: 5}); err == nil {
		t.Error("expected publish error")
	}
}

func listenOSC(t *testing.T) (net.PacketConn, int) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("udp unavailable: %v", err)
	}
	t.Cleanup(func() { pc.Close() })
	return pc, pc.LocalAddr().(*net.UDPAddr).Port
}

// readOSC collects n single-argument messages keyed by address.
func readOSC(t *testing.T, pc net.PacketConn, n int) map[string]interface{} {
	t.Helper()
	got := map[string]interface{}{}
	buf := make([]byte, 1024)
	for len(got) < n {
		_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
		m, _, err := pc.ReadFrom(buf)
		if err != nil {
			t.Fatalf("read after %d messages: %v", len(got), err)
		}
		pkt, err := osc.ParsePacket(string(buf[:m]))
		if err != nil {
			t.Fatal(err)
		}
		msg, ok := pkt.(*osc.Message)
		if !ok || len(msg.Arguments) != 1 {
			t.Fatalf("unexpected packet %v", pkt)
		}
		got[msg.Address] = msg.Arguments[0]
	}
	return got
}

func TestOSC_Reading(t *testing.T) {
	pc, port := listenOSC(t)

	o := NewOSC("127.0.0.1", port, "/sensor_{id}", "")
	r := dot.Reading{Timestamp: 7, Acceleration: dot.Vec3{X: 1.5, Y: -1, Z: 0.25}}
	if err := o.Reading(dot.Sensor{ID: 2}, r); err != nil {
		t.Fatal(err)
	}

	got := readOSC(t, pc, 4)
	want := map[string]interface{}{
		"/sensor_2/x":         float32(1.5),
		"/sensor_2/y":         float32(-1),
		"/sensor_2/z":         float32(0.25),
		"/sensor_2/timestamp": int64(7),
	}
	for addr, v := range want {
		if got[addr] != v {
			t.Errorf("%s = %v (%T), want %v", addr, got[addr], got[addr], v)
		}
	}
}

func TestOSC_UnprefixedAccPath(t *testing.T) {
	pc, port := listenOSC(t)

	o := NewOSC("127.0.0.1", port, "", "/acc")
	r := dot.Reading{
		Timestamp:       9,
		Acceleration:    dot.Vec3{X: 1, Y: 2, Z: 3},
		AngularVelocity: &dot.Vec3{X: 4, Y: 5, Z: 6},
		Extra:           &dot.Vec3{X: 7, Y: 8, Z: 9},
	}
	if err := o.Reading(dot.Sensor{ID: 1}, r); err != nil {
		t.Fatal(err)
	}

	got := readOSC(t, pc, 10)
	want := map[string]interface{}{
		"/acc/x":     float32(1),
		"/acc/z":     float32(3),
		"/gyro/y":    float32(5),
		"/extra/z":   float32(9),
		"/timestamp": int64(9),
	}
	for addr, v := range want {
		if got[addr] != v {
			t.Errorf("%s = %v (%T), want %v", addr, got[addr], got[addr], v)
		}
	}
	if _, ok := got["/x"]; ok {
		t.Error("acceleration sent without the acc path")
	}
}
