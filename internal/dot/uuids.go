// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dot

import (
	"tinygo.org/x/bluetooth"
)

// Xsens DOT GATT layout.
var (
	MeasurementServiceUUID = mustUUID("15172000-4947-11e9-8646-d663bd873d93")
	ControlUUID            = mustUUID("15172001-4947-11e9-8646-d663bd873d93")
	LongPayloadUUID        = mustUUID("15172002-4947-11e9-8646-d663bd873d93")
	MediumPayloadUUID      = mustUUID("15172003-4947-11e9-8646-d663bd873d93")
	ShortPayloadUUID       = mustUUID("15172004-4947-11e9-8646-d663bd873d93")

	BatteryServiceUUID = mustUUID("15173000-4947-11e9-8646-d663bd873d93")
	BatteryUUID        = mustUUID("15173001-4947-11e9-8646-d663bd873d93")
)

// DeviceName is the advertised local name of every DOT.
const DeviceName = "Xsens DOT"

// UUID returns the notification characteristic for p.
func (p PayloadSize) UUID() bluetooth.UUID {
	switch p {
	case PayloadMedium:
		return MediumPayloadUUID
	case PayloadLong:
		return LongPayloadUUID
	}
	return ShortPayloadUUID
}

func mustUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}
