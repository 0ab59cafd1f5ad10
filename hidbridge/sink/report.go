package sink

import (
	"dio.wtf/hidbridge/hidbridge/bridge"
)

// Interrupt-channel framing: DATA|Input header, then the report id the
// SDP descriptor declares, then the fixed payload.
const (
	inputReportHeader byte = 0xA1

	keyboardReportID byte = 0x01
	mouseReportID    byte = 0x02

	keyboardReportLength = 10
	mouseReportLength    = 8
)

type inputReport []byte

func (r inputReport) setKeyboard(report *bridge.KeyboardReport) {
	r[0] = inputReportHeader
	r[1] = keyboardReportID
	r[2] = report.Modifier
	r[3] = 0x00 // reserved
	copy(r[4:10], report.Keycodes[:])
}

func (r inputReport) setMouse(report *bridge.MouseReport) {
	r[0] = inputReportHeader
	r[1] = mouseReportID
	r[2] = report.Buttons
	r[3] = byte(report.X)
	r[4] = byte(report.X >> 8)
	r[5] = byte(report.Y)
	r[6] = byte(report.Y >> 8)
	r[7] = byte(report.Wheel)
}
