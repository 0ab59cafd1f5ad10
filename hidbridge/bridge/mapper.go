package bridge

import (
	"dio.wtf/hidbridge/hidbridge/descriptor"
	"dio.wtf/hidbridge/hidbridge/log"
)

// classify tags the snapshot's role from its usage semantics. Key-codes
// fields win over pointer fields when a report carries both.
func classify(s *Snapshot) Role {
	role := RoleNone
	for i := range s.Fields {
		f := s.Fields[i].Field
		if f.Constant {
			continue
		}
		switch {
		case f.UsagePage == descriptor.UsagePageKeyCodes:
			return RoleKeyboard
		case f.UsagePage == descriptor.UsagePageButtons:
			role = RoleMouse
		case f.UsagePage == descriptor.UsagePageGenericDesktop:
			switch f.Usage {
			case descriptor.UsagePointer, descriptor.UsageMouse,
				descriptor.UsageX, descriptor.UsageY, descriptor.UsageZ,
				descriptor.UsageWheel:
				role = RoleMouse
			}
		}
	}
	return role
}

// renderKeyboard builds the sink keyboard record. Variable fields set a
// modifier bit (usages 0xE0-0xE7) or contribute their usage as a keycode;
// array fields carry the keycode in each report slot of the raw bytes.
func renderKeyboard(s *Snapshot) *KeyboardReport {
	var out KeyboardReport
	keys := 0
	for i := range s.Fields {
		f := s.Fields[i].Field
		v := s.Fields[i].Value
		if f.Constant || f.UsagePage != descriptor.UsagePageKeyCodes {
			continue
		}

		switch {
		case f.Variable && f.Usage >= descriptor.UsageKeyLeftCtrl && f.Usage <= descriptor.UsageKeyRightGui:
			if v != 0 {
				out.Modifier |= 1 << (f.Usage - descriptor.UsageKeyLeftCtrl)
			}
		case f.Variable:
			if v != 0 && keys < len(out.Keycodes) {
				out.Keycodes[keys] = byte(f.Usage)
				keys++
			}
		case f.Array:
			// Each slot holds one keycode; decode them straight from the
			// raw copy since the field value aggregates the whole array.
			for j := uint16(0); j < uint16(f.ReportCount) && keys < len(out.Keycodes); j++ {
				code := descriptor.Extract(s.Raw, f.BitOffset+j*uint16(f.ReportSize), uint16(f.ReportSize))
				if code != 0 {
					out.Keycodes[keys] = byte(code)
					keys++
				}
			}
		}
	}
	return &out
}

// renderMouse builds the sink mouse record, scaling the axes by the
// configured sensitivity percentage.
func renderMouse(s *Snapshot, sensitivity int32) *MouseReport {
	var out MouseReport
	for i := range s.Fields {
		f := s.Fields[i].Field
		v := s.Fields[i].Value
		if f.Constant {
			continue
		}

		if f.UsagePage == descriptor.UsagePageButtons {
			if v != 0 && f.Usage >= 1 && f.Usage <= 8 {
				out.Buttons |= 1 << (f.Usage - 1)
			}
			continue
		}
		if f.UsagePage != descriptor.UsagePageGenericDesktop {
			continue
		}
		switch f.Usage {
		case descriptor.UsageX:
			out.X = int16(v)
		case descriptor.UsageY:
			out.Y = int16(v)
		case descriptor.UsageWheel:
			out.Wheel = int8(v)
		}
	}

	if sensitivity != 100 {
		out.X = int16(int32(out.X) * sensitivity / 100)
		out.Y = int16(int32(out.Y) * sensitivity / 100)
	}
	return &out
}

// forward renders the snapshot for its role and pushes it to the sink.
// Disconnected sinks and unclassified reports are silent no-ops.
func (b *Bridge) forward(s *Snapshot) error {
	if !b.sink.Connected() {
		log.Debug("sink not connected, skipping report")
		return nil
	}

	switch s.Role {
	case RoleKeyboard:
		return b.sink.SendKeyboardReport(renderKeyboard(s))
	case RoleMouse:
		return b.sink.SendMouseReport(renderMouse(s, b.sensitivity.Load()))
	default:
		return nil
	}
}
