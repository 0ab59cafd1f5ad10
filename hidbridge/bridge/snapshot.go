package bridge

import (
	"dio.wtf/hidbridge/hidbridge/descriptor"
)

// MaxTransferSize bounds the raw bytes kept per snapshot, matching the
// largest interrupt transfer the source hands us.
const MaxTransferSize = 64

type Role int

const (
	RoleNone Role = iota
	RoleKeyboard
	RoleMouse
)

func (r Role) String() string {
	switch r {
	case RoleKeyboard:
		return "keyboard"
	case RoleMouse:
		return "mouse"
	default:
		return "none"
	}
}

// FieldValue pairs a layout field with its decoded integer.
type FieldValue struct {
	Field *descriptor.Field
	Value int32
}

// Snapshot is one decoded transfer. Its slices point into fixed backing
// storage inside the snapshot, so it is reused, never shared: the producer
// fills a slot, the queue copies it into a pooled record, and the record
// dies when the worker releases it.
type Snapshot struct {
	Interface int
	ReportID  uint8
	Role      Role
	Fields    []FieldValue
	Raw       []byte

	fieldsBuf [descriptor.MaxReportFields]FieldValue
	rawBuf    [MaxTransferSize]byte
}

func (s *Snapshot) copyFrom(src *Snapshot) {
	s.Interface = src.Interface
	s.ReportID = src.ReportID
	s.Role = src.Role
	s.Fields = s.fieldsBuf[:len(src.Fields)]
	copy(s.Fields, src.Fields)
	s.Raw = s.rawBuf[:len(src.Raw)]
	copy(s.Raw, src.Raw)
}

// assembler fills one of two fixed slots per transfer and flips. Safe as
// long as a single producer assembles and the queue push copies the slot
// before the next call, which the bridge enforces structurally.
type assembler struct {
	slots  [2]Snapshot
	active int
}

func (a *assembler) assemble(layout *descriptor.ReportLayout, data []byte, iface int, id uint8) *Snapshot {
	slot := &a.slots[1-a.active]
	slot.Interface = iface
	slot.ReportID = id
	slot.Role = RoleNone

	slot.Fields = slot.fieldsBuf[:0]
	for i := range layout.Fields {
		f := &layout.Fields[i]
		slot.Fields = append(slot.Fields, FieldValue{
			Field: f,
			Value: descriptor.Extract(data, f.BitOffset, f.BitSize),
		})
	}

	n := len(data)
	if n > MaxTransferSize {
		n = MaxTransferSize
	}
	slot.Raw = slot.rawBuf[:n]
	copy(slot.Raw, data)

	a.active = 1 - a.active
	return slot
}
