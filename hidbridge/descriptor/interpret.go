package descriptor

import (
	"dio.wtf/hidbridge/hidbridge/log"
)

// item is one unit of the descriptor grammar: a 1-byte prefix carrying
// size/type/tag plus up to four little-endian data bytes.
type item struct {
	typ  uint8
	tag  uint8
	size int // declared data byte width
	data uint32
}

// itemReader is a bounds-checked cursor over the raw descriptor. A short
// data read accumulates only the bytes still in the buffer; the missing
// high bytes stay zero.
type itemReader struct {
	buf []byte
	pos int
}

func (r *itemReader) next() (it item, ok bool) {
	if r.pos >= len(r.buf) {
		return item{}, false
	}
	prefix := r.buf[r.pos]
	r.pos++

	it.typ = (prefix >> 2) & 0x3
	it.tag = prefix >> 4
	it.size = int(prefix & 0x3)
	if it.size == 3 {
		it.size = 4
	}
	for j := 0; j < it.size && r.pos < len(r.buf); j++ {
		it.data |= uint32(r.buf[r.pos]) << (j * 8)
		r.pos++
	}
	return it, true
}

// signed reinterprets the item data as a two's-complement value of the
// declared byte width when its top bit is set, else widens it unsigned.
func (it item) signed() int32 {
	switch {
	case it.size == 1 && it.data&0x80 != 0:
		return int32(int8(it.data))
	case it.size == 2 && it.data&0x8000 != 0:
		return int32(int16(it.data))
	default:
		return int32(it.data)
	}
}

// Interpret parses a raw report descriptor into the interface's layout
// table. It never fails hard: a truncated descriptor is read as far as it
// goes, and capacity overflows drop the excess with a log.
func Interpret(desc []byte, iface int) *LayoutTable {
	table := &LayoutTable{Interface: iface}
	current, _ := table.lookupOrCreate(0)

	var (
		usagePage   uint16
		reportSize  uint8
		reportCount uint8
		logicalMin  int32
		logicalMax  int32
		reportID    uint8

		usage    uint16
		usageMin uint16
		usageMax uint16
		hasRange bool

		depth int
	)

	r := itemReader{buf: desc}
	for {
		it, ok := r.next()
		if !ok {
			break
		}

		switch it.typ {
		case itemTypeMain:
			switch it.tag {
			case tagInput, tagOutput:
				if reportID != 0 {
					layout, ok := table.lookupOrCreate(reportID)
					if !ok {
						log.WarnF("too many reports for interface %d, dropping report id %d", iface, reportID)
						continue
					}
					current = layout
				}

				constant := it.data&0x01 != 0
				variable := it.data&0x02 != 0
				relative := it.data&0x04 != 0

				base := Field{
					UsagePage:   usagePage,
					ReportSize:  reportSize,
					ReportCount: reportCount,
					LogicalMin:  logicalMin,
					LogicalMax:  logicalMax,
					Relative:    relative,
				}

				switch {
				case constant:
					// Padding: one aggregate field with no usage.
					pad := base
					pad.Constant = true
					pad.Relative = false
					pad.LogicalMin = 0
					pad.LogicalMax = 0
					pad.BitSize = uint16(reportSize) * uint16(reportCount)
					emit(current, pad, iface)
				case !variable && hasRange:
					// Array selector spanning the whole usage range.
					arr := base
					arr.Usage = usageMin
					arr.UsageMaximum = usageMax
					arr.Array = true
					arr.BitSize = uint16(reportSize) * uint16(reportCount)
					emit(current, arr, iface)
				case variable && hasRange:
					// One field per usage; a count beyond the range size
					// is truncated to the range.
					rangeSize := usageMax - usageMin + 1
					for j := uint16(0); j < uint16(reportCount) && j < rangeSize; j++ {
						f := base
						f.Usage = usageMin + j
						f.ReportCount = 1
						f.Variable = true
						f.BitSize = uint16(reportSize)
						if !emit(current, f, iface) {
							break
						}
					}
				default:
					for j := 0; j < int(reportCount); j++ {
						f := base
						if len(current.usageStack) > j {
							f.Usage = current.usageStack[j]
						} else if len(current.usageStack) > 0 {
							f.Usage = current.usageStack[len(current.usageStack)-1]
						} else {
							f.Usage = usage
						}
						f.ReportCount = 1
						f.Variable = variable
						f.Array = !variable
						f.BitSize = uint16(reportSize)
						if !emit(current, f, iface) {
							break
						}
					}
				}

				current.resetUsages()
				hasRange = false
				usageMin = 0
				usageMax = 0
			case tagCollection:
				if depth < MaxCollectionDepth {
					depth++
				}
			case tagEndCollection:
				if depth > 0 {
					depth--
				}
			}
		case itemTypeGlobal:
			switch it.tag {
			case tagUsagePage:
				usagePage = uint16(it.data)
			case tagLogicalMin:
				logicalMin = it.signed()
			case tagLogicalMax:
				logicalMax = it.signed()
			case tagReportSize:
				reportSize = uint8(it.data)
			case tagReportID:
				reportID = uint8(it.data)
				// Select the layout right away so following locals land
				// on its usage stack.
				if reportID != 0 {
					if layout, ok := table.lookupOrCreate(reportID); ok {
						current = layout
					} else {
						log.WarnF("too many reports for interface %d, dropping report id %d", iface, reportID)
					}
				}
			case tagReportCount:
				reportCount = uint8(it.data)
			}
		case itemTypeLocal:
			switch it.tag {
			case tagUsage:
				current.pushUsage(uint16(it.data))
				usage = uint16(it.data)
			case tagUsageMin:
				usageMin = uint16(it.data)
				hasRange = true
			case tagUsageMax:
				usageMax = uint16(it.data)
				hasRange = true
			}
		}
	}

	for _, l := range table.Reports() {
		log.DebugF("interface %d report id %d: %d fields, %d bits", iface, l.ID, len(l.Fields), l.TotalBits)
	}
	return table
}

func emit(layout *ReportLayout, f Field, iface int) bool {
	if !layout.add(f) {
		log.WarnF("field capacity exhausted for interface %d report id %d, dropping field", iface, layout.ID)
		return false
	}
	return true
}
