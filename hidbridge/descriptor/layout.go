package descriptor

// Capacity bounds. These cap memory per interface no matter what the
// descriptor claims; anything beyond them is dropped with a log.
const (
	MaxInterfaces          = 4
	MaxReportsPerInterface = 8
	MaxReportFields        = 48
	MaxCollectionDepth     = 8
)

// Field is one decoded value slot within a report. Immutable once emitted.
type Field struct {
	UsagePage    uint16
	Usage        uint16
	UsageMaximum uint16 // set only for array fields built from a usage range
	ReportSize   uint8
	ReportCount  uint8
	LogicalMin   int32
	LogicalMax   int32
	Constant     bool
	Variable     bool
	Relative     bool
	Array        bool
	BitOffset    uint16
	BitSize      uint16
}

// ReportLayout is the ordered field list for one report id. Fields sit at
// ascending, non-overlapping bit offsets and TotalBits is their sum.
type ReportLayout struct {
	ID        uint8
	Fields    []Field
	TotalBits uint16

	usageStack []uint16
}

func newReportLayout(id uint8) *ReportLayout {
	return &ReportLayout{
		ID:         id,
		Fields:     make([]Field, 0, MaxReportFields),
		usageStack: make([]uint16, 0, MaxReportFields),
	}
}

// add appends a field at the current end of the report, assigning its bit
// offset. Reports false when the field capacity is exhausted.
func (r *ReportLayout) add(f Field) bool {
	if len(r.Fields) >= MaxReportFields {
		return false
	}
	f.BitOffset = r.TotalBits
	r.TotalBits += f.BitSize
	r.Fields = append(r.Fields, f)
	return true
}

func (r *ReportLayout) pushUsage(usage uint16) {
	if len(r.usageStack) < MaxReportFields {
		r.usageStack = append(r.usageStack, usage)
	}
}

func (r *ReportLayout) resetUsages() {
	r.usageStack = r.usageStack[:0]
}

// LayoutTable holds every report layout of one interface, keyed by report
// id. Id 0 means "no id / single report" and is always present.
type LayoutTable struct {
	Interface int
	layouts   []*ReportLayout
}

// Layout returns the layout for the given report id, or nil.
func (t *LayoutTable) Layout(id uint8) *ReportLayout {
	for _, l := range t.layouts {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func (t *LayoutTable) Reports() []*ReportLayout {
	return t.layouts
}

func (t *LayoutTable) NumReports() int {
	return len(t.layouts)
}

// NumFields returns the expected field count for a report id, 0 if unknown.
func (t *LayoutTable) NumFields(id uint8) int {
	if l := t.Layout(id); l != nil {
		return len(l.Fields)
	}
	return 0
}

// DemuxID derives the report id of a raw transfer: with more than one
// layout the id rides in the first byte, otherwise the single layout's id
// applies and nothing is stripped.
func (t *LayoutTable) DemuxID(data []byte) (id uint8, prefixed bool) {
	if len(t.layouts) > 1 && len(data) > 0 {
		return data[0], true
	}
	if len(t.layouts) == 1 {
		return t.layouts[0].ID, false
	}
	return 0, false
}

// lookupOrCreate returns the layout for id, creating it when the report
// capacity allows. Reports false on overflow.
func (t *LayoutTable) lookupOrCreate(id uint8) (*ReportLayout, bool) {
	if l := t.Layout(id); l != nil {
		return l, true
	}
	if len(t.layouts) >= MaxReportsPerInterface {
		return nil, false
	}
	l := newReportLayout(id)
	t.layouts = append(t.layouts, l)
	return l, true
}
