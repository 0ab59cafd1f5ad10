package descriptor

// https://www.usb.org/sites/default/files/hid1_11.pdf section 6.2.2

const (
	itemTypeMain   = 0
	itemTypeGlobal = 1
	itemTypeLocal  = 2
)

// Main item tags.
const (
	tagInput         = 8
	tagOutput        = 9
	tagCollection    = 10
	tagEndCollection = 12
)

// Global item tags.
const (
	tagUsagePage   = 0
	tagLogicalMin  = 1
	tagLogicalMax  = 2
	tagReportSize  = 7
	tagReportID    = 8
	tagReportCount = 9
)

// Local item tags.
const (
	tagUsage    = 0
	tagUsageMin = 1
	tagUsageMax = 2
)

// Usage pages, HID Usage Tables 1.12 section 3, table 1.
const (
	UsagePageGenericDesktop uint16 = 0x01
	UsagePageSimulation     uint16 = 0x02
	UsagePageKeyCodes       uint16 = 0x07
	UsagePageLeds           uint16 = 0x08
	UsagePageButtons        uint16 = 0x09
	UsagePageConsumer       uint16 = 0x0C
)

// Generic Desktop usages, HID Usage Tables 1.12 section 4, table 6.
const (
	UsagePointer  uint16 = 0x01
	UsageMouse    uint16 = 0x02
	UsageJoystick uint16 = 0x04
	UsageGamepad  uint16 = 0x05
	UsageKeyboard uint16 = 0x06
	UsageKeypad   uint16 = 0x07
	UsageX        uint16 = 0x30
	UsageY        uint16 = 0x31
	UsageZ        uint16 = 0x32
	UsageWheel    uint16 = 0x38
)

// Keyboard page modifier usages, Left Ctrl through Right GUI.
const (
	UsageKeyLeftCtrl uint16 = 0xE0
	UsageKeyRightGui uint16 = 0xE7
)
