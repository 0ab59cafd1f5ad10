package bridge

// KeyboardReport is the fixed-layout keyboard record the sink speaks:
// one modifier bitmap plus up to six concurrently pressed keycodes.
type KeyboardReport struct {
	Modifier byte
	Keycodes [6]byte
}

// MouseReport is the fixed-layout mouse record the sink speaks.
type MouseReport struct {
	Buttons byte
	X       int16
	Y       int16
	Wheel   int8
}

// Sink is the downstream wireless device the bridge forwards into. Init
// and Deinit bracket the sink stack's resources so the power controller
// can pause it; Send calls are no-ops while not Connected.
type Sink interface {
	Init() error
	Deinit() error
	Connected() bool
	SendKeyboardReport(report *KeyboardReport) error
	SendMouseReport(report *MouseReport) error
}
