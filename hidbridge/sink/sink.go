package sink

import (
	"sync"
	"sync/atomic"
	"time"

	_ "embed"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
	"golang.org/x/sys/unix"

	"dio.wtf/hidbridge/hidbridge/bridge"
	"dio.wtf/hidbridge/hidbridge/log"
)

//go:embed sdp/record.xml
var sdpRecord string

const (
	// Peripheral, keyboard + pointing device combo.
	comboClass = "0x0005C0"
	hidPath    = "/hidbridge/combo"

	alias = "HID Bridge"

	ctrlPSM uint16 = 17
	itrPSM  uint16 = 19

	watchInterval = time.Second
)

// HIDDevice advertises a classic Bluetooth keyboard/mouse combo over
// BlueZ and writes fixed-layout input reports on the interrupt channel.
// It implements bridge.Sink; Init and Deinit bracket everything so the
// power controller can drop the stack while the source idles.
type HIDDevice struct {
	mu  sync.Mutex
	dev *adapterDevice

	ctrlSock int
	itrSock  int
	ctrl     int
	itr      int

	initialized bool
	connected   atomic.Bool

	stop chan struct{}
	wg   sync.WaitGroup

	kbBuf    [keyboardReportLength]byte
	mouseBuf [mouseReportLength]byte
}

func NewHIDDevice() *HIDDevice {
	return &HIDDevice{ctrlSock: -1, itrSock: -1, ctrl: -1, itr: -1}
}

// Init brings the sink stack up: adapter properties, SDP profile, L2CAP
// listeners, and the accept/watch goroutines.
func (h *HIDDevice) Init() (err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialized {
		return nil
	}

	if h.dev, err = newAdapterDevice(); nil != err {
		return err
	}
	if err = h.dev.SetPowered(true); nil != err {
		log.Error(err)
	}
	if err = h.dev.SetPairable(true); nil != err {
		log.Error(err)
	}
	if err = h.dev.SetPairableTimeout(0); nil != err {
		log.Error(err)
	}
	if err = h.dev.SetDiscoverableTimeout(180); nil != err {
		log.Error(err)
	}
	if err = h.dev.SetAlias(alias); nil != err {
		log.Error(err)
	} else {
		log.DebugF("setting device name to %s", alias)
	}

	options := map[string]interface{}{
		"ServiceRecord":         sdpRecord,
		"Role":                  "server",
		"RequireAuthentication": false,
		"RequireAuthorization":  false,
		"AutoConnect":           true,
	}
	if err = h.dev.RegisterProfile(hidPath, uuid.NewString(), options); nil != err {
		return err
	}

	addr, err := h.dev.GetAddress()
	if nil != err {
		return err
	}
	log.DebugF("MAC: %s", addr)

	if h.ctrlSock, err = setupSocket(addr, ctrlPSM); nil != err {
		return err
	}
	if h.itrSock, err = setupSocket(addr, itrPSM); nil != err {
		unix.Close(h.ctrlSock)
		h.ctrlSock = -1
		return err
	}
	h.dev.SetDiscoverable(true)
	h.dev.SetClass(comboClass)

	h.stop = make(chan struct{})
	h.wg.Add(2)
	go h.acceptLoop()
	go h.watchConnReset()

	h.initialized = true
	log.Info("sink stack initialized")
	return nil
}

// Deinit tears the stack down again. Pending accepts unblock through the
// socket close.
func (h *HIDDevice) Deinit() error {
	h.mu.Lock()
	if !h.initialized {
		h.mu.Unlock()
		return nil
	}
	h.initialized = false
	close(h.stop)
	h.closeLocked()
	h.mu.Unlock()

	h.wg.Wait()
	h.dev.SetDiscoverable(false)
	h.dev.SetPairable(false)
	log.Info("sink stack deinitialized")
	return nil
}

func (h *HIDDevice) closeLocked() {
	for _, fd := range []*int{&h.itr, &h.ctrl, &h.itrSock, &h.ctrlSock} {
		if *fd >= 0 {
			unix.Close(*fd)
			*fd = -1
		}
	}
	h.connected.Store(false)
}

func (h *HIDDevice) Connected() bool {
	return h.connected.Load()
}

// SendKeyboardReport writes one keyboard record on the interrupt channel.
// Not connected is a silent no-op.
func (h *HIDDevice) SendKeyboardReport(report *bridge.KeyboardReport) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connected.Load() || h.itr < 0 {
		return nil
	}
	inputReport(h.kbBuf[:]).setKeyboard(report)
	if _, err := unix.Write(h.itr, h.kbBuf[:]); nil != err {
		h.lostLocked(err)
		return err
	}
	return nil
}

// SendMouseReport writes one mouse record on the interrupt channel.
func (h *HIDDevice) SendMouseReport(report *bridge.MouseReport) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connected.Load() || h.itr < 0 {
		return nil
	}
	inputReport(h.mouseBuf[:]).setMouse(report)
	if _, err := unix.Write(h.itr, h.mouseBuf[:]); nil != err {
		h.lostLocked(err)
		return err
	}
	return nil
}

func (h *HIDDevice) lostLocked(err error) {
	log.WarnF("interrupt channel write failed, dropping connection: %v", err)
	for _, fd := range []*int{&h.itr, &h.ctrl} {
		if *fd >= 0 {
			unix.Close(*fd)
			*fd = -1
		}
	}
	h.connected.Store(false)
	h.dev.SetDiscoverable(true)
}

// acceptLoop accepts host connections on both channels, interrupt first
// the way hosts reconnect to HID devices, then parks until the session
// drops and advertises again.
func (h *HIDDevice) acceptLoop() {
	defer h.wg.Done()
	for {
		itr, itrAddr, err := unix.Accept(h.itrSock)
		if nil != err {
			if h.stopped() {
				return
			}
			log.ErrorF("accept interrupt failed: %v", err)
			continue
		}
		log.DebugF("accept interrupt %d from %v", itr, itrAddr)

		ctrl, ctrlAddr, err := unix.Accept(h.ctrlSock)
		if nil != err {
			unix.Close(itr)
			if h.stopped() {
				return
			}
			log.ErrorF("accept control failed: %v", err)
			continue
		}
		log.DebugF("accept control %d from %v", ctrl, ctrlAddr)

		h.mu.Lock()
		h.itr = itr
		h.ctrl = ctrl
		h.connected.Store(true)
		h.mu.Unlock()

		// Stop advertising while a host holds the channels.
		h.dev.SetDiscoverable(false)
		h.dev.SetPairable(false)

		for !h.stopped() && h.connected.Load() {
			time.Sleep(watchInterval)
		}
		if h.stopped() {
			return
		}
	}
}

// watchConnReset keeps the adapter advertising while no host is attached
// and evicts hosts that flap, the pattern lifted from flaky reconnects:
// two quick disconnects usually mean the host's pairing state is stale.
func (h *HIDDevice) watchConnReset() {
	defer h.wg.Done()
	connectedHosts := make(map[string]struct{})
	disconnectRecord := make(map[string]int)

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
		}

		if !h.connected.Load() {
			discoverable, _ := h.dev.GetDiscoverable()
			if !discoverable {
				log.Debug("resetup adapter")
				h.dev.SetPowered(true)
				h.dev.SetPairable(true)
				h.dev.SetPairableTimeout(0)
				h.dev.SetDiscoverable(true)
				h.dev.SetClass(comboClass)
			}
		}

		paths, _ := h.dev.ConnectedHosts()
		for i := range paths {
			connectedHosts[paths[i]] = struct{}{}
		}

		disconnected := make([]string, 0)
		for k := range connectedHosts {
			if !slices.Contains(paths, k) {
				disconnected = append(disconnected, k)
			}
		}
		for _, k := range disconnected {
			disconnectRecord[k]++
			delete(connectedHosts, k)
		}

		for k, v := range disconnectRecord {
			if v >= 2 {
				log.DebugF("host %s keeps flapping, removing its pairing", k)
				if err := h.dev.RemoveDevice(dbusPath(k)); nil != err {
					log.DebugF("remove device failed: %v", err)
				}
				disconnectRecord[k] = 0
			}
		}
	}
}

func (h *HIDDevice) stopped() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}
