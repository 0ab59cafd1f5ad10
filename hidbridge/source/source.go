package source

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"dio.wtf/hidbridge/hidbridge/bridge"
	"dio.wtf/hidbridge/hidbridge/descriptor"
	"dio.wtf/hidbridge/hidbridge/log"
)

const (
	devDir     = "/dev"
	hidrawPref = "hidraw"

	// Newly created nodes need a moment before udev has fixed their
	// permissions.
	settleDelay = 200 * time.Millisecond
)

// HidrawSource feeds the bridge from Linux hidraw nodes: the sysfs report
// descriptor on attach, then every interrupt transfer from the node until
// it disappears. Hotplug arrives through fsnotify on /dev.
type HidrawSource struct {
	bridge *bridge.Bridge

	mu      sync.Mutex
	devices map[string]*hidrawDevice
	slots   [descriptor.MaxInterfaces]bool

	watcher *fsnotify.Watcher
	stop    chan struct{}
	wg      sync.WaitGroup
}

type hidrawDevice struct {
	path  string
	iface int
	file  *os.File
}

func NewHidrawSource(b *bridge.Bridge) *HidrawSource {
	return &HidrawSource{
		bridge:  b,
		devices: make(map[string]*hidrawDevice),
	}
}

// Start scans the nodes already present and then watches /dev for
// attach events.
func (s *HidrawSource) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if nil != err {
		return err
	}
	if err = watcher.Add(devDir); nil != err {
		watcher.Close()
		return err
	}
	s.watcher = watcher
	s.stop = make(chan struct{})

	paths, _ := filepath.Glob(filepath.Join(devDir, hidrawPref+"*"))
	for _, path := range paths {
		s.attach(path)
	}

	s.wg.Add(1)
	go s.watch()
	return nil
}

func (s *HidrawSource) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.watcher.Close()

	s.mu.Lock()
	for _, dev := range s.devices {
		dev.file.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *HidrawSource) watch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), hidrawPref) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				time.Sleep(settleDelay)
				s.attach(ev.Name)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.ErrorF("hidraw watcher: %v", err)
		}
	}
}

// attach reads the node's report descriptor, installs the layout table
// and starts the read loop.
func (s *HidrawSource) attach(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[path]; ok {
		return
	}

	iface := -1
	for i := range s.slots {
		if !s.slots[i] {
			iface = i
			break
		}
	}
	if iface < 0 {
		log.WarnF("no free interface slot for %s, ignoring device", path)
		return
	}

	desc, err := readReportDescriptor(path)
	if nil != err {
		log.DebugF("no report descriptor for %s: %v", path, err)
		return
	}
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if nil != err {
		log.WarnF("failed to open %s: %v", path, err)
		return
	}

	if err = s.bridge.Connect(desc, iface); nil != err {
		log.ErrorF("failed to install layout table for %s: %v", path, err)
		file.Close()
		return
	}

	dev := &hidrawDevice{path: path, iface: iface, file: file}
	s.devices[path] = dev
	s.slots[iface] = true
	log.InfoF("attached %s as interface %d", path, iface)

	s.wg.Add(1)
	go s.readLoop(dev)
}

func (s *HidrawSource) detach(dev *hidrawDevice) {
	s.mu.Lock()
	delete(s.devices, dev.path)
	s.slots[dev.iface] = false
	s.mu.Unlock()

	dev.file.Close()
	s.bridge.Disconnect(dev.iface)
}

// readLoop is the producer context: one blocking read per transfer, one
// assemble per read, nothing else.
func (s *HidrawSource) readLoop(dev *hidrawDevice) {
	defer s.wg.Done()
	defer s.detach(dev)

	var buf [bridge.MaxTransferSize]byte
	for {
		n, err := dev.file.Read(buf[:])
		if nil != err {
			if !s.stopped() {
				log.InfoF("%s gone: %v", dev.path, err)
			}
			return
		}
		if n == 0 {
			continue
		}
		if err = s.bridge.ProcessTransfer(buf[:n], dev.iface); nil != err {
			log.DebugF("transfer rejected on %s: %v", dev.path, err)
		}
	}
}

func (s *HidrawSource) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// readReportDescriptor pulls the raw descriptor bytes out of sysfs.
func readReportDescriptor(devPath string) ([]byte, error) {
	name := filepath.Base(devPath)
	sysPath := filepath.Join("/sys/class/hidraw", name, "device/report_descriptor")
	return os.ReadFile(sysPath)
}
