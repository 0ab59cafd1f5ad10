package bridge

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"dio.wtf/hidbridge/hidbridge/descriptor"
	"dio.wtf/hidbridge/hidbridge/log"
)

const defaultQueueSize = 8

var (
	ErrInvalidTransfer = errors.New("invalid transfer")
	ErrInvalidIface    = errors.New("interface index out of range")
	ErrUnknownReport   = errors.New("unknown report id")
	ErrNotRunning      = errors.New("bridge not running")
)

// Config carries the bridge's startup settings.
type Config struct {
	QueueSize         int
	InactivityTimeout time.Duration
	SleepEnabled      bool
	Sensitivity       int
	// KeepAlive vetoes the inactivity pause while true, e.g. while a
	// management link is up.
	KeepAlive func() bool
}

// Bridge owns the layout tables, the assembly slots, the dispatch queue
// and the power controller for one device-to-sink path. Every operation
// goes through an explicit *Bridge so instances stay independent.
type Bridge struct {
	sink  Sink
	power *PowerController
	queue *queue

	mu     sync.RWMutex
	tables [descriptor.MaxInterfaces]*descriptor.LayoutTable

	// asmMu serializes producers: the assembler's two slots only survive
	// one assemble-then-push at a time.
	asmMu sync.Mutex
	asm   assembler

	sensitivity     atomic.Int32
	sourceConnected atomic.Bool

	running bool
	wg      sync.WaitGroup
}

func NewBridge(sink Sink, cfg Config) *Bridge {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	b := &Bridge{
		sink:  sink,
		queue: newQueue(cfg.QueueSize),
	}
	b.sensitivity.Store(int32(cfg.Sensitivity))
	if cfg.Sensitivity == 0 {
		b.sensitivity.Store(100)
	}
	b.power = NewPowerController(sink, b.SourceConnected, cfg.KeepAlive,
		cfg.InactivityTimeout, cfg.SleepEnabled)
	return b
}

// Start initializes the sink stack and spins up the worker and the power
// controller. Failure to bring the sink up aborts startup.
func (b *Bridge) Start() error {
	if b.running {
		return nil
	}
	if err := b.sink.Init(); nil != err {
		return err
	}
	b.power.Start()
	b.running = true
	b.wg.Add(1)
	go b.work()
	log.Info("bridge started")
	return nil
}

// Stop tears the bridge down in order: worker, timer, sink stack.
func (b *Bridge) Stop() {
	if !b.running {
		return
	}
	b.running = false
	b.queue.close()
	b.wg.Wait()
	b.power.Stop()
	if b.power.State() == PowerActive {
		if err := b.sink.Deinit(); nil != err {
			log.ErrorF("failed to deinitialize sink stack: %v", err)
		}
	}
	log.Info("bridge stopped")
}

// Power exposes the controller, mainly for settings pushes.
func (b *Bridge) Power() *PowerController {
	return b.power
}

func (b *Bridge) SourceConnected() bool {
	return b.sourceConnected.Load()
}

// SetSensitivity updates the mouse axis scaling percentage.
func (b *Bridge) SetSensitivity(percent int) {
	if percent <= 0 {
		percent = 100
	}
	b.sensitivity.Store(int32(percent))
}

// Connect rebuilds the layout table for an interface from its raw report
// descriptor. The old table is replaced wholesale under the write lock so
// readers never observe a torn table.
func (b *Bridge) Connect(desc []byte, iface int) error {
	if iface < 0 || iface >= descriptor.MaxInterfaces {
		return ErrInvalidIface
	}
	table := descriptor.Interpret(desc, iface)

	b.mu.Lock()
	b.tables[iface] = table
	b.mu.Unlock()

	b.sourceConnected.Store(true)
	log.InfoF("device connected on interface %d: %d reports", iface, table.NumReports())
	return nil
}

// Disconnect discards an interface's layout table.
func (b *Bridge) Disconnect(iface int) {
	if iface < 0 || iface >= descriptor.MaxInterfaces {
		return
	}
	b.mu.Lock()
	b.tables[iface] = nil
	b.mu.Unlock()

	b.sourceConnected.Store(false)
	log.InfoF("device disconnected on interface %d", iface)
}

// ProcessTransfer decodes one raw transfer and queues the snapshot for
// the worker. It runs on the producer context and never blocks beyond
// the queue's bounded push wait; rejected input is a no-op.
func (b *Bridge) ProcessTransfer(data []byte, iface int) error {
	if len(data) == 0 || len(data) > MaxTransferSize {
		return ErrInvalidTransfer
	}
	if iface < 0 || iface >= descriptor.MaxInterfaces {
		return ErrInvalidIface
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	table := b.tables[iface]
	if table == nil {
		return ErrUnknownReport
	}
	id, prefixed := table.DemuxID(data)
	if prefixed {
		data = data[1:]
	}
	layout := table.Layout(id)
	if layout == nil {
		log.WarnF("unknown report id %d for interface %d", id, iface)
		return ErrUnknownReport
	}

	b.asmMu.Lock()
	snap := b.asm.assemble(layout, data, iface, id)
	b.queue.push(snap)
	b.asmMu.Unlock()
	return nil
}

func (b *Bridge) work() {
	defer b.wg.Done()
	log.Debug("bridge worker started")
	for {
		snap := b.queue.pop()
		if snap == nil {
			return
		}
		if err := b.process(snap); nil != err {
			log.ErrorF("failed to process report: %v", err)
		}
		b.queue.release(snap)
	}
}

// process drives one snapshot through the power controller, the stale
// layout guard and the mapper.
func (b *Bridge) process(snap *Snapshot) error {
	if err := b.power.NotifyReport(); nil != err {
		// The sink stack is down and could not be resumed; drop the
		// report.
		return err
	}

	b.mu.RLock()
	expected := 0
	if table := b.tables[snap.Interface]; table != nil {
		expected = table.NumFields(snap.ReportID)
	}
	b.mu.RUnlock()
	if expected != len(snap.Fields) {
		// A rebuilt layout table raced this snapshot, drop it.
		log.DebugF("unexpected field count: expected=%d got=%d", expected, len(snap.Fields))
		return nil
	}

	snap.Role = classify(snap)
	return b.forward(snap)
}
