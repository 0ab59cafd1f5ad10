package bridge

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"dio.wtf/hidbridge/hidbridge/log"
)

type PowerState int32

const (
	PowerActive PowerState = iota
	PowerPaused
)

func (s PowerState) String() string {
	if s == PowerPaused {
		return "paused"
	}
	return "active"
}

// notifyWait bounds how long the report path may wait on the controller;
// a lost race defers the transition to the next report.
const notifyWait = 25 * time.Millisecond

// settingsWait bounds the settings push the same way the original timer
// callback bounded its mutex take.
const settingsWait = 250 * time.Millisecond

var ErrPowerBusy = errors.New("power controller busy")
var ErrPowerStopped = errors.New("power controller stopped")

type powerEventKind int

const (
	evReportProcessed powerEventKind = iota
	evInactivityElapsed
	evSettingsChanged
)

type powerEvent struct {
	kind         powerEventKind
	timeout      time.Duration
	sleepEnabled bool
	reply        chan error
}

// PowerController pauses the sink stack after a stretch of inactivity and
// resumes it on the next report. All transitions run on one goroutine fed
// by an ordered event channel, so the periodic timer and the report path
// never race on shared state.
type PowerController struct {
	sink            Sink
	sourceConnected func() bool
	keepAlive       func() bool

	timeout      time.Duration
	sleepEnabled bool

	state  atomic.Int32
	events chan powerEvent
	done   chan struct{}
	wg     sync.WaitGroup
	timer  *time.Timer
}

// NewPowerController wires the controller to the sink it manages. The
// keepAlive hook, when non-nil and true, vetoes the inactivity pause (the
// management link keeping the stack up).
func NewPowerController(sink Sink, sourceConnected, keepAlive func() bool, timeout time.Duration, sleepEnabled bool) *PowerController {
	return &PowerController{
		sink:            sink,
		sourceConnected: sourceConnected,
		keepAlive:       keepAlive,
		timeout:         timeout,
		sleepEnabled:    sleepEnabled,
		events:          make(chan powerEvent, 8),
		done:            make(chan struct{}),
	}
}

func (p *PowerController) State() PowerState {
	return PowerState(p.state.Load())
}

func (p *PowerController) Start() {
	p.wg.Add(1)
	go p.run()
}

func (p *PowerController) Stop() {
	close(p.done)
	p.wg.Wait()
}

// NotifyReport feeds one processed report into the controller, resuming a
// paused sink stack first. A non-nil error means the triggering report
// must not be forwarded.
func (p *PowerController) NotifyReport() error {
	ev := powerEvent{kind: evReportProcessed, reply: make(chan error, 1)}

	t := time.NewTimer(notifyWait)
	defer t.Stop()
	select {
	case p.events <- ev:
	case <-t.C:
		// Lost the race this cycle. Reports still flow while active; a
		// paused stack just waits for the next report to resume it.
		if p.State() == PowerPaused {
			return ErrPowerBusy
		}
		return nil
	case <-p.done:
		return ErrPowerStopped
	}

	select {
	case err := <-ev.reply:
		return err
	case <-p.done:
		return ErrPowerStopped
	}
}

// UpdateSettings applies a new inactivity timeout and sleep toggle on the
// next controller cycle.
func (p *PowerController) UpdateSettings(timeout time.Duration, sleepEnabled bool) {
	ev := powerEvent{kind: evSettingsChanged, timeout: timeout, sleepEnabled: sleepEnabled}

	t := time.NewTimer(settingsWait)
	defer t.Stop()
	select {
	case p.events <- ev:
	case <-t.C:
		log.Warn("power controller busy, settings change deferred")
	case <-p.done:
	}
}

func (p *PowerController) run() {
	defer p.wg.Done()
	p.timer = time.NewTimer(p.timeout)
	defer p.timer.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-p.timer.C:
			p.handle(powerEvent{kind: evInactivityElapsed})
		case ev := <-p.events:
			p.handle(ev)
		}
	}
}

func (p *PowerController) handle(ev powerEvent) {
	switch ev.kind {
	case evInactivityElapsed:
		p.pauseIfIdle()
	case evReportProcessed:
		err := p.resumeIfPaused()
		if p.sourceConnected() && p.sink.Connected() {
			p.resetTimer()
		}
		if ev.reply != nil {
			ev.reply <- err
		}
	case evSettingsChanged:
		p.timeout = ev.timeout
		p.sleepEnabled = ev.sleepEnabled
		log.InfoF("power settings changed: timeout=%s sleep=%v", p.timeout, p.sleepEnabled)
		p.resetTimer()
	}
}

func (p *PowerController) pauseIfIdle() {
	if p.State() != PowerActive {
		return
	}
	if !p.sourceConnected() || !p.sink.Connected() {
		p.resetTimer()
		return
	}
	if p.keepAlive != nil && p.keepAlive() {
		log.Info("management link active, keeping sink stack running")
		p.resetTimer()
		return
	}
	if !p.sleepEnabled {
		p.resetTimer()
		return
	}

	log.Info("no reports for a while, stopping sink stack")
	if err := p.sink.Deinit(); nil != err {
		log.ErrorF("failed to deinitialize sink stack: %v", err)
		p.resetTimer()
		return
	}
	p.state.Store(int32(PowerPaused))
	log.Info("sink stack stopped")
}

func (p *PowerController) resumeIfPaused() error {
	if p.State() != PowerPaused {
		return nil
	}

	log.Info("report received, restarting sink stack")
	if err := p.sink.Init(); nil != err {
		log.ErrorF("failed to initialize sink stack: %v", err)
		return err
	}
	p.state.Store(int32(PowerActive))
	return nil
}

func (p *PowerController) resetTimer() {
	if !p.timer.Stop() {
		select {
		case <-p.timer.C:
		default:
		}
	}
	p.timer.Reset(p.timeout)
}
