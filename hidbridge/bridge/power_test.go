package bridge

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultTestTimeout = 50 * time.Millisecond

func connectedSource() bool { return true }

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestPowerPausesAfterInactivity(t *testing.T) {
	sink := &fakeSink{connected: true}
	p := NewPowerController(sink, connectedSource, nil, defaultTestTimeout, true)
	p.Start()
	defer p.Stop()

	waitFor(t, func() bool { return p.State() == PowerPaused }, "controller never paused")
	_, deinits := sink.counts()
	assert.Equal(t, 1, deinits)

	// No second pause without an intervening resume.
	time.Sleep(2 * defaultTestTimeout)
	_, deinits = sink.counts()
	assert.Equal(t, 1, deinits)
}

func TestPowerResumesOnReport(t *testing.T) {
	sink := &fakeSink{connected: true}
	p := NewPowerController(sink, connectedSource, nil, defaultTestTimeout, true)
	p.Start()
	defer p.Stop()

	waitFor(t, func() bool { return p.State() == PowerPaused }, "controller never paused")

	require.NoError(t, p.NotifyReport())
	assert.Equal(t, PowerActive, p.State())
	inits, _ := sink.counts()
	assert.Equal(t, 1, inits)

	// The resume reset the clock, so it pauses exactly once more.
	waitFor(t, func() bool { return p.State() == PowerPaused }, "controller never paused again")
	_, deinits := sink.counts()
	assert.Equal(t, 2, deinits)
}

func TestPowerReportsKeepItActive(t *testing.T) {
	sink := &fakeSink{connected: true}
	p := NewPowerController(sink, connectedSource, nil, defaultTestTimeout, true)
	p.Start()
	defer p.Stop()

	for i := 0; i < 10; i++ {
		require.NoError(t, p.NotifyReport())
		time.Sleep(defaultTestTimeout / 4)
	}
	assert.Equal(t, PowerActive, p.State())
	_, deinits := sink.counts()
	assert.Zero(t, deinits)
}

func TestPowerSleepDisabled(t *testing.T) {
	sink := &fakeSink{connected: true}
	p := NewPowerController(sink, connectedSource, nil, defaultTestTimeout, false)
	p.Start()
	defer p.Stop()

	time.Sleep(3 * defaultTestTimeout)
	assert.Equal(t, PowerActive, p.State())
	_, deinits := sink.counts()
	assert.Zero(t, deinits)
}

func TestPowerKeepAliveOverride(t *testing.T) {
	sink := &fakeSink{connected: true}
	p := NewPowerController(sink, connectedSource, func() bool { return true }, defaultTestTimeout, true)
	p.Start()
	defer p.Stop()

	time.Sleep(3 * defaultTestTimeout)
	assert.Equal(t, PowerActive, p.State())
}

func TestPowerNoPauseWhileDisconnected(t *testing.T) {
	sink := &fakeSink{connected: false}
	p := NewPowerController(sink, connectedSource, nil, defaultTestTimeout, true)
	p.Start()
	defer p.Stop()

	time.Sleep(3 * defaultTestTimeout)
	assert.Equal(t, PowerActive, p.State())
}

func TestPowerDeinitFailureStaysActive(t *testing.T) {
	sink := &fakeSink{connected: true, deinitErr: errors.New("stack busy")}
	p := NewPowerController(sink, connectedSource, nil, defaultTestTimeout, true)
	p.Start()
	defer p.Stop()

	waitFor(t, func() bool {
		_, deinits := sink.counts()
		return deinits >= 1
	}, "deinit never attempted")
	assert.Equal(t, PowerActive, p.State())
}

func TestPowerInitFailureStaysPaused(t *testing.T) {
	sink := &fakeSink{connected: true}
	p := NewPowerController(sink, connectedSource, nil, defaultTestTimeout, true)
	p.Start()
	defer p.Stop()

	waitFor(t, func() bool { return p.State() == PowerPaused }, "controller never paused")

	sink.mu.Lock()
	sink.initErr = errors.New("radio off")
	sink.mu.Unlock()

	// The triggering report must not be forwarded.
	assert.Error(t, p.NotifyReport())
	assert.Equal(t, PowerPaused, p.State())

	sink.mu.Lock()
	sink.initErr = nil
	sink.mu.Unlock()

	require.NoError(t, p.NotifyReport())
	assert.Equal(t, PowerActive, p.State())
}

func TestPowerSettingsChange(t *testing.T) {
	sink := &fakeSink{connected: true}
	p := NewPowerController(sink, connectedSource, nil, time.Hour, true)
	p.Start()
	defer p.Stop()

	p.UpdateSettings(defaultTestTimeout, true)
	waitFor(t, func() bool { return p.State() == PowerPaused }, "shortened timeout never fired")

	// Disabling sleep resumes nothing but prevents the next pause.
	require.NoError(t, p.NotifyReport())
	p.UpdateSettings(defaultTestTimeout, false)
	time.Sleep(3 * defaultTestTimeout)
	assert.Equal(t, PowerActive, p.State())
}
