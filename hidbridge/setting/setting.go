package setting

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"

	"dio.wtf/hidbridge/hidbridge/log"
)

// Settings is the bridge's TOML configuration. Everything has a default;
// a missing file or key just keeps it.
type Settings struct {
	Power PowerSettings `toml:"power"`
	Mouse MouseSettings `toml:"mouse"`
	Log   LogSettings   `toml:"log"`
}

type PowerSettings struct {
	// SleepTimeoutSec is the inactivity window before the sink stack is
	// paused.
	SleepTimeoutSec int  `toml:"sleep_timeout_sec"`
	EnableSleep     bool `toml:"enable_sleep"`
}

type MouseSettings struct {
	// Sensitivity scales mouse axes, in percent.
	Sensitivity int `toml:"sensitivity"`
}

type LogSettings struct {
	Level string `toml:"level"`
}

func Default() *Settings {
	return &Settings{
		Power: PowerSettings{SleepTimeoutSec: 30, EnableSleep: true},
		Mouse: MouseSettings{Sensitivity: 100},
		Log:   LogSettings{Level: "info"},
	}
}

// Load reads the file over the defaults. The returned settings are always
// usable; the error only reports why the file didn't contribute.
func Load(path string) (*Settings, error) {
	s := Default()
	if _, err := os.Stat(path); nil != err {
		return s, err
	}
	if _, err := toml.DecodeFile(path, s); nil != err {
		return Default(), err
	}
	s.normalize()
	return s, nil
}

func (s *Settings) normalize() {
	if s.Power.SleepTimeoutSec <= 0 {
		s.Power.SleepTimeoutSec = 30
	}
	if s.Mouse.Sensitivity <= 0 {
		s.Mouse.Sensitivity = 100
	}
	if s.Log.Level == "" {
		s.Log.Level = "info"
	}
}

// Timeout converts the sleep timeout into a duration.
func (s *Settings) Timeout() time.Duration {
	return time.Duration(s.Power.SleepTimeoutSec) * time.Second
}

// Watch reloads the file on every write and hands the result to onChange.
// The returned func stops the watcher.
func Watch(path string, onChange func(*Settings)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if nil != err {
		return nil, err
	}
	// Watch the directory: editors replace the file instead of writing
	// in place.
	if err = watcher.Add(filepath.Dir(path)); nil != err {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				s, err := Load(path)
				if nil != err {
					log.WarnF("settings reload failed: %v", err)
					continue
				}
				log.Info("settings reloaded")
				onChange(s)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.ErrorF("settings watcher: %v", err)
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
