package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"dio.wtf/hidbridge/hidbridge/bridge"
	"dio.wtf/hidbridge/hidbridge/log"
	"dio.wtf/hidbridge/hidbridge/setting"
	"dio.wtf/hidbridge/hidbridge/sink"
	"dio.wtf/hidbridge/hidbridge/source"
)

func main() {
	configPath := flag.String("config", "/etc/hidbridge.toml", "settings file")
	verbose := flag.Bool("verbose", false, "debug logging")
	flag.Parse()

	settings, err := setting.Load(*configPath)
	if nil != err {
		log.WarnF("using default settings: %v", err)
	}
	log.SetLevel(settings.Log.Level)
	log.Verbose(*verbose)

	dev := sink.NewHIDDevice()
	br := bridge.NewBridge(dev, bridge.Config{
		InactivityTimeout: settings.Timeout(),
		SleepEnabled:      settings.Power.EnableSleep,
		Sensitivity:       settings.Mouse.Sensitivity,
	})
	if err = br.Start(); nil != err {
		log.FatalF("failed to start bridge: %v", err)
	}

	src := source.NewHidrawSource(br)
	if err = src.Start(); nil != err {
		br.Stop()
		log.FatalF("failed to start hidraw source: %v", err)
	}

	stopWatch, err := setting.Watch(*configPath, func(s *setting.Settings) {
		log.SetLevel(s.Log.Level)
		br.SetSensitivity(s.Mouse.Sensitivity)
		br.Power().UpdateSettings(s.Timeout(), s.Power.EnableSleep)
	})
	if nil != err {
		log.WarnF("settings watch unavailable: %v", err)
		stopWatch = func() {}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	stopWatch()
	src.Stop()
	br.Stop()
}
