package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

var l *logrus.Logger

func init() {
	l = logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
}

// SetLevel adjusts the global log level. Unknown names keep the current level.
func SetLevel(level string) {
	parsed, err := logrus.ParseLevel(level)
	if nil != err {
		l.Warnf("unknown log level %q", level)
		return
	}
	l.SetLevel(parsed)
}

func Verbose(enabled bool) {
	if enabled {
		l.SetLevel(logrus.DebugLevel)
	}
}

func Debug(msg any) {
	l.Debug(msg)
}

func DebugF(format string, a ...any) {
	l.Debugf(format, a...)
}

func Info(msg any) {
	l.Info(msg)
}

func InfoF(format string, a ...any) {
	l.Infof(format, a...)
}

func Warn(msg any) {
	l.Warn(msg)
}

func WarnF(format string, a ...any) {
	l.Warnf(format, a...)
}

func Error(msg any) {
	l.Error(msg)
}

func ErrorF(format string, a ...any) {
	l.Errorf(format, a...)
}

func Fatal(msg any) {
	l.Fatal(msg)
}

func FatalF(format string, a ...any) {
	l.Fatalf(format, a...)
}
