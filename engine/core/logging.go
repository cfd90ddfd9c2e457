package core

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var once sync.Once

type logger struct {
	*log.Logger
}

var singleton *logger

func getLogger() *logger {
	once.Do(
		func() {
			l := log.NewWithOptions(os.Stderr, log.Options{
				ReportCaller:    true,
				ReportTimestamp: true,
				TimeFormat:      time.RFC3339,
				Prefix:          "Hawk 🦅 ",
			})
			l.SetLevel(log.InfoLevel)
			singleton = &logger{l}
		})
	return singleton
}

// SetLogLevel accepts debug, info, warn, error or fatal. Unknown names fall back to info.
func SetLogLevel(level string) {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		getLogger().Warnf("unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	getLogger().SetLevel(lvl)
}

func LogDebug(msg string, args ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	l := getLogger()
	l.Helper()
	l.Fatalf(msg, args...)
}
