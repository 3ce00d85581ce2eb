package sentinel

import (
	"log"
	"os"
)

// Logger is a simple interface to abstract the logger implementation.  Go core `log` is used by default.
type Logger interface {
	Printf(format string, v ...any)
	Noticef(format string, v ...any)
	Errorf(format string, v ...any)
	// Debugf is only emitted when the logger was constructed in verbose mode.
	Debugf(format string, v ...any)
}

// NewDefaultLogger returns the default logger.  Verbose output (raw API
// payloads and the like) is controlled here rather than by any global flag.
func NewDefaultLogger(verbose bool) Logger {
	return defaultLogger{log.New(os.Stderr, "", log.LstdFlags), verbose}
}

type defaultLogger struct {
	*log.Logger
	verbose bool
}

var _ Logger = (*defaultLogger)(nil)

func (l defaultLogger) Noticef(format string, v ...any) {
	l.Printf("NOTICE: "+format, v...)
}

func (l defaultLogger) Errorf(format string, v ...any) {
	l.Printf("ERROR: "+format, v...)
}

func (l defaultLogger) Debugf(format string, v ...any) {
	if l.verbose {
		l.Printf("DEBUG: "+format, v...)
	}
}
