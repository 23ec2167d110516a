// Package persist implements everything the wallet core needs to survive
// a restart: the encrypted on-disk wallet file, a small
// rebuildable checkpoint/decoy cache, and the ambient logger every other
// package accepts as a narrow interface.
package persist

import (
	"fmt"
	"io"
	"log"
	"time"
)

// Logger wraps the standard library's log.Logger with the two severity
// helpers every component in this module calls (walletsynchronizer.Logger,
// build.Critical/Severe's logging sibling), formatting each line as
// "[timestamp] [SEVERITY] message".
type Logger struct {
	*log.Logger
}

// NewLogger wraps an io.Writer (typically an opened log file) with the
// timestamp-and-severity line format used throughout this module.
func NewLogger(w io.Writer) *Logger {
	return &Logger{Logger: log.New(w, "", 0)}
}

func (l *Logger) logf(severity, format string, v ...interface{}) {
	l.Logger.Printf("[%s] [%s] %s", time.Now().Format(time.RFC3339), severity, fmt.Sprintf(format, v...))
}

// Debugf logs a diagnostic line, the logger's default severity.
func (l *Logger) Debugf(format string, v ...interface{}) { l.logf("DEBUG", format, v...) }

// Debugln is Debugf's Println-shaped sibling, for call sites that build
// their message from a list of values rather than a format string.
func (l *Logger) Debugln(v ...interface{}) { l.logf("DEBUG", "%s", fmt.Sprintln(v...)) }

// Printf logs an ordinary operational line (connection established,
// synchronizer caught up to tip, ...).
func (l *Logger) Printf(format string, v ...interface{}) { l.logf("INFO", format, v...) }

// Severeln logs a recoverable-but-unexpected condition, mirroring
// build.Severe's severity at the logger level rather than the panic
// level.
func (l *Logger) Severeln(v ...interface{}) { l.logf("SEVERE", "%s", fmt.Sprintln(v...)) }

// Startup and Shutdown bracket a log file with banner lines, so a
// truncated log is immediately obvious in a support bundle.
func (l *Logger) Startup() { l.logf("STARTUP", "wallet core logging started") }
func (l *Logger) Shutdown() { l.logf("SHUTDOWN", "wallet core logging stopped") }
