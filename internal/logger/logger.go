// Package logger writes leveled log lines and progress reports for a run.
package logger

import (
	"io"
	"log"
	"os"
)

// Logger provides leveled logging (info/warning/error) plus debug output
// that is only written when enabled.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	debugLog   *log.Logger
	debug      bool
}

// New creates a Logger writing info to stdout and everything else to stderr.
func New(debug bool) *Logger {
	return NewWithWriters(os.Stdout, os.Stderr, debug)
}

// NewWithWriters creates a Logger on explicit writers.
func NewWithWriters(out, errOut io.Writer, debug bool) *Logger {
	return &Logger{
		infoLog:    log.New(out, "INFO    ", log.Ltime),
		warningLog: log.New(errOut, "WARNING ", log.Ltime),
		errorLog:   log.New(errOut, "ERROR   ", log.Ltime),
		debugLog:   log.New(errOut, "[DEBUG] ", 0),
		debug:      debug,
	}
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.infoLog.Printf(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.warningLog.Printf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.errorLog.Printf(format, v...)
}

// Debugf writes a debug entry when debug mode is enabled.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.debug {
		l.debugLog.Printf(format, v...)
	}
}

// Progress reports how many of total units were processed, every step units.
type Progress struct {
	log   *Logger
	label string
	total int
	step  int
	done  int
	next  int
}

// Progress starts a progress report. A step of 0 reports every 10%.
func (l *Logger) Progress(label string, total, step int) *Progress {
	if step <= 0 {
		step = total / 10
		if step == 0 {
			step = 1
		}
	}
	return &Progress{log: l, label: label, total: total, step: step, next: step}
}

// Add records n more processed units.
func (p *Progress) Add(n int) {
	p.done += n
	if p.done >= p.next || p.done == p.total {
		p.log.Info("%s: %d/%d", p.label, p.done, p.total)
		for p.next <= p.done {
			p.next += p.step
		}
	}
}

// Done returns the number of processed units.
func (p *Progress) Done() int {
	return p.done
}
