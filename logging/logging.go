// Package logging provides the leveled log sink shared by every component.
// A Logger is built once at startup and passed to constructors explicitly.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

var levelNames = [...]string{"debug", "info", "warning", "error"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel maps a level name to a Level. Matching is case-insensitive and
// "warn" is accepted for warning.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// sink is one output with its own threshold.
type sink struct {
	out    *log.Logger
	min    Level
	colors [4]*color.Color
}

// Logger writes leveled lines to one or more sinks. It is safe for
// concurrent use and never reports write failures to the caller.
type Logger struct {
	mu    sync.Mutex
	sinks []*sink
	files []io.Closer
}

// New returns a Logger writing uncolored lines at or above min to w.
func New(w io.Writer, min Level) *Logger {
	l := &Logger{}
	l.addSink(w, min, false)
	return l
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return &Logger{}
}

// NewConsole returns a Logger writing to stdout. Levels are colorized when
// stdout is a terminal.
func NewConsole(min Level) *Logger {
	fd := os.Stdout.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	l := &Logger{}
	l.addSink(colorable.NewColorableStdout(), min, tty)
	return l
}

// AddFile attaches a size-rotated log file. File lines are never colorized.
func (l *Logger) AddFile(path string, min Level) {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 7,
		MaxAge:     30,
	}
	l.mu.Lock()
	l.files = append(l.files, lj)
	l.mu.Unlock()
	l.addSink(lj, min, false)
}

func (l *Logger) addSink(w io.Writer, min Level, colored bool) {
	s := &sink{
		out: log.New(w, "", log.LstdFlags),
		min: min,
		colors: [4]*color.Color{
			color.New(color.FgCyan),
			color.New(color.FgGreen),
			color.New(color.FgYellow),
			color.New(color.FgRed, color.Bold),
		},
	}
	for _, c := range s.colors {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	l.mu.Lock()
	l.sinks = append(l.sinks, s)
	l.mu.Unlock()
}

// Log writes msg at level to every sink whose threshold admits it.
func (l *Logger) Log(level Level, msg string) {
	if l == nil {
		return
	}
	if level < LevelDebug || level > LevelError {
		msg = "Unknown log level " + msg
		level = LevelError
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.sinks {
		if level < s.min {
			continue
		}
		tag := s.colors[level].Sprintf("[%s]", level)
		s.out.Printf("%s: %s", tag, msg)
	}
}

func (l *Logger) Debugf(format string, args ...any) {
	l.Log(LevelDebug, fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	l.Log(LevelInfo, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.Log(LevelWarning, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.Log(LevelError, fmt.Sprintf(format, args...))
}

// Request writes an access line colored by status class, green for 2xx and
// red for 4xx.
func (l *Logger) Request(method, path string, status int) {
	if l == nil {
		return
	}
	line := fmt.Sprintf("%s %s %d", method, path, status)
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.sinks {
		if LevelInfo < s.min {
			continue
		}
		out := line
		switch {
		case status >= 200 && status < 300:
			out = s.colors[LevelInfo].Sprint(line)
		case status >= 400 && status < 500:
			out = s.colors[LevelError].Sprint(line)
		}
		s.out.Print(out)
	}
}

// Close flushes and closes attached log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var first error
	for _, f := range l.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.files = nil
	return first
}
