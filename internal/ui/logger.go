package ui

import (
	"bytes"
	"encoding/json"
	"slices"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

const maxLogLines = 1000

type LogLevel uint8

const (
	// LogLevelInfo is the default log level.
	LogLevelInfo LogLevel = iota
	// LogLevelWarning is the warning log level.
	LogLevelWarning
	// LogLevelError is the error log level.
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarning:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "unknown"
	}
}

type LogMsg struct {
	Time   time.Time
	Level  LogLevel
	Source string
	Text   string
}

// UILogger collects log lines for the log view. It is a zerolog.LevelWriter,
// so it can be plugged into the global logger while the browser runs.
type UILogger struct {
	mutex   sync.Mutex
	program *tea.Program

	// ring holds the last maxLogLines lines; next is the slot written next
	ring   []LogMsg
	next   int
	unseen [LogLevelError + 1]int
}

var _ zerolog.LevelWriter = (*UILogger)(nil)

func NewUILogger() *UILogger {
	return &UILogger{ring: make([]LogMsg, 0, maxLogLines)}
}

// Attach forwards every new line to p as a LogMsg.
func (l *UILogger) Attach(p *tea.Program) {
	l.mutex.Lock()
	l.program = p
	l.mutex.Unlock()
}

func (l *UILogger) send(level LogLevel, source, text string) {
	msg := LogMsg{Time: time.Now(), Level: level, Source: source, Text: text}

	l.mutex.Lock()
	if len(l.ring) < maxLogLines {
		l.ring = append(l.ring, msg)
	} else {
		l.ring[l.next] = msg
	}
	l.next = (l.next + 1) % maxLogLines
	l.unseen[level]++
	program := l.program
	l.mutex.Unlock()

	if program != nil {
		// the caller may be the event loop itself
		go program.Send(msg)
	}
}

// Write accepts a zerolog JSON event at info level.
func (l *UILogger) Write(p []byte) (int, error) {
	return l.WriteLevel(zerolog.InfoLevel, p)
}

// WriteLevel turns a zerolog JSON event into a log line. Debug and trace
// events are dropped.
func (l *UILogger) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	var lvl LogLevel
	switch {
	case level < zerolog.InfoLevel:
		return len(p), nil
	case level == zerolog.WarnLevel:
		lvl = LogLevelWarning
	case level >= zerolog.ErrorLevel && level <= zerolog.PanicLevel:
		lvl = LogLevelError
	}

	var event map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(p), &event); err != nil {
		l.send(lvl, "log", string(bytes.TrimSpace(p)))
		return len(p), nil
	}
	text, _ := event[zerolog.MessageFieldName].(string)
	if e, ok := event[zerolog.ErrorFieldName].(string); ok {
		text += ": " + e
	}
	source, _ := event["object"].(string)
	if source == "" {
		source = "cattree"
	}
	l.send(lvl, source, text)
	return len(p), nil
}

// snapshot returns the kept lines, oldest first.
func (l *UILogger) snapshot() []LogMsg {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if len(l.ring) < maxLogLines {
		return slices.Clone(l.ring)
	}
	return append(slices.Clone(l.ring[l.next:]), l.ring[:l.next]...)
}

// unread returns the unread counters; with reset they are cleared.
func (l *UILogger) unread(reset bool) (info, warn, errors int) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	info, warn, errors = l.unseen[LogLevelInfo], l.unseen[LogLevelWarning], l.unseen[LogLevelError]
	if reset {
		l.unseen = [LogLevelError + 1]int{}
	}
	return info, warn, errors
}
