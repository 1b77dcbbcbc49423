package logs

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

type Level string

const (
	INFO  Level = "INFO"
	WARN  Level = "WARN"
	ERROR Level = "ERROR"
	DEBUG Level = "DEBUG"
)

// levelPriority defines the priority of each log level
// higher value= more severe
var levelPriority = map[Level]int{
	DEBUG: 1,
	INFO:  2,
	WARN:  3,
	ERROR: 4,
}

// ParseLevel accepts a level name in any case.
func ParseLevel(s string) (Level, error) {
	level := Level(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := levelPriority[level]; !ok {
		return "", fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

type Entry struct {
	TimeStamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// String renders the entry as a single logfmt-like line.
func (e Entry) String() string {
	var b strings.Builder
	b.WriteString(e.TimeStamp.UTC().Format(time.RFC3339Nano))
	b.WriteByte(' ')
	b.WriteString(string(e.Level))
	if e.Component != "" {
		b.WriteString(" [" + e.Component + "]")
	}
	b.WriteByte(' ')
	b.WriteString(e.Message)
	for _, k := range sortedKeys(e.Fields) {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}
	return b.String()
}

// buffer is the ring shared by a logger and all of its With children.
type buffer struct {
	mu      sync.Mutex
	entries []Entry
	maxSize int
	out     io.Writer
}

type Logger struct {
	buf       *buffer
	level     Level
	component string
}

// level: minimum log level to record(e.g., INFO, WARN, ERROR,DEBUG)
//
// maxsize:maximum number of log entries kept in memory
func NewLogger(maxSize int, level Level) *Logger {
	return &Logger{
		buf: &buffer{
			entries: make([]Entry, 0, maxSize),
			maxSize: maxSize,
		},
		level: level,
	}
}

// SetOutput mirrors every recorded entry to w as one line. nil disables it.
func (l *Logger) SetOutput(w io.Writer) {
	l.buf.mu.Lock()
	defer l.buf.mu.Unlock()
	l.buf.out = w
}

// With returns a logger tagging entries with component. It shares the
// ring buffer and level of its parent.
func (l *Logger) With(component string) *Logger {
	return &Logger{
		buf:       l.buf,
		level:     l.level,
		component: component,
	}
}

// log is the internal logging function
// it applies level filtering and ring buffer behavior
func (l *Logger) log(level Level, msg string, kv []any) {
	//filter logs below the current level
	if levelPriority[level] < levelPriority[l.level] {
		return
	}

	entry := Entry{
		TimeStamp: time.Now(),
		Level:     level,
		Component: l.component,
		Message:   msg,
		Fields:    fields(kv),
	}

	l.buf.mu.Lock()
	defer l.buf.mu.Unlock()

	if l.buf.maxSize > 0 {
		if len(l.buf.entries) >= l.buf.maxSize {
			//remove oldest entry(ring behavior)
			l.buf.entries = l.buf.entries[1:]
		}
		l.buf.entries = append(l.buf.entries, entry)
	}

	if l.buf.out != nil {
		fmt.Fprintln(l.buf.out, entry.String())
	}
}

func (l *Logger) Debug(msg string, kv ...any) {
	l.log(DEBUG, msg, kv)
}

func (l *Logger) Info(msg string, kv ...any) {
	l.log(INFO, msg, kv)
}

func (l *Logger) Warn(msg string, kv ...any) {
	l.log(WARN, msg, kv)
}

func (l *Logger) Error(msg string, kv ...any) {
	l.log(ERROR, msg, kv)
}

func (l *Logger) GetLast(n int) []Entry {
	l.buf.mu.Lock()
	defer l.buf.mu.Unlock()

	entries := l.buf.entries
	if n < 0 {
		n = 0
	}
	if n > len(entries) {
		n = len(entries)
	}

	start := len(entries) - n
	out := make([]Entry, n)
	copy(out, entries[start:])
	for i := range out {
		out[i].Fields = copyFields(out[i].Fields)
	}
	return out
}
