// Package metrics provides the ambient observability layer for qkd-go:
// a small leveled structured logger and a pluggable tracer with an optional
// OpenTelemetry backend (build with -tags otel).
//
// Protocol packages receive a *Logger by injection and default to the
// silent logger; they never branch on whether observability is configured.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level is a logging severity.
type Level int

// Severity levels, LevelSilent disables output entirely.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSilent
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelSilent:
		return "SILENT"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name, defaulting to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "SILENT", "OFF", "NONE":
		return LevelSilent
	default:
		return LevelInfo
	}
}

// Format selects the output encoding.
type Format int

// FormatText is human-readable; FormatJSON suits log aggregation.
const (
	FormatText Format = iota
	FormatJSON
)

// Fields carries structured key/value context on a log entry.
type Fields map[string]interface{}

// Logger is a leveled structured logger. The zero value is not usable;
// construct with NewLogger.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	format Format
	name   string
	fields Fields
	now    func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithOutput sets the destination writer.
func WithOutput(w io.Writer) Option {
	return func(l *Logger) { l.out = w }
}

// WithLevel sets the minimum severity emitted.
func WithLevel(level Level) Option {
	return func(l *Logger) { l.level = level }
}

// WithFormat sets the output encoding.
func WithFormat(format Format) Option {
	return func(l *Logger) { l.format = format }
}

// NewLogger builds a logger writing text at info level to stderr.
func NewLogger(opts ...Option) *Logger {
	l := &Logger{
		out:    os.Stderr,
		level:  LevelInfo,
		format: FormatText,
		fields: Fields{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NullLogger returns a logger that discards everything. The default for
// library code when no logger is injected.
func NullLogger() *Logger {
	return NewLogger(WithLevel(LevelSilent), WithOutput(io.Discard))
}

// Named returns a child logger whose entries carry a dotted component name.
func (l *Logger) Named(name string) *Logger {
	child := l.clone()
	if l.name != "" {
		name = l.name + "." + name
	}
	child.name = name
	return child
}

// With returns a child logger carrying extra default fields.
func (l *Logger) With(fields Fields) *Logger {
	child := l.clone()
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	child.fields = merged
	return child
}

func (l *Logger) clone() *Logger {
	return &Logger{
		out:    l.out,
		level:  l.level,
		format: l.format,
		name:   l.name,
		fields: l.fields,
		now:    l.now,
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, fields ...Fields) { l.log(LevelDebug, msg, fields) }

// Info logs at info level.
func (l *Logger) Info(msg string, fields ...Fields) { l.log(LevelInfo, msg, fields) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, fields ...Fields) { l.log(LevelWarn, msg, fields) }

// Error logs at error level.
func (l *Logger) Error(msg string, fields ...Fields) { l.log(LevelError, msg, fields) }

func (l *Logger) log(level Level, msg string, extra []Fields) {
	if level < l.level || l.level == LevelSilent {
		return
	}
	all := make(Fields, len(l.fields))
	for k, v := range l.fields {
		all[k] = v
	}
	for _, f := range extra {
		for k, v := range f {
			all[k] = v
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.format == FormatJSON {
		l.writeJSON(level, msg, all)
		return
	}
	l.writeText(level, msg, all)
}

func (l *Logger) writeJSON(level Level, msg string, fields Fields) {
	entry := make(map[string]interface{}, len(fields)+4)
	entry["time"] = l.now().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg
	if l.name != "" {
		entry["logger"] = l.name
	}
	for k, v := range fields {
		entry[k] = v
	}
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.out, "LOG_ERROR: %v\n", err)
		return
	}
	l.out.Write(data)
	l.out.Write([]byte{'\n'})
}

func (l *Logger) writeText(level Level, msg string, fields Fields) {
	var b strings.Builder
	b.WriteString(l.now().Format("15:04:05.000"))
	b.WriteByte(' ')
	fmt.Fprintf(&b, "%-5s", level.String())
	b.WriteByte(' ')
	if l.name != "" {
		b.WriteByte('[')
		b.WriteString(l.name)
		b.WriteString("] ")
	}
	b.WriteString(msg)
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	b.WriteByte('\n')
	io.WriteString(l.out, b.String())
}
