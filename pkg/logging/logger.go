// Package logging provides the structured logger used throughout graph-etl-lib.
//
// It is deliberately small: a level, a format (text or JSON), an output writer,
// and an optional component/field context. Every task, stage, and reporter in
// this module logs through here rather than the standard library's log package,
// so that task trees and batch statistics can be captured in the same
// structured shape regardless of where they are emitted from. WithStats is the
// one addition this module needed over its source: a way to drop a
// stats.Stats counter map straight into a log line's fields, since every
// task/progress event in this domain ends with exactly that.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/neo-technology-field/graph-etl-lib/pkg/stats"
)

// LogLevel is a filtering priority; messages below the configured level are dropped.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a case-insensitive level name, defaulting to InfoLevel on error.
func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// LogFormat selects human-readable text output or single-line JSON.
type LogFormat int

const (
	TextFormat LogFormat = iota
	JSONFormat
)

// LogEntry is one structured record, independent of its eventual output format.
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
}

// Logger is the core structured logger. Safe for concurrent use.
type Logger struct {
	mu         sync.RWMutex
	level      LogLevel
	format     LogFormat
	output     io.Writer
	showCaller bool
	component  string
}

// Config configures a Logger at construction time.
type Config struct {
	Level      LogLevel
	Format     LogFormat
	Output     io.Writer
	ShowCaller bool
	Component  string
}

// DefaultConfig returns InfoLevel, text output to stdout.
func DefaultConfig() *Config {
	return &Config{
		Level:  InfoLevel,
		Format: TextFormat,
		Output: os.Stdout,
	}
}

func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	return &Logger{
		level:      config.Level,
		format:     config.Format,
		output:     config.Output,
		showCaller: config.ShowCaller,
		component:  config.Component,
	}
}

// WithComponent returns a new Logger sharing configuration but tagging every
// entry with the given component name (e.g. "splitter", "sink").
func (l *Logger) WithComponent(component string) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Logger{
		level:      l.level,
		format:     l.format,
		output:     l.output,
		showCaller: l.showCaller,
		component:  component,
	}
}

func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) SetOutput(output io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = output
}

func (l *Logger) IsEnabled(level LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

func (l *Logger) log(level LogLevel, message string, fields map[string]interface{}) {
	if !l.IsEnabled(level) {
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Message:   message,
		Fields:    fields,
	}

	if l.component != "" {
		if entry.Fields == nil {
			entry.Fields = make(map[string]interface{})
		}
		entry.Fields["component"] = l.component
	}

	if l.showCaller {
		if _, file, line, ok := runtime.Caller(3); ok {
			entry.Caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
		}
	}

	var output string
	switch l.format {
	case JSONFormat:
		data, _ := json.Marshal(entry)
		output = string(data) + "\n"
	default:
		output = l.formatText(entry)
	}

	l.output.Write([]byte(output))
}

func (l *Logger) formatText(entry LogEntry) string {
	timestamp := entry.Timestamp.Format("2006-01-02 15:04:05")

	parts := []string{timestamp, fmt.Sprintf("[%s]", entry.Level)}
	if entry.Caller != "" {
		parts = append(parts, fmt.Sprintf("(%s)", entry.Caller))
	}
	parts = append(parts, entry.Message)

	result := strings.Join(parts, " ")

	if len(entry.Fields) > 0 {
		var fieldParts []string
		for key, value := range entry.Fields {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%v", key, value))
		}
		result += fmt.Sprintf(" [%s]", strings.Join(fieldParts, " "))
	}

	return result + "\n"
}

func (l *Logger) Debug(message string, fields ...map[string]interface{}) { l.dispatch(DebugLevel, message, fields) }
func (l *Logger) Info(message string, fields ...map[string]interface{})  { l.dispatch(InfoLevel, message, fields) }
func (l *Logger) Warn(message string, fields ...map[string]interface{})  { l.dispatch(WarnLevel, message, fields) }
func (l *Logger) Error(message string, fields ...map[string]interface{}) { l.dispatch(ErrorLevel, message, fields) }

func (l *Logger) dispatch(level LogLevel, message string, fields []map[string]interface{}) {
	var f map[string]interface{}
	if len(fields) > 0 {
		f = fields[0]
	}
	l.log(level, message, f)
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.log(DebugLevel, fmt.Sprintf(format, args...), nil) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log(InfoLevel, fmt.Sprintf(format, args...), nil) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log(WarnLevel, fmt.Sprintf(format, args...), nil) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(ErrorLevel, fmt.Sprintf(format, args...), nil) }

// WithField starts a FieldLogger carrying one piece of context through every subsequent line.
func (l *Logger) WithField(key string, value interface{}) *FieldLogger {
	return &FieldLogger{logger: l, fields: map[string]interface{}{key: value}}
}

// WithFields is WithField for more than one field at a time.
func (l *Logger) WithFields(fields map[string]interface{}) *FieldLogger {
	f := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		f[k] = v
	}
	return &FieldLogger{logger: l, fields: f}
}

// WithStats flattens a stats.Stats counter map into logger context, one
// field per counter. Every task/progress event in this module reports its
// merged statistics this way rather than hand-copying map entries at each
// call site.
func (l *Logger) WithStats(s stats.Stats) *FieldLogger {
	return (&FieldLogger{logger: l, fields: make(map[string]interface{})}).WithStats(s)
}

// FieldLogger carries a fixed set of fields across several log calls.
type FieldLogger struct {
	logger *Logger
	fields map[string]interface{}
}

func (fl *FieldLogger) Debug(message string) { fl.logger.log(DebugLevel, message, fl.fields) }
func (fl *FieldLogger) Info(message string)  { fl.logger.log(InfoLevel, message, fl.fields) }
func (fl *FieldLogger) Warn(message string)  { fl.logger.log(WarnLevel, message, fl.fields) }
func (fl *FieldLogger) Error(message string) { fl.logger.log(ErrorLevel, message, fl.fields) }

func (fl *FieldLogger) WithField(key string, value interface{}) *FieldLogger {
	fields := make(map[string]interface{}, len(fl.fields)+1)
	for k, v := range fl.fields {
		fields[k] = v
	}
	fields[key] = value
	return &FieldLogger{logger: fl.logger, fields: fields}
}

// WithStats merges every counter in s into fl's fields, one field per
// counter key.
func (fl *FieldLogger) WithStats(s stats.Stats) *FieldLogger {
	fields := make(map[string]interface{}, len(fl.fields)+len(s))
	for k, v := range fl.fields {
		fields[k] = v
	}
	for k, v := range s {
		fields[k] = v
	}
	return &FieldLogger{logger: fl.logger, fields: fields}
}

var (
	defaultLogger   *Logger
	defaultLoggerMu sync.RWMutex
)

func InitGlobalLogger(config *Config) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = NewLogger(config)
}

func GetGlobalLogger() *Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	if defaultLogger == nil {
		defaultLoggerMu.RUnlock()
		defaultLoggerMu.Lock()
		if defaultLogger == nil {
			defaultLogger = NewLogger(DefaultConfig())
		}
		defaultLoggerMu.Unlock()
		defaultLoggerMu.RLock()
	}
	return defaultLogger
}

// CreateFileOutput opens filename for append, creating parent directories as needed.
func CreateFileOutput(filename string) (io.Writer, error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}
