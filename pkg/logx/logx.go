// Package logx provides leveled, component-scoped logging with domain-filtered debug output.
package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger writes lines of the form "[timestamp] [component] LEVEL: message".
type Logger struct {
	component string
}

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

// DebugConfig controls debug logging behavior.
type DebugConfig struct {
	Enabled bool
	Domains map[string]bool // Components with debug enabled (nil = all)
}

//nolint:gochecknoglobals // process-wide log sink shared by every component logger
var (
	debugConfig = &DebugConfig{}
	debugMutex  sync.RWMutex

	output    io.Writer = os.Stderr
	outputMux sync.Mutex
	logFile   *os.File
)

func init() { //nolint:gochecknoinits // Required for env var initialization
	initDebugFromEnv()
}

// initDebugFromEnv reads DEBUG=1|true and DEBUG_DOMAINS=session,pipeline.
func initDebugFromEnv() {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debug := os.Getenv("DEBUG"); debug == "1" || strings.EqualFold(debug, "true") {
		debugConfig.Enabled = true
	}

	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugConfig.Domains = make(map[string]bool)
		for _, domain := range strings.Split(domains, ",") {
			debugConfig.Domains[strings.TrimSpace(domain)] = true
		}
	}
}

// NewLogger creates a logger tagged with the given component name.
func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

// SetDebug toggles debug output and optionally restricts it to the named components.
func SetDebug(enabled bool, domains ...string) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	debugConfig.Enabled = enabled
	if len(domains) == 0 {
		debugConfig.Domains = nil
		return
	}
	debugConfig.Domains = make(map[string]bool, len(domains))
	for _, d := range domains {
		debugConfig.Domains[strings.TrimSpace(d)] = true
	}
}

// IsDebugEnabledForDomain reports whether debug lines for component are emitted.
func IsDebugEnabledForDomain(component string) bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()

	if !debugConfig.Enabled {
		return false
	}
	if debugConfig.Domains == nil {
		return true
	}
	return debugConfig.Domains[component]
}

// SetOutput redirects all loggers. It returns the previous writer so tests can restore it.
func SetOutput(w io.Writer) io.Writer {
	outputMux.Lock()
	defer outputMux.Unlock()
	prev := output
	output = w
	return prev
}

// SetOutputFile tees log output to path in addition to stderr.
func SetOutputFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	outputMux.Lock()
	defer outputMux.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	output = io.MultiWriter(os.Stderr, f)
	return nil
}

// Close flushes and closes the log file, if any.
func Close() {
	outputMux.Lock()
	defer outputMux.Unlock()
	if logFile != nil {
		_ = logFile.Sync()
		_ = logFile.Close()
		logFile = nil
	}
	output = os.Stderr
}

func (l *Logger) log(level Level, format string, args ...any) {
	timestamp := time.Now().UTC().Format(timestampFormat)
	message := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("[%s] [%s] %s: %s\n", timestamp, l.component, level, message)

	outputMux.Lock()
	defer outputMux.Unlock()
	_, _ = io.WriteString(output, line)
}

func (l *Logger) Debug(format string, args ...any) {
	if !IsDebugEnabledForDomain(l.component) {
		return
	}
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// Component returns the logger's component tag.
func (l *Logger) Component() string {
	return l.component
}

// With returns a logger for a sub-component, e.g. "pipeline/ci".
func (l *Logger) With(sub string) *Logger {
	return &Logger{component: l.component + "/" + sub}
}
