// Package logger provides leveled logging for Parley.
// Debug and Info messages are printed only in verbose mode (the --verbose
// flag); warnings and errors are always printed. Output goes to stderr
// unless redirected with SetOutput.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func write(always bool, level, component, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if !always && !verbose {
		return
	}
	if component != "" {
		format = component + ": " + format
	}
	fmt.Fprintf(output, "["+level+"] "+format+"\n", args...)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	write(false, "DEBUG", "", format, args...)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	write(false, "INFO", "", format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	write(true, "WARN", "", format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	write(true, "ERROR", "", format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Logger tags every message with a component name.
type Logger struct {
	component string
}

// For returns a logger that prefixes messages with component.
func For(component string) *Logger {
	return &Logger{component: component}
}

// Debug prints a message if verbose mode is enabled.
func (l *Logger) Debug(format string, args ...any) {
	write(false, "DEBUG", l.component, format, args...)
}

// Info prints an informational message if verbose mode is enabled.
func (l *Logger) Info(format string, args ...any) {
	write(false, "INFO", l.component, format, args...)
}

// Warn prints a warning message.
func (l *Logger) Warn(format string, args ...any) {
	write(true, "WARN", l.component, format, args...)
}

// Error prints an error message.
func (l *Logger) Error(format string, args ...any) {
	write(true, "ERROR", l.component, format, args...)
}
