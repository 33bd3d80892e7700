// Package logger provides the console output used by the indexer and query
// commands. Info, Warn and Error always print; Debug only prints when verbose
// mode is enabled with --verbose.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stdout

	debugPrefix   = color.New(color.FgHiBlack).SprintFunc()
	infoPrefix    = color.New(color.FgCyan).SprintFunc()
	warnPrefix    = color.New(color.FgYellow).SprintFunc()
	errorPrefix   = color.New(color.FgRed, color.Bold).SprintFunc()
	sectionHeader = color.New(color.FgGreen, color.Bold).SprintFunc()
)

// SetVerbose enables or disables debug output.
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

// SetOutput sets the writer for all log output. Defaults to os.Stdout.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Output returns the current writer.
func Output() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return output
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, debugPrefix("🔍 ")+format+"\n", args...)
	}
}

// Info prints a progress message.
func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	fmt.Fprintf(output, infoPrefix("✅ ")+format+"\n", args...)
}

// Warn prints a warning.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	fmt.Fprintf(output, warnPrefix("⚠️ ")+format+"\n", args...)
}

// Error prints an error followed by optional remediation hints, one per line.
func Error(err error, hints ...string) {
	mu.RLock()
	defer mu.RUnlock()
	fmt.Fprintf(output, errorPrefix("😡 ")+"%v\n", err)
	for _, h := range hints {
		fmt.Fprintf(output, "   %s\n", h)
	}
}

// Section prints a section header.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	fmt.Fprintf(output, "\n%s\n", sectionHeader("### "+name+" ###"))
}
