// Package logbook persists dispatcher progress to an append-only text file
// under .voxsweep/logs, so a sweep that ran overnight can be audited after
// the terminal scrollback is gone.
package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// FileName is the log file created inside the logs directory.
const FileName = "voxsweep.log"

// Logbook appends timestamped lines to a single file. Safe for use from the
// dispatch goroutine and the TUI at once.
type Logbook struct {
	path string
	mu   sync.Mutex
}

// New creates a logbook inside the given logs directory.
func New(logsDir string) (*Logbook, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("logbook: ensure log dir: %w", err)
	}
	return &Logbook{path: filepath.Join(logsDir, FileName)}, nil
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes a single entry.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("%s %-5s %s\n",
		time.Now().UTC().Format(time.RFC3339),
		string(level),
		strings.TrimSpace(message),
	)
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line)
}

// Tail returns up to maxLines of the most recent entries.
func (l *Logbook) Tail(maxLines int) []string {
	if l == nil || maxLines <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) == 0 {
		return nil
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}

// Job returns a view of the logbook whose entries carry the run name, so
// lines from a long sweep can be attributed to the job that produced them.
func (l *Logbook) Job(runName string) *JobLog {
	return &JobLog{book: l, runName: runName}
}

// JobLog prefixes every entry with its run name.
type JobLog struct {
	book    *Logbook
	runName string
}

// Info appends a run-scoped informational entry.
func (j *JobLog) Info(format string, args ...any) {
	if j == nil {
		return
	}
	j.book.Append(LevelInfo, fmt.Sprintf("[%s] %s", j.runName, fmt.Sprintf(format, args...)))
}

// Error appends a run-scoped error entry.
func (j *JobLog) Error(format string, args ...any) {
	if j == nil {
		return
	}
	j.book.Append(LevelError, fmt.Sprintf("[%s] %s", j.runName, fmt.Sprintf(format, args...)))
}
