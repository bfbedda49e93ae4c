package abbrev

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Log accumulates word -> expansion pairs resolved during a run.
// It is safe for concurrent use. Later records for a word replace earlier ones.
type Log struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{entries: make(map[string]string)}
}

// Record stores the expansion chosen for word.
func (l *Log) Record(word, expansion string) {
	l.mu.Lock()
	l.entries[word] = expansion
	l.mu.Unlock()
}

// Get returns the recorded expansion for word.
func (l *Log) Get(word string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[word]
	return e, ok
}

// Len returns the number of distinct words recorded.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Snapshot returns a copy of the recorded pairs.
func (l *Log) Snapshot() map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]string, len(l.entries))
	for k, v := range l.entries {
		out[k] = v
	}
	return out
}

// Merge records every pair of m.
func (l *Log) Merge(m map[string]string) {
	l.mu.Lock()
	for k, v := range m {
		l.entries[k] = v
	}
	l.mu.Unlock()
}

// Save writes the log as an indented JSON object with sorted keys,
// replacing any existing file at path.
func (l *Log) Save(path string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(l.Snapshot()); err != nil {
		return fmt.Errorf("encode abbreviation log: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".abbreviations-*")
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write log file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// LoadLog reads a log written by Save.
func LoadLog(path string) (*Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read abbreviation log: %w", err)
	}
	l := NewLog()
	if err := json.Unmarshal(data, &l.entries); err != nil {
		return nil, fmt.Errorf("parse abbreviation log %s: %w", path, err)
	}
	if l.entries == nil {
		l.entries = make(map[string]string)
	}
	return l, nil
}
