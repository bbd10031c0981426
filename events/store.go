// Package events provides event storage for the safety audit trail.
package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// File system constants.
const (
	dirPermissions  = 0750
	filePermissions = 0600
	scannerBufSize  = 1024 * 1024 // 1MB buffer for large lines

	// defaultRecentCap bounds the in-memory tail kept for ReadRecent.
	defaultRecentCap = 200
)

// AuditRecord is the serialized form of one audited event.
// Data retains the raw JSON payload so callers can unmarshal the concrete
// type themselves.
type AuditRecord struct {
	Sequence  int64           `json:"seq"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// AuditFilter specifies criteria for querying audit records.
type AuditFilter struct {
	SessionID string
	Types     []EventType
	Since     time.Time
	Limit     int
}

// AuditStore persists safety-relevant events as JSON Lines in a single file
// and keeps a bounded in-memory tail for cheap recent-history reads.
type AuditStore struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	recent   []AuditRecord
	cap      int
	sequence atomic.Int64
}

// NewAuditStore creates an audit store writing to dir/safety.jsonl.
// Existing records in the file are preserved; new records append.
func NewAuditStore(dir string) (*AuditStore, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	path := filepath.Join(dir, "safety.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePermissions)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	return &AuditStore{
		file: f,
		path: path,
		cap:  defaultRecentCap,
	}, nil
}

// Append records one event.
func (s *AuditStore) Append(event *Event) error {
	record := AuditRecord{
		Sequence:  s.sequence.Add(1),
		Type:      event.Type,
		Timestamp: event.Timestamp,
		SessionID: event.SessionID,
	}
	if event.Data != nil {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("serialize event data: %w", err)
		}
		record.Data = data
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}

	s.recent = append(s.recent, record)
	if len(s.recent) > s.cap {
		s.recent = s.recent[len(s.recent)-s.cap:]
	}
	return nil
}

// ReadRecent returns up to limit of the most recent records, newest last.
// Only records appended by this process are visible; use Query for the full
// file history.
func (s *AuditStore) ReadRecent(limit int) []AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.recent
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	out := make([]AuditRecord, len(records))
	copy(out, records)
	return out
}

// Query scans the full audit file and returns records matching the filter.
func (s *AuditStore) Query(filter *AuditFilter) ([]AuditRecord, error) {
	s.mu.Lock()
	path := s.path
	s.mu.Unlock()

	f, err := os.Open(path) //nolint:gosec // path is built from a trusted directory
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	var records []AuditRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, scannerBufSize), scannerBufSize)

	for scanner.Scan() {
		var record AuditRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue // Skip malformed lines
		}
		if matchesFilter(&record, filter) {
			records = append(records, record)
			if filter != nil && filter.Limit > 0 && len(records) >= filter.Limit {
				break
			}
		}
	}

	return records, scanner.Err()
}

// Sync flushes pending writes to disk.
func (s *AuditStore) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Sync()
}

// Close releases the underlying file.
func (s *AuditStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("sync audit file: %w", err)
	}
	return s.file.Close()
}

// Listener returns an events.Listener that appends every event it receives.
// Append errors are dropped; the audit trail never blocks a chat turn.
func (s *AuditStore) Listener() Listener {
	return func(event *Event) {
		_ = s.Append(event)
	}
}

func matchesFilter(record *AuditRecord, filter *AuditFilter) bool {
	if filter == nil {
		return true
	}
	if filter.SessionID != "" && record.SessionID != filter.SessionID {
		return false
	}
	if !filter.Since.IsZero() && record.Timestamp.Before(filter.Since) {
		return false
	}
	if len(filter.Types) == 0 {
		return true
	}
	for _, t := range filter.Types {
		if record.Type == t {
			return true
		}
	}
	return false
}
