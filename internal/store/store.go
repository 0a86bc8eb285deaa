package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Store manages persistence of session, command and rejection history.
type Store struct {
	root string
	mu   sync.Mutex
}

// New creates a Store rooted at the given directory (typically .doorlink/).
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) historyDir() string {
	return filepath.Join(s.root, "history")
}

// AddSession appends a session record.
func (s *Store) AddSession(r SessionRecord) error {
	return s.appendRecord("sessions.json", r)
}

// AddCommand appends a command record.
func (s *Store) AddCommand(r CommandRecord) error {
	return s.appendRecord("commands.json", r)
}

// AddRejected appends a rejected authorization attempt.
func (s *Store) AddRejected(r RejectedRecord) error {
	return s.appendRecord("rejected.json", r)
}

// Sessions returns all session records.
func (s *Store) Sessions() ([]SessionRecord, error) {
	var records []SessionRecord
	err := s.loadRecords("sessions.json", &records)
	return records, err
}

// Commands returns all command records.
func (s *Store) Commands() ([]CommandRecord, error) {
	var records []CommandRecord
	err := s.loadRecords("commands.json", &records)
	return records, err
}

// Rejected returns all rejected authorization attempts.
func (s *Store) Rejected() ([]RejectedRecord, error) {
	var records []RejectedRecord
	err := s.loadRecords("rejected.json", &records)
	return records, err
}

func (s *Store) appendRecord(filename string, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.historyDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, filename)

	var records []json.RawMessage
	if data, err := os.ReadFile(path); err == nil {
		json.Unmarshal(data, &records)
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	records = append(records, raw)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) loadRecords(filename string, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.historyDir(), filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, dest)
}
