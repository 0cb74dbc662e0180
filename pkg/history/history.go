// Package history records script runs. Records live in memory and, when a
// file is configured, in a JSON array on disk that other processes may
// append to under a file lock.
package history

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
	"unicode"

	"github.com/gofrs/flock"
	"github.com/oarkflow/errors"
	"github.com/oarkflow/json"
	"github.com/oarkflow/xid"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

type Record struct {
	ID        string        `json:"id"`
	Source    string        `json:"source"`
	Status    Status        `json:"status"`
	Result    string        `json:"result,omitempty"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	Code      string        `json:"code,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

type Store struct {
	mu       sync.RWMutex
	path     string
	lock     *flock.Flock
	records  []Record
	index    map[string]int
	maxItems int
}

// Open returns a store backed by path. An empty path keeps records in
// memory only. maxItems caps the in-memory list; zero means no cap.
func Open(path string, maxItems int) (*Store, error) {
	s := &Store{path: path, index: make(map[string]int), maxItems: maxItems}
	if path == "" {
		return s, nil
	}
	s.lock = flock.New(path + ".lock")
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func NewMemory() *Store {
	s, _ := Open("", 0)
	return s
}

func (s *Store) load() error {
	if err := s.lock.RLock(); err != nil {
		return err
	}
	defer func() { _ = s.lock.Unlock() }()
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) || (err == nil && len(bytes.TrimSpace(data)) == 0) {
		return nil
	}
	if err != nil {
		return err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("history: decode %s: %w", s.path, err)
	}
	for _, r := range records {
		s.add(r)
	}
	return nil
}

func (s *Store) add(r Record) {
	s.records = append(s.records, r)
	if s.maxItems <= 0 || len(s.records) <= s.maxItems {
		s.index[r.ID] = len(s.records) - 1
		return
	}
	s.records = s.records[len(s.records)-s.maxItems:]
	s.index = make(map[string]int, len(s.records))
	for i, rec := range s.records {
		s.index[rec.ID] = i
	}
}

// Append assigns an id when missing and stores the record.
func (s *Store) Append(r Record) (Record, error) {
	if r.ID == "" {
		r.ID = xid.New().String()
	}
	if r.Status == "" {
		return Record{}, errors.New("history: record status is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path != "" {
		if err := s.appendToFile(r); err != nil {
			return Record{}, err
		}
	}
	s.add(r)
	return r, nil
}

// List returns records newest first, at most limit when limit > 0.
func (s *Store) List(limit int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, 0, n)
	for i := len(s.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.records[i])
	}
	return out
}

func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return Record{}, false
	}
	return s.records[i], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// appendToFile splices the record in before the closing bracket of the
// array so the file stays valid JSON after every append.
func (s *Store) appendToFile(r Record) error {
	if err := s.lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = s.lock.Unlock() }()

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	element, err := json.Marshal(r)
	if err != nil {
		return err
	}
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if fi.Size() == 0 {
		content := append([]byte("[\n  "), element...)
		content = append(content, []byte("\n]\n")...)
		_, err = f.Write(content)
		if err != nil {
			return err
		}
		return f.Sync()
	}

	tailSize := int64(1024)
	if fi.Size() < tailSize {
		tailSize = fi.Size()
	}
	offset := fi.Size() - tailSize
	buf := make([]byte, tailSize)
	if _, err := f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return err
	}
	closing := bytes.LastIndexByte(buf, ']')
	if closing == -1 {
		return errors.New("history: invalid file, missing closing bracket")
	}
	pos := closing - 1
	for pos >= 0 && unicode.IsSpace(rune(buf[pos])) {
		pos--
	}
	if pos < 0 {
		return errors.New("history: invalid file, no content before closing bracket")
	}
	prefix := []byte(",\n  ")
	if buf[pos] == '[' {
		prefix = []byte("\n  ")
	}
	if err := f.Truncate(offset + int64(pos) + 1); err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	content := append(prefix, element...)
	content = append(content, []byte("\n]\n")...)
	if _, err := f.Write(content); err != nil {
		return err
	}
	return f.Sync()
}
