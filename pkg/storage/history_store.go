package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/qualify/pkg/domain/generation"
	"github.com/felixgeelhaar/qualify/pkg/domain/questions"
)

// HistoryEntry is one completed generation run.
type HistoryEntry struct {
	ID           string             `json:"id"`
	RunID        string             `json:"run_id,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
	Template     string             `json:"template"`
	Situation    string             `json:"situation"`
	Requested    int                `json:"requested"`
	AttemptsUsed int                `json:"attempts_used"`
	Outcome      generation.Outcome `json:"outcome"`
	Records      []questions.Record `json:"records"`
}

// FileHistoryStore keeps completed runs in a JSON Lines file.
type FileHistoryStore struct {
	mu       sync.RWMutex
	path     string
	basePath string
	now      func() time.Time
}

// NewFileHistoryStore creates a history store in basePath. The directory is
// created on first write.
func NewFileHistoryStore(basePath string) *FileHistoryStore {
	return &FileHistoryStore{
		path:     filepath.Join(basePath, HistoryFile),
		basePath: basePath,
		now:      time.Now,
	}
}

// Path returns the history file location.
func (s *FileHistoryStore) Path() string {
	return s.path
}

// Append records a completed run.
func (s *FileHistoryStore) Append(req generation.Request, res *generation.Result) (err error) {
	if res == nil {
		return fmt.Errorf("result is nil")
	}

	entry := HistoryEntry{
		ID:           uuid.New().String(),
		RunID:        res.RunID,
		Timestamp:    s.now().UTC(),
		Template:     res.Template,
		Situation:    req.Situation,
		Requested:    res.Requested,
		AttemptsUsed: res.AttemptsUsed,
		Outcome:      res.Outcome,
		Records:      res.Records,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.basePath, 0750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close history file: %w", cerr)
		}
	}()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write history entry: %w", err)
	}
	return nil
}

// LoadAll returns all entries in the order they were recorded.
func (s *FileHistoryStore) LoadAll() ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	var result []HistoryEntry
	scanner := bufio.NewScanner(f)

	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e HistoryEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("unmarshal history entry: %w", err)
		}
		result = append(result, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return result, nil
}

// Recent returns up to n of the newest entries, newest first. n <= 0 means all.
func (s *FileHistoryStore) Recent(n int) ([]HistoryEntry, error) {
	all, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	if n <= 0 || n > len(all) {
		n = len(all)
	}
	out := make([]HistoryEntry, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}
