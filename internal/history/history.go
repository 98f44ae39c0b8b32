package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Entry is one completed run in the persisted download log
type Entry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	RUC        string    `json:"ruc"`
	Origen     string    `json:"origen"`
	Anio       int       `json:"anio"`
	Mes        int       `json:"mes"`
	Tipo       string    `json:"tipo"`
	Estado     string    `json:"estado"`
	NXML       int       `json:"n_xml"`
	NPDF       int       `json:"n_pdf"`
	NRegistros int       `json:"n_registros"`
}

// Store keeps the run history in a single JSON file. Writes are serialized;
// a missing or corrupt file reads as an empty history rather than an error.
type Store struct {
	path   string
	logger *logrus.Entry
	mu     sync.Mutex
}

func NewStore(path string, logger *logrus.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.WithField("component", "history"),
	}
}

// Append adds the entry and rewrites the file. History is an audit aid, so a
// failed write is logged and swallowed instead of failing the run it records.
func (s *Store) Append(entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.read()
	entries = append(entries, entry)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.WithError(err).Warn("Failed to create history directory")
		return
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		s.logger.WithError(err).Warn("Failed to encode history")
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.logger.WithError(err).Warn("Failed to write history")
	}
}

// List returns the recorded runs, newest first
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.read()
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}

func (s *Store) read() []Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.WithError(err).Warn("History file is corrupt, starting fresh")
		return nil
	}
	return entries
}
