package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quentinlg/ollamadesk/internal/logger"
)

// ErrNotFound is returned when no conversation with the requested id exists.
var ErrNotFound = errors.New("conversation not found")

// Recorder mirrors message appends into a secondary index (the SQLite
// archive). Recorder failures never fail the store; the JSON records stay the
// source of truth.
type Recorder interface {
	Record(conversationID, role, content string, at time.Time) error
	PurgeConversation(conversationID string) error
	PurgeAll() error
}

// Store provides durable CRUD over conversations: one JSON file per
// conversation under dir. The in-memory index is shared between the UI
// goroutine and pipeline workers, so every access goes through the mutex.
type Store struct {
	dir      string
	mu       sync.Mutex
	index    map[string]*Conversation
	recorder Recorder
}

// New creates a Store rooted at dir (created if absent) and loads every
// readable record. Malformed files are skipped and logged; they are not fatal.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversations dir: %w", err)
	}

	s := &Store{
		dir:   dir,
		index: make(map[string]*Conversation),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan conversations dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		conv, err := readRecord(filepath.Join(dir, entry.Name()))
		if err != nil {
			logger.L.Warn("skipping unreadable conversation record", "file", entry.Name(), "error", err)
			continue
		}
		s.index[conv.ID] = conv
	}

	return s, nil
}

// SetRecorder attaches a message recorder. Pass nil to detach.
func (s *Store) SetRecorder(r Recorder) {
	s.mu.Lock()
	s.recorder = r
	s.mu.Unlock()
}

// Create builds a new empty conversation bound to model, persists it and
// returns it. The conversation is durable once Create returns without error.
func (s *Store) Create(model string) (*Conversation, error) {
	now := time.Now()
	conv := &Conversation{
		ID:            uuid.NewString(),
		SchemaVersion: schemaVersion,
		Model:         model,
		CreatedAt:     now,
		LastUpdated:   now,
		Messages:      []Message{},
	}

	if err := s.persist(conv); err != nil {
		return nil, fmt.Errorf("persist new conversation: %w", err)
	}

	s.mu.Lock()
	s.index[conv.ID] = conv
	s.mu.Unlock()

	logger.L.Info("conversation created", "id", conv.ID, "model", model)
	return conv, nil
}

// Append adds a message to conv with the current timestamp, bumps
// LastUpdated and persists the whole record. conv is mutated in place and
// returned; callers must treat the returned value as the source of truth.
//
// The mutation happens under the store mutex: List may be sorting the shared
// index from another goroutine while a pipeline worker appends. Appending to
// a deleted conversation returns ErrNotFound instead of resurrecting it.
func (s *Store) Append(conv *Conversation, role, content string) (*Conversation, error) {
	s.mu.Lock()
	if _, ok := s.index[conv.ID]; !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	now := time.Now()
	conv.Messages = append(conv.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	conv.LastUpdated = now

	if err := s.persist(conv); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("persist conversation %s: %w", conv.ID, err)
	}
	s.index[conv.ID] = conv
	rec := s.recorder
	s.mu.Unlock()

	if rec != nil {
		if err := rec.Record(conv.ID, role, content, now); err != nil {
			logger.L.Warn("archive record failed", "id", conv.ID, "error", err)
		}
	}

	return conv, nil
}

// Load returns the conversation with the given id, or ErrNotFound.
func (s *Store) Load(id string) (*Conversation, error) {
	s.mu.Lock()
	conv, ok := s.index[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return conv, nil
}

// List returns all conversations, most recently active first. Ties on
// LastUpdated break by CreatedAt, newest first. Sorting happens under the
// mutex so the comparator never races with an in-flight Append.
func (s *Store) List() []*Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Conversation, 0, len(s.index))
	for _, conv := range s.index {
		out = append(out, conv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastUpdated.Equal(out[j].LastUpdated) {
			return out[i].LastUpdated.After(out[j].LastUpdated)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Delete removes the conversation from memory and disk. Deleting an unknown
// id is a no-op.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	delete(s.index, id)
	rec := s.recorder
	s.mu.Unlock()

	if err := os.Remove(s.filePath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}

	if rec != nil {
		if err := rec.PurgeConversation(id); err != nil {
			logger.L.Warn("archive purge failed", "id", id, "error", err)
		}
	}
	return nil
}

// ClearAll deletes every known conversation. List is empty afterwards even if
// individual file removals fail; failures are logged and the first is returned.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.index))
	for id := range s.index {
		ids = append(ids, id)
	}
	s.index = make(map[string]*Conversation)
	rec := s.recorder
	s.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := os.Remove(s.filePath(id)); err != nil && !os.IsNotExist(err) {
			logger.L.Warn("failed to remove conversation file", "id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if rec != nil {
		if err := rec.PurgeAll(); err != nil {
			logger.L.Warn("archive purge failed", "error", err)
		}
	}
	return firstErr
}

func (s *Store) filePath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// persist writes the record atomically: temp file in the same directory,
// fsync, then rename. A crash mid-write leaves either the old record or the
// new one, never a truncated file.
func (s *Store) persist(conv *Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(s.dir, ".tmp-")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.filePath(conv.ID)); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func readRecord(path string) (*Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, err
	}
	if conv.ID == "" {
		return nil, fmt.Errorf("record %s has no id", filepath.Base(path))
	}
	return &conv, nil
}
