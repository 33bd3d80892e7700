// Package session persists conversation history as JSON files, one per
// session id.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andrew/textbook-rag/pkg/logger"
	"github.com/andrew/textbook-rag/pkg/models"
)

// ErrInvalidID is returned for ids that would escape the session directory
var ErrInvalidID = errors.New("invalid session id")

// On-disk turn types
const (
	typeHuman = "human"
	typeAI    = "ai"
)

type turn struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Store reads and writes <Dir>/<id>.json. Concurrent writers to the same id
// are not coordinated; the last rename wins.
type Store struct {
	Dir string
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Load returns the history for id in order. A missing file is an empty history.
func (s *Store) Load(id string) ([]models.Message, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}

	var turns []turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}

	history := make([]models.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Type {
		case typeHuman:
			history = append(history, models.UserMessage(t.Content))
		case typeAI:
			history = append(history, models.AssistantMessage(t.Content))
		default:
			logger.Debug("Skipping session turn with type %q", t.Type)
		}
	}
	return history, nil
}

// Save replaces the history for id. System messages are not stored.
func (s *Store) Save(id string, history []models.Message) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}

	turns := make([]turn, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case models.RoleUser:
			turns = append(turns, turn{Type: typeHuman, Content: m.Content})
		case models.RoleAssistant:
			turns = append(turns, turn{Type: typeAI, Content: m.Content})
		}
	}

	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("write session %s: %w", id, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session %s: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write session %s: %w", id, err)
	}
	return nil
}

func (s *Store) path(id string) (string, error) {
	if id == "" || id == "." || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(s.Dir, id+".json"), nil
}
