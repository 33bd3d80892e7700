package rag

import (
	"sync"

	"github.com/andrew/textbook-rag/pkg/models"
)

// MemoryHistory keeps sessions for the lifetime of the process
type MemoryHistory struct {
	mu       sync.Mutex
	sessions map[string][]models.Message
}

// NewMemoryHistory creates an empty in-process history
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{sessions: map[string][]models.Message{}}
}

func (h *MemoryHistory) Load(id string) ([]models.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.Message(nil), h.sessions[id]...), nil
}

func (h *MemoryHistory) Save(id string, history []models.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[id] = append([]models.Message(nil), history...)
	return nil
}
