package runlog

import (
	"context"
	"sync"
	"time"
)

// MemoryJournal keeps runs for the lifetime of the process. It backs the
// service when no journal database is configured.
type MemoryJournal struct {
	mu     sync.RWMutex
	runs   map[string]Run
	chunks map[string]map[time.Time]bool
}

// NewMemory returns an empty in-process journal.
func NewMemory() *MemoryJournal {
	return &MemoryJournal{
		runs:   make(map[string]Run),
		chunks: make(map[string]map[time.Time]bool),
	}
}

func (m *MemoryJournal) Start(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *MemoryJournal) Get(_ context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &run, nil
}

func (m *MemoryJournal) CompletedChunks(_ context.Context, runID string) (map[time.Time]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	done := make(map[time.Time]bool, len(m.chunks[runID]))
	for start := range m.chunks[runID] {
		done[start] = true
	}
	return done, nil
}

func (m *MemoryJournal) ChunkDone(_ context.Context, run *Run, c *Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chunks[run.ID] == nil {
		m.chunks[run.ID] = make(map[time.Time]bool)
	}
	m.chunks[run.ID][c.ChunkStart] = true
	m.runs[run.ID] = *run
	return nil
}

func (m *MemoryJournal) Finish(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}
