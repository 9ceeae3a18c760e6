package alerting

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/OldStager01/leakwatch/pkg/models"
)

const defaultMemoryCapacity = 1000

// MemoryStore keeps the most recent alerts in process memory. It backs the
// alert endpoints when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	alerts   []*models.Alert
	index    map[string]*models.Alert
	capacity int
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryStore{
		index:    make(map[string]*models.Alert),
		capacity: capacity,
	}
}

// SaveAlert stores a copy of a. Saving the same id twice is a no-op.
func (s *MemoryStore) SaveAlert(_ context.Context, a *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[a.ID]; ok {
		return nil
	}
	cp := *a
	s.alerts = append(s.alerts, &cp)
	s.index[cp.ID] = &cp

	if len(s.alerts) > s.capacity {
		evicted := s.alerts[0]
		s.alerts = s.alerts[1:]
		delete(s.index, evicted.ID)
	}
	return nil
}

// List returns the newest alerts of an installation, skipping deleted ones.
func (s *MemoryStore) List(_ context.Context, installationID string, limit int) ([]*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Alert, 0)
	for _, a := range s.alerts {
		if a.InstallationID != installationID || a.Status == models.AlertStatusDeleted {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status models.AlertStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid alert status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.index[id]
	if !ok {
		return models.ErrAlertNotFound
	}
	a.Status = status
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}
