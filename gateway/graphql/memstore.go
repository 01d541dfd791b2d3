package graphql

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/c360/opscore/errors"
	"github.com/c360/opscore/event"
)

// MemoryEntityStore is an in-process EntityStore for tests and local
// development. Child alert lists are returned sorted by id so reads are
// deterministic.
type MemoryEntityStore struct {
	mu     sync.RWMutex
	alerts map[string]Alert
	cases  map[string]Case
	assets map[string]Asset
}

// NewMemoryEntityStore creates an empty store.
func NewMemoryEntityStore() *MemoryEntityStore {
	return &MemoryEntityStore{
		alerts: make(map[string]Alert),
		cases:  make(map[string]Case),
		assets: make(map[string]Asset),
	}
}

// SeedAlert inserts or replaces an alert.
func (s *MemoryEntityStore) SeedAlert(a Alert) {
	s.mu.Lock()
	s.alerts[a.ID] = a
	s.mu.Unlock()
}

// SeedCase inserts or replaces a case.
func (s *MemoryEntityStore) SeedCase(c Case) {
	s.mu.Lock()
	s.cases[c.ID] = c
	s.mu.Unlock()
}

// SeedAsset inserts or replaces an asset.
func (s *MemoryEntityStore) SeedAsset(a Asset) {
	s.mu.Lock()
	s.assets[a.ID] = a
	s.mu.Unlock()
}

// AlertsByIDs implements EntityStore
func (s *MemoryEntityStore) AlertsByIDs(_ context.Context, ids []string) (map[string]Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]Alert, len(ids))
	for _, id := range ids {
		if a, ok := s.alerts[id]; ok {
			result[id] = a
		}
	}
	return result, nil
}

// AlertsByCaseIDs implements EntityStore
func (s *MemoryEntityStore) AlertsByCaseIDs(_ context.Context, caseIDs []string) (map[string][]Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]Alert, len(caseIDs))
	for _, caseID := range caseIDs {
		var children []Alert
		for _, a := range s.alerts {
			if a.CaseID == caseID {
				children = append(children, a)
			}
		}
		sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })
		result[caseID] = children
	}
	return result, nil
}

// CasesByIDs implements EntityStore
func (s *MemoryEntityStore) CasesByIDs(_ context.Context, ids []string) (map[string]Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]Case, len(ids))
	for _, id := range ids {
		if c, ok := s.cases[id]; ok {
			result[id] = c
		}
	}
	return result, nil
}

// AssetsByIDs implements EntityStore
func (s *MemoryEntityStore) AssetsByIDs(_ context.Context, ids []string) (map[string]Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]Asset, len(ids))
	for _, id := range ids {
		if a, ok := s.assets[id]; ok {
			result[id] = a
		}
	}
	return result, nil
}

// UpdateAlertSeverity implements EntityStore
func (s *MemoryEntityStore) UpdateAlertSeverity(_ context.Context, id string, severity event.Severity) (Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return Alert{}, errors.WrapValidation(errors.ErrUnknownEntity, "entitystore", "UpdateAlertSeverity", "alert "+id)
	}

	a.Severity = severity
	a.UpdatedAt = time.Now().UTC()
	s.alerts[id] = a
	return a, nil
}

// CloseCase implements EntityStore
func (s *MemoryEntityStore) CloseCase(_ context.Context, id string) (Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cases[id]
	if !ok {
		return Case{}, errors.WrapValidation(errors.ErrUnknownEntity, "entitystore", "CloseCase", "case "+id)
	}

	c.Status = CaseClosed
	c.UpdatedAt = time.Now().UTC()
	s.cases[id] = c
	return c, nil
}

// RevalueAsset implements EntityStore
func (s *MemoryEntityStore) RevalueAsset(_ context.Context, id string, criticality float64) (Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[id]
	if !ok {
		return Asset{}, errors.WrapValidation(errors.ErrUnknownEntity, "entitystore", "RevalueAsset", "asset "+id)
	}

	a.Criticality = criticality
	a.UpdatedAt = time.Now().UTC()
	s.assets[id] = a
	return a, nil
}
