package graph

import (
	"context"
	"sync"

	"github.com/c360/opscore/errors"
)

// MemoryStore is an in-process Store used by tests and local development.
// Edge insertion order is preserved per node.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]Node
	edges map[string][]Edge
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]Node),
		edges: make(map[string][]Edge),
	}
}

// PutNode inserts or replaces a node.
func (s *MemoryStore) PutNode(node Node) error {
	if node.ID == "" {
		return errors.WrapValidation(errors.ErrEmptyKey, "graph", "PutNode", "node id check")
	}

	s.mu.Lock()
	s.nodes[node.ID] = node
	s.mu.Unlock()
	return nil
}

// PutEdge appends an outgoing edge to its From node's list.
func (s *MemoryStore) PutEdge(edge Edge) error {
	if edge.From == "" || edge.To == "" {
		return errors.WrapValidation(errors.ErrEmptyKey, "graph", "PutEdge", "endpoint check")
	}

	s.mu.Lock()
	s.edges[edge.From] = append(s.edges[edge.From], edge)
	s.mu.Unlock()
	return nil
}

// NodeDetails implements Store
func (s *MemoryStore) NodeDetails(_ context.Context, id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, nil
	}
	return &node, nil
}

// Neighbors implements Store
func (s *MemoryStore) Neighbors(_ context.Context, id string) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := s.edges[id]
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out, nil
}

// NodesByIDs implements Store
func (s *MemoryStore) NodesByIDs(_ context.Context, ids []string) (map[string]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]Node, len(ids))
	for _, id := range ids {
		if node, ok := s.nodes[id]; ok {
			result[id] = node
		}
	}
	return result, nil
}

// NeighborsByIDs implements Store
func (s *MemoryStore) NeighborsByIDs(_ context.Context, ids []string) (map[string][]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]Edge, len(ids))
	for _, id := range ids {
		edges := s.edges[id]
		out := make([]Edge, len(edges))
		copy(out, edges)
		result[id] = out
	}
	return result, nil
}
