package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreNodeDetails(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.PutNode(Node{ID: "alert-1", Kind: KindAlert, Label: "Suspicious login"}))

	node, err := s.NodeDetails(context.Background(), "alert-1")
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, KindAlert, node.Kind)

	absent, err := s.NodeDetails(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, absent, "absent node is nil, not an error")
}

func TestMemoryStorePreservesEdgeInsertionOrder(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.PutNode(Node{ID: "S", Kind: KindAlert}))
	require.NoError(t, s.PutEdge(Edge{From: "S", To: "A", Score: 0.9, HasScore: true}))
	require.NoError(t, s.PutEdge(Edge{From: "S", To: "B", Score: 0.5, HasScore: true}))
	require.NoError(t, s.PutEdge(Edge{From: "S", To: "C", Score: 0.9, HasScore: true}))

	edges, err := s.Neighbors(context.Background(), "S")
	require.NoError(t, err)
	require.Len(t, edges, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{edges[0].To, edges[1].To, edges[2].To})
}

func TestMemoryStoreBatchReads(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.PutNode(Node{ID: "a", Kind: KindAsset}))
	require.NoError(t, s.PutNode(Node{ID: "b", Kind: KindAsset}))
	require.NoError(t, s.PutEdge(Edge{From: "a", To: "b", Score: 0.7, HasScore: true}))

	nodes, err := s.NodesByIDs(context.Background(), []string{"a", "b", "missing"})
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
	assert.NotContains(t, nodes, "missing")

	neighbors, err := s.NeighborsByIDs(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, neighbors["a"], 1)
	assert.Empty(t, neighbors["b"])
}

func TestMemoryStoreValidation(t *testing.T) {
	s := NewMemoryStore()
	assert.Error(t, s.PutNode(Node{}))
	assert.Error(t, s.PutEdge(Edge{From: "a"}))
	assert.Error(t, s.PutEdge(Edge{To: "b"}))
}
