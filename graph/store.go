package graph

import (
	"context"
)

// Store is the read contract the correlation walker consumes. All methods
// are idempotent, side-effect-free reads.
//
// Absent nodes are never errors: NodeDetails returns nil, NodesByIDs omits
// the id from the map, and the neighbor methods return empty edge lists.
// Edge order within one node's list is the store's insertion order; stores
// must keep it stable so repeated walks over an unchanged snapshot return
// identical results.
type Store interface {
	// NodeDetails returns the node with the given id, or nil if absent.
	NodeDetails(ctx context.Context, id string) (*Node, error)

	// Neighbors returns the outgoing edges of the given node in insertion
	// order, with From populated.
	Neighbors(ctx context.Context, id string) ([]Edge, error)

	// NodesByIDs returns details for all present ids in one logical
	// operation. Absent ids are simply missing from the result.
	NodesByIDs(ctx context.Context, ids []string) (map[string]Node, error)

	// NeighborsByIDs returns the outgoing edges for all ids in one logical
	// operation. Ids with no edges (or absent ids) map to empty lists.
	NeighborsByIDs(ctx context.Context, ids []string) (map[string][]Edge, error)
}
