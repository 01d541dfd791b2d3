// Package graph defines the correlation graph data model and the store
// contract the walker reads from. Nodes are security entities (alerts,
// cases, assets, indicators); edges are scored correlation relationships
// between them.
package graph

import (
	"encoding/json"
)

// Node kinds stored in the correlation graph.
const (
	KindAlert     = "alert"
	KindCase      = "case"
	KindAsset     = "asset"
	KindIndicator = "indicator"
)

// Node is one entity in the correlation graph.
type Node struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Label      string            `json:"label,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Edge is a directed, scored correlation between two nodes. Score carries
// the correlation strength in [0,1]. Some upstream analyzers emit edges
// without a score; that absence is explicit via HasScore rather than a
// zero or sentinel value, and score policy is decided by the walker.
type Edge struct {
	From     string
	To       string
	Relation string
	Score    float64
	HasScore bool

	// Evidence lists the analyzer observations behind the correlation.
	Evidence []string
}

// edgeWire is the JSON representation. A missing score field maps to
// HasScore=false.
type edgeWire struct {
	From     string   `json:"from,omitempty"`
	To       string   `json:"to"`
	Relation string   `json:"relation,omitempty"`
	Score    *float64 `json:"score,omitempty"`
	Evidence []string `json:"evidence,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (e Edge) MarshalJSON() ([]byte, error) {
	w := edgeWire{From: e.From, To: e.To, Relation: e.Relation, Evidence: e.Evidence}
	if e.HasScore {
		score := e.Score
		w.Score = &score
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler
func (e *Edge) UnmarshalJSON(data []byte) error {
	var w edgeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.From = w.From
	e.To = w.To
	e.Relation = w.Relation
	e.Evidence = w.Evidence
	if w.Score != nil {
		e.Score = *w.Score
		e.HasScore = true
	} else {
		e.Score = 0
		e.HasScore = false
	}
	return nil
}

// nodeRecord is the stored representation of a node together with its
// outgoing edges, in insertion order.
type nodeRecord struct {
	Node  Node   `json:"node"`
	Edges []Edge `json:"edges,omitempty"`
}
