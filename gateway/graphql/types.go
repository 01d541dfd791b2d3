// Package graphql is the thin gateway the analyst dashboards talk to. It
// exposes the platform's read, write, streaming, and correlation operations
// over JSON and WebSocket endpoints, shaped as resolvers so the operations
// map one-to-one onto the dashboards' query fields.
//
// The package owns no business state: reads flow through per-request loader
// scopes, writes flow through the entity store with synchronous cache
// invalidation and event publication, and streaming flows through the
// fanout broker.
package graphql

import (
	"context"
	"time"

	"github.com/c360/opscore/event"
)

// Alert is a security alert as the dashboards see it.
type Alert struct {
	ID        string         `json:"id"`
	CaseID    string         `json:"case_id,omitempty"`
	Severity  event.Severity `json:"severity"`
	Title     string         `json:"title"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Case is an investigation grouping one or more alerts.
type Case struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Owner     string    `json:"owner,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Case statuses.
const (
	CaseOpen   = "open"
	CaseClosed = "closed"
)

// Asset is an inventory item alerts and cases reference.
type Asset struct {
	ID          string    `json:"id"`
	Hostname    string    `json:"hostname,omitempty"`
	Criticality float64   `json:"criticality"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EntityStore is the downstream persistence boundary. Batch reads take
// arbitrary key order and must omit absent ids from the result rather than
// erroring. Writes return the updated entity or a validation error for
// unknown ids.
type EntityStore interface {
	AlertsByIDs(ctx context.Context, ids []string) (map[string]Alert, error)
	AlertsByCaseIDs(ctx context.Context, caseIDs []string) (map[string][]Alert, error)
	CasesByIDs(ctx context.Context, ids []string) (map[string]Case, error)
	AssetsByIDs(ctx context.Context, ids []string) (map[string]Asset, error)

	UpdateAlertSeverity(ctx context.Context, id string, severity event.Severity) (Alert, error)
	CloseCase(ctx context.Context, id string) (Case, error)
	RevalueAsset(ctx context.Context, id string, criticality float64) (Asset, error)
}
