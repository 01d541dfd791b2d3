// Package event defines the typed domain events flowing through the fanout
// broker and exported to NATS. Every event is a tagged struct with its own
// validation; untyped payload maps never cross a package boundary.
package event

import (
	stderrors "errors"
	"time"

	"github.com/google/uuid"
)

// Fanout channel names. One channel per entity family.
const (
	ChannelAlerts = "alerts"
	ChannelCases  = "cases"
	ChannelAssets = "assets"
)

// SubjectPrefix is the root of the NATS subject space events are exported
// under, e.g. "opscore.events.alerts.severity_changed".
const SubjectPrefix = "opscore.events"

// Severity is an alert severity level.
type Severity string

// Alert severity levels, weakest first.
const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank returns the ordering weight of a severity, for threshold filters.
// Unknown severities rank below LOW.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is a known severity level.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

var (
	errMissingEntityID = stderrors.New("entity id is required")
	errBadSeverity     = stderrors.New("unknown severity level")
)

// Event is the contract all domain events satisfy.
type Event interface {
	// Type returns the versioned event type tag, e.g.
	// "alert.severity_changed.v1".
	Type() string

	// Channel returns the fanout channel the event belongs on.
	Channel() string

	// Subject returns the NATS subject the event is exported under.
	Subject() string

	// Validate checks required fields before publish.
	Validate() error
}

// Meta carries the identity and timing every event shares.
type Meta struct {
	EventID    string    `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewMeta stamps a fresh event identity.
func NewMeta() Meta {
	return Meta{
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
	}
}

func (m Meta) validate() error {
	if m.EventID == "" {
		return stderrors.New("event id is required")
	}
	return nil
}
