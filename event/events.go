package event

// AlertCreated fires when a new alert enters the platform.
type AlertCreated struct {
	Meta
	AlertID  string   `json:"alert_id"`
	CaseID   string   `json:"case_id,omitempty"`
	Severity Severity `json:"severity"`
	Title    string   `json:"title,omitempty"`
}

// Type implements Event
func (e AlertCreated) Type() string { return "alert.created.v1" }

// Channel implements Event
func (e AlertCreated) Channel() string { return ChannelAlerts }

// Subject implements Event
func (e AlertCreated) Subject() string { return SubjectPrefix + ".alerts.created" }

// Validate implements Event
func (e AlertCreated) Validate() error {
	if err := e.Meta.validate(); err != nil {
		return err
	}
	if e.AlertID == "" {
		return errMissingEntityID
	}
	if !e.Severity.Valid() {
		return errBadSeverity
	}
	return nil
}

// AlertSeverityChanged fires when an analyst or analyzer re-rates an alert.
type AlertSeverityChanged struct {
	Meta
	AlertID  string   `json:"alert_id"`
	CaseID   string   `json:"case_id,omitempty"`
	Previous Severity `json:"previous"`
	Current  Severity `json:"current"`
}

// Type implements Event
func (e AlertSeverityChanged) Type() string { return "alert.severity_changed.v1" }

// Channel implements Event
func (e AlertSeverityChanged) Channel() string { return ChannelAlerts }

// Subject implements Event
func (e AlertSeverityChanged) Subject() string { return SubjectPrefix + ".alerts.severity_changed" }

// Validate implements Event
func (e AlertSeverityChanged) Validate() error {
	if err := e.Meta.validate(); err != nil {
		return err
	}
	if e.AlertID == "" {
		return errMissingEntityID
	}
	if !e.Previous.Valid() || !e.Current.Valid() {
		return errBadSeverity
	}
	return nil
}

// CaseUpdated fires when a case's status or ownership changes, including
// closure.
type CaseUpdated struct {
	Meta
	CaseID string `json:"case_id"`
	Status string `json:"status"`
	Actor  string `json:"actor,omitempty"`
}

// Type implements Event
func (e CaseUpdated) Type() string { return "case.updated.v1" }

// Channel implements Event
func (e CaseUpdated) Channel() string { return ChannelCases }

// Subject implements Event
func (e CaseUpdated) Subject() string { return SubjectPrefix + ".cases.updated" }

// Validate implements Event
func (e CaseUpdated) Validate() error {
	if err := e.Meta.validate(); err != nil {
		return err
	}
	if e.CaseID == "" {
		return errMissingEntityID
	}
	if e.Status == "" {
		return errMissingEntityID
	}
	return nil
}

// AssetRevalued fires when an asset's criticality value is reassessed.
type AssetRevalued struct {
	Meta
	AssetID  string  `json:"asset_id"`
	Previous float64 `json:"previous"`
	Current  float64 `json:"current"`
}

// Type implements Event
func (e AssetRevalued) Type() string { return "asset.revalued.v1" }

// Channel implements Event
func (e AssetRevalued) Channel() string { return ChannelAssets }

// Subject implements Event
func (e AssetRevalued) Subject() string { return SubjectPrefix + ".assets.revalued" }

// Validate implements Event
func (e AssetRevalued) Validate() error {
	if err := e.Meta.validate(); err != nil {
		return err
	}
	if e.AssetID == "" {
		return errMissingEntityID
	}
	return nil
}
