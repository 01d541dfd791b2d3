package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityRankOrdering(t *testing.T) {
	assert.Less(t, SeverityLow.Rank(), SeverityMedium.Rank())
	assert.Less(t, SeverityMedium.Rank(), SeverityHigh.Rank())
	assert.Less(t, SeverityHigh.Rank(), SeverityCritical.Rank())
	assert.Equal(t, 0, Severity("BOGUS").Rank())
	assert.False(t, Severity("").Valid())
}

func TestEventTypesAndChannels(t *testing.T) {
	tests := []struct {
		event   Event
		typ     string
		channel string
		subject string
	}{
		{AlertCreated{}, "alert.created.v1", ChannelAlerts, "opscore.events.alerts.created"},
		{AlertSeverityChanged{}, "alert.severity_changed.v1", ChannelAlerts, "opscore.events.alerts.severity_changed"},
		{CaseUpdated{}, "case.updated.v1", ChannelCases, "opscore.events.cases.updated"},
		{AssetRevalued{}, "asset.revalued.v1", ChannelAssets, "opscore.events.assets.revalued"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.typ, tt.event.Type())
		assert.Equal(t, tt.channel, tt.event.Channel())
		assert.Equal(t, tt.subject, tt.event.Subject())
	}
}

func TestValidateRequiredFields(t *testing.T) {
	valid := AlertSeverityChanged{
		Meta:     NewMeta(),
		AlertID:  "alert-1",
		Previous: SeverityLow,
		Current:  SeverityCritical,
	}
	require.NoError(t, valid.Validate())

	missing := valid
	missing.AlertID = ""
	assert.Error(t, missing.Validate())

	badSeverity := valid
	badSeverity.Current = "WHATEVER"
	assert.Error(t, badSeverity.Validate())

	noMeta := valid
	noMeta.Meta = Meta{}
	assert.Error(t, noMeta.Validate())
}

func TestNewMetaStampsIdentity(t *testing.T) {
	a := NewMeta()
	b := NewMeta()
	assert.NotEmpty(t, a.EventID)
	assert.NotEqual(t, a.EventID, b.EventID)
	assert.False(t, a.OccurredAt.IsZero())
}

func TestEventJSONShape(t *testing.T) {
	e := AssetRevalued{
		Meta:     Meta{EventID: "evt-1"},
		AssetID:  "asset-9",
		Previous: 0.3,
		Current:  0.8,
	}

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event_id":"evt-1"`)
	assert.Contains(t, string(data), `"asset_id":"asset-9"`)
}
