package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/opscore/errors"
)

func TestAllowAllAndDenyAll(t *testing.T) {
	p := Principal{Subject: "analyst@example.com"}

	assert.NoError(t, AllowAll{}.Authorize(context.Background(), p, ActionWrite, "alert-1"))

	err := DenyAll{}.Authorize(context.Background(), p, ActionRead, "alert-1")
	require.Error(t, err)
	assert.True(t, errors.IsAuthorization(err))
}

func TestRolePolicy(t *testing.T) {
	policy := RolePolicy{
		Grants: map[string][]Action{
			"analyst":  {ActionRead, ActionSubscribe},
			"responder": {ActionRead, ActionWrite},
		},
	}

	analyst := Principal{Subject: "a", Roles: []string{"analyst"}}
	responder := Principal{Subject: "r", Roles: []string{"responder"}}
	nobody := Principal{Subject: "n"}

	assert.NoError(t, policy.Authorize(context.Background(), analyst, ActionRead, "alert-1"))
	assert.Error(t, policy.Authorize(context.Background(), analyst, ActionWrite, "alert-1"))
	assert.NoError(t, policy.Authorize(context.Background(), responder, ActionWrite, "alert-1"))

	err := policy.Authorize(context.Background(), nobody, ActionRead, "alert-1")
	require.Error(t, err)
	assert.True(t, errors.IsAuthorization(err))
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{Subject: "analyst@example.com"})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "analyst@example.com", p.Subject)
}
