// Package auth is the authorization boundary the gateway consults before
// any read, write, or subscription begins. The check is opaque to the rest
// of the core: components ask "may this principal do this action on this
// resource" and get an error or nil, never policy details.
package auth

import (
	"context"

	"github.com/c360/opscore/errors"
)

// Action is the kind of access being requested.
type Action string

// Actions the gateway authorizes.
const (
	ActionRead      Action = "read"
	ActionWrite     Action = "write"
	ActionSubscribe Action = "subscribe"
)

// Principal identifies the caller.
type Principal struct {
	Subject string
	Roles   []string
}

// Authorizer is the opaque permission gate. Implementations must be safe
// for concurrent use.
type Authorizer interface {
	// Authorize returns nil when principal may perform action on resource,
	// an authorization-classified error otherwise.
	Authorize(ctx context.Context, principal Principal, action Action, resource string) error
}

type ctxKey struct{}

// WithPrincipal attaches the caller identity to a request context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext extracts the caller identity. The second return is false when
// no principal was attached.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// AllowAll permits everything. For tests and local development only.
type AllowAll struct{}

// Authorize implements Authorizer
func (AllowAll) Authorize(context.Context, Principal, Action, string) error {
	return nil
}

// DenyAll rejects everything. The safe default when no policy is wired.
type DenyAll struct{}

// Authorize implements Authorizer
func (DenyAll) Authorize(_ context.Context, _ Principal, action Action, resource string) error {
	return errors.WrapAuthorization(errors.ErrNotAuthorized, "auth", "Authorize",
		string(action)+" on "+resource)
}

// RolePolicy authorizes by role membership: each role maps to the set of
// actions it may perform on any resource.
type RolePolicy struct {
	Grants map[string][]Action
}

// Authorize implements Authorizer
func (p RolePolicy) Authorize(_ context.Context, principal Principal, action Action, resource string) error {
	for _, role := range principal.Roles {
		for _, granted := range p.Grants[role] {
			if granted == action {
				return nil
			}
		}
	}
	return errors.WrapAuthorization(errors.ErrNotAuthorized, "auth", "Authorize",
		string(action)+" on "+resource)
}
