package graphql

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/c360/opscore/errors"
	"github.com/c360/opscore/invalidation"
	"github.com/c360/opscore/loader"
)

// Cache names registered on each scope's invalidation bus. Write handlers
// name these when evicting after a mutation.
const (
	CacheAlertByID    = "alert-by-id"
	CacheAlertsByCase = "alerts-by-case"
	CacheCaseByID     = "case-by-id"
	CacheAssetByID    = "asset-by-id"
)

// Scope owns one request's loaders and their invalidation registrations.
// A scope is created when a request begins and closed when it ends; loader
// caches never outlive it and are never shared across requests.
type Scope struct {
	// ID identifies the scope in logs.
	ID string

	Alerts       *loader.Loader[string, Alert]
	AlertsByCase *loader.GroupLoader[string, Alert]
	Cases        *loader.Loader[string, Case]
	Assets       *loader.Loader[string, Asset]

	bus    *invalidation.Bus
	closed atomic.Bool
}

// NewScope builds the request's loaders over store and registers each on a
// fresh scope-local invalidation bus.
func NewScope(store EntityStore, config loader.Config) (*Scope, error) {
	if store == nil {
		return nil, errors.WrapValidation(errors.ErrInvalidConfig, "gateway", "NewScope", "nil store check")
	}

	alerts, err := loader.New(store.AlertsByIDs, config)
	if err != nil {
		return nil, err
	}
	alertsByCase, err := loader.NewGroup(store.AlertsByCaseIDs, config)
	if err != nil {
		return nil, err
	}
	cases, err := loader.New(store.CasesByIDs, config)
	if err != nil {
		return nil, err
	}
	assets, err := loader.New(store.AssetsByIDs, config)
	if err != nil {
		return nil, err
	}

	bus, err := invalidation.New()
	if err != nil {
		return nil, err
	}

	scope := &Scope{
		ID:           uuid.NewString(),
		Alerts:       alerts,
		AlertsByCase: alertsByCase,
		Cases:        cases,
		Assets:       assets,
		bus:          bus,
	}

	registrations := map[string]invalidation.Handle{
		CacheAlertByID:    loader.StringHandle(alerts),
		CacheAlertsByCase: loader.StringHandle(alertsByCase),
		CacheCaseByID:     loader.StringHandle(cases),
		CacheAssetByID:    loader.StringHandle(assets),
	}
	for name, handle := range registrations {
		if err := bus.Register(name, handle); err != nil {
			return nil, err
		}
	}

	return scope, nil
}

// Bus returns the scope's invalidation bus.
func (s *Scope) Bus() *invalidation.Bus {
	return s.bus
}

// Close releases every loader cache. Safe to call multiple times.
func (s *Scope) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	_ = s.Alerts.Close()
	_ = s.AlertsByCase.Close()
	_ = s.Cases.Close()
	_ = s.Assets.Close()
	return nil
}

// Closed reports whether the scope has been torn down.
func (s *Scope) Closed() bool {
	return s.closed.Load()
}
