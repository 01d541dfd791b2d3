package graphql

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360/opscore/auth"
	"github.com/c360/opscore/correlation"
	"github.com/c360/opscore/errors"
	"github.com/c360/opscore/event"
	"github.com/c360/opscore/fanout"
	"github.com/c360/opscore/loader"
	"github.com/c360/opscore/metric"
	"github.com/c360/opscore/pkg/retry"
)

// Resolver implements the gateway's operations. One resolver serves the
// whole process; per-request state lives in Scope values it hands out.
type Resolver struct {
	store      EntityStore
	authorizer auth.Authorizer
	broker     *fanout.Broker[event.Event]
	walker     *correlation.Walker
	exporter   *Exporter

	loaderConfig loader.Config
	writeRetry   retry.Config
	logger       *slog.Logger
	core         *metric.CoreMetrics
}

// ResolverOption configures the resolver.
type ResolverOption func(*Resolver)

// WithExporter wires asynchronous NATS event export into the write path.
func WithExporter(e *Exporter) ResolverOption {
	return func(r *Resolver) { r.exporter = e }
}

// WithWalker enables the CorrelatedEntities operation.
func WithWalker(w *correlation.Walker) ResolverOption {
	return func(r *Resolver) { r.walker = w }
}

// WithLoaderConfig overrides the per-scope loader configuration.
func WithLoaderConfig(cfg loader.Config) ResolverOption {
	return func(r *Resolver) { r.loaderConfig = cfg }
}

// WithWriteRetry overrides the write path retry policy.
func WithWriteRetry(cfg retry.Config) ResolverOption {
	return func(r *Resolver) { r.writeRetry = cfg }
}

// WithResolverLogger sets the resolver logger.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

// WithCoreMetrics records operation counts and latencies.
func WithCoreMetrics(core *metric.CoreMetrics) ResolverOption {
	return func(r *Resolver) { r.core = core }
}

// NewResolver creates the gateway resolver. The authorizer is mandatory;
// every operation consults it before doing work.
func NewResolver(store EntityStore, authorizer auth.Authorizer, broker *fanout.Broker[event.Event], opts ...ResolverOption) (*Resolver, error) {
	if store == nil {
		return nil, errors.WrapValidation(errors.ErrInvalidConfig, "gateway", "NewResolver", "nil store check")
	}
	if authorizer == nil {
		return nil, errors.WrapValidation(errors.ErrInvalidConfig, "gateway", "NewResolver", "nil authorizer check")
	}
	if broker == nil {
		return nil, errors.WrapValidation(errors.ErrInvalidConfig, "gateway", "NewResolver", "nil broker check")
	}

	r := &Resolver{
		store:        store,
		authorizer:   authorizer,
		broker:       broker,
		loaderConfig: loader.DefaultConfig(),
		writeRetry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: 25 * time.Millisecond,
			MaxDelay:     500 * time.Millisecond,
			Multiplier:   2.0,
			AddJitter:    true,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// NewScope creates the per-request loader scope. The caller owns it and
// must Close it when the request ends.
func (r *Resolver) NewScope() (*Scope, error) {
	return NewScope(r.store, r.loaderConfig)
}

// authorize consults the gate. Missing principals are denied, never
// defaulted, so an error path can't bypass the check.
func (r *Resolver) authorize(ctx context.Context, action auth.Action, resource string) error {
	principal, _ := auth.FromContext(ctx)
	return r.authorizer.Authorize(ctx, principal, action, resource)
}

// observe records one operation's outcome in the core metrics.
func (r *Resolver) observe(operation string, started time.Time, err error) {
	if r.core == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = errors.Classify(err).String()
	}
	r.core.RequestsTotal.WithLabelValues(operation, status).Inc()
	r.core.RequestDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// AlertByID returns one alert, or nil when it doesn't exist.
func (r *Resolver) AlertByID(ctx context.Context, scope *Scope, id string) (alert *Alert, err error) {
	defer func(started time.Time) { r.observe("alert_by_id", started, err) }(time.Now())

	if err = r.authorize(ctx, auth.ActionRead, "alerts"); err != nil {
		return nil, err
	}

	result, err := scope.Alerts.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !result.Found {
		return nil, nil
	}
	a := result.Value
	return &a, nil
}

// AlertsByIDs returns alerts positionally: result[i] is the alert for
// ids[i], nil when absent. Length always equals len(ids).
func (r *Resolver) AlertsByIDs(ctx context.Context, scope *Scope, ids []string) (alerts []*Alert, err error) {
	defer func(started time.Time) { r.observe("alerts_by_ids", started, err) }(time.Now())

	if err = r.authorize(ctx, auth.ActionRead, "alerts"); err != nil {
		return nil, err
	}

	results := scope.Alerts.LoadMany(ctx, ids)
	alerts = make([]*Alert, len(results))
	for i, res := range results {
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Found {
			a := res.Value
			alerts[i] = &a
		}
	}
	return alerts, nil
}

// AlertsByCase returns a case's alerts, empty when the case has none.
func (r *Resolver) AlertsByCase(ctx context.Context, scope *Scope, caseID string) (alerts []Alert, err error) {
	defer func(started time.Time) { r.observe("alerts_by_case", started, err) }(time.Now())

	if err = r.authorize(ctx, auth.ActionRead, "alerts"); err != nil {
		return nil, err
	}
	return scope.AlertsByCase.Load(ctx, caseID)
}

// CaseByID returns one case, or nil when it doesn't exist.
func (r *Resolver) CaseByID(ctx context.Context, scope *Scope, id string) (c *Case, err error) {
	defer func(started time.Time) { r.observe("case_by_id", started, err) }(time.Now())

	if err = r.authorize(ctx, auth.ActionRead, "cases"); err != nil {
		return nil, err
	}

	result, err := scope.Cases.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !result.Found {
		return nil, nil
	}
	value := result.Value
	return &value, nil
}

// AssetByID returns one asset, or nil when it doesn't exist.
func (r *Resolver) AssetByID(ctx context.Context, scope *Scope, id string) (asset *Asset, err error) {
	defer func(started time.Time) { r.observe("asset_by_id", started, err) }(time.Now())

	if err = r.authorize(ctx, auth.ActionRead, "assets"); err != nil {
		return nil, err
	}

	result, err := scope.Assets.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !result.Found {
		return nil, nil
	}
	value := result.Value
	return &value, nil
}

// UpdateAlertSeverity re-rates an alert. The write commits, the affected
// caches are invalidated, and the event is published to the broker before
// success is returned; NATS export happens asynchronously afterwards.
func (r *Resolver) UpdateAlertSeverity(ctx context.Context, scope *Scope, id string, severity event.Severity) (alert Alert, err error) {
	defer func(started time.Time) { r.observe("update_alert_severity", started, err) }(time.Now())

	if err = r.authorize(ctx, auth.ActionWrite, "alerts"); err != nil {
		return Alert{}, err
	}
	if id == "" {
		return Alert{}, errors.WrapValidation(errors.ErrEmptyKey, "gateway", "UpdateAlertSeverity", "alert id check")
	}
	if !severity.Valid() {
		return Alert{}, errors.WrapValidation(errors.ErrInvalidConfig, "gateway", "UpdateAlertSeverity", "severity check")
	}

	previous, err := scope.Alerts.Load(ctx, id)
	if err != nil {
		return Alert{}, err
	}
	if !previous.Found {
		return Alert{}, errors.WrapValidation(errors.ErrUnknownEntity, "gateway", "UpdateAlertSeverity", "alert "+id)
	}

	alert, err = retry.DoWithResult(ctx, r.writeRetry, func() (Alert, error) {
		updated, writeErr := r.store.UpdateAlertSeverity(ctx, id, severity)
		if writeErr != nil && errors.IsValidation(writeErr) {
			return Alert{}, retry.NonRetryable(writeErr)
		}
		return updated, writeErr
	})
	if err != nil {
		return Alert{}, err
	}

	// Invalidation is synchronous: no read issued after this write returns
	// can observe the stale severity.
	r.invalidate(scope, CacheAlertByID, id)
	if alert.CaseID != "" {
		r.invalidate(scope, CacheAlertsByCase, alert.CaseID)
	}

	r.publish(event.AlertSeverityChanged{
		Meta:     event.NewMeta(),
		AlertID:  alert.ID,
		CaseID:   alert.CaseID,
		Previous: previous.Value.Severity,
		Current:  alert.Severity,
	})

	return alert, nil
}

// CloseCase closes a case and evicts its cached reads.
func (r *Resolver) CloseCase(ctx context.Context, scope *Scope, id string) (c Case, err error) {
	defer func(started time.Time) { r.observe("close_case", started, err) }(time.Now())

	if err = r.authorize(ctx, auth.ActionWrite, "cases"); err != nil {
		return Case{}, err
	}
	if id == "" {
		return Case{}, errors.WrapValidation(errors.ErrEmptyKey, "gateway", "CloseCase", "case id check")
	}

	c, err = retry.DoWithResult(ctx, r.writeRetry, func() (Case, error) {
		updated, writeErr := r.store.CloseCase(ctx, id)
		if writeErr != nil && errors.IsValidation(writeErr) {
			return Case{}, retry.NonRetryable(writeErr)
		}
		return updated, writeErr
	})
	if err != nil {
		return Case{}, err
	}

	r.invalidate(scope, CacheCaseByID, id)
	r.invalidate(scope, CacheAlertsByCase, id)

	principal, _ := auth.FromContext(ctx)
	r.publish(event.CaseUpdated{
		Meta:   event.NewMeta(),
		CaseID: c.ID,
		Status: c.Status,
		Actor:  principal.Subject,
	})

	return c, nil
}

// RevalueAsset reassesses an asset's criticality.
func (r *Resolver) RevalueAsset(ctx context.Context, scope *Scope, id string, criticality float64) (asset Asset, err error) {
	defer func(started time.Time) { r.observe("revalue_asset", started, err) }(time.Now())

	if err = r.authorize(ctx, auth.ActionWrite, "assets"); err != nil {
		return Asset{}, err
	}
	if id == "" {
		return Asset{}, errors.WrapValidation(errors.ErrEmptyKey, "gateway", "RevalueAsset", "asset id check")
	}
	if criticality < 0 || criticality > 1 {
		return Asset{}, errors.WrapValidation(errors.ErrScoreRange, "gateway", "RevalueAsset", "criticality check")
	}

	previous, err := scope.Assets.Load(ctx, id)
	if err != nil {
		return Asset{}, err
	}
	if !previous.Found {
		return Asset{}, errors.WrapValidation(errors.ErrUnknownEntity, "gateway", "RevalueAsset", "asset "+id)
	}

	asset, err = retry.DoWithResult(ctx, r.writeRetry, func() (Asset, error) {
		updated, writeErr := r.store.RevalueAsset(ctx, id, criticality)
		if writeErr != nil && errors.IsValidation(writeErr) {
			return Asset{}, retry.NonRetryable(writeErr)
		}
		return updated, writeErr
	})
	if err != nil {
		return Asset{}, err
	}

	r.invalidate(scope, CacheAssetByID, id)

	r.publish(event.AssetRevalued{
		Meta:     event.NewMeta(),
		AssetID:  asset.ID,
		Previous: previous.Value.Criticality,
		Current:  asset.Criticality,
	})

	return asset, nil
}

// AlertEvents subscribes to the alert channel. Events below minSeverity are
// filtered out; zero-value minSeverity passes everything.
func (r *Resolver) AlertEvents(ctx context.Context, minSeverity event.Severity) (*fanout.Subscription[event.Event], error) {
	if err := r.authorize(ctx, auth.ActionSubscribe, "alerts"); err != nil {
		return nil, err
	}

	var filter fanout.Filter[event.Event]
	if minSeverity != "" {
		threshold := minSeverity.Rank()
		filter = func(e event.Event) bool {
			switch evt := e.(type) {
			case event.AlertCreated:
				return evt.Severity.Rank() >= threshold
			case event.AlertSeverityChanged:
				return evt.Current.Rank() >= threshold
			default:
				return false
			}
		}
	}

	return r.broker.Subscribe(ctx, event.ChannelAlerts, filter)
}

// CaseEvents subscribes to the case channel.
func (r *Resolver) CaseEvents(ctx context.Context) (*fanout.Subscription[event.Event], error) {
	if err := r.authorize(ctx, auth.ActionSubscribe, "cases"); err != nil {
		return nil, err
	}
	return r.broker.Subscribe(ctx, event.ChannelCases, nil)
}

// CorrelatedEntities walks the correlation graph around seed. Partial
// results carry the Incomplete metadata flag instead of failing.
func (r *Resolver) CorrelatedEntities(ctx context.Context, seed string, maxDepth int, minScore float64) (sub *correlation.Subgraph, err error) {
	defer func(started time.Time) { r.observe("correlated_entities", started, err) }(time.Now())

	if err = r.authorize(ctx, auth.ActionRead, "correlation"); err != nil {
		return nil, err
	}
	if r.walker == nil {
		return nil, errors.WrapUpstream(errors.ErrStoreUnavailable, "gateway", "CorrelatedEntities", "walker not configured")
	}
	return r.walker.Walk(ctx, seed, maxDepth, minScore)
}

// invalidate evicts one key from a scope cache. Eviction failures are
// logged, not surfaced: the write itself succeeded.
func (r *Resolver) invalidate(scope *Scope, cache, key string) {
	if err := scope.Bus().Invalidate(cache, key); err != nil {
		r.logger.Error("cache invalidation failed", "cache", cache, "key", key, "error", err)
	}
}

// publish sends a domain event to the in-process broker and queues its
// NATS export. Both are fire-and-forget from the mutation's perspective.
func (r *Resolver) publish(evt event.Event) {
	if err := evt.Validate(); err != nil {
		r.logger.Error("refusing to publish invalid event", "type", evt.Type(), "error", err)
		return
	}

	r.broker.Publish(evt.Channel(), evt)

	if r.exporter != nil {
		r.exporter.Submit(evt)
	}
}
