package graph

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/opscore/errors"
	"github.com/c360/opscore/metric"
	"github.com/c360/opscore/natsclient"
	"github.com/c360/opscore/pkg/cache"
)

// KVConfig configures the JetStream-backed store.
type KVConfig struct {
	// Bucket is the KV bucket holding node records.
	Bucket string `json:"bucket"`

	// TTL is the bucket-level entry TTL. Zero disables expiry.
	TTL time.Duration `json:"ttl"`

	// History is how many revisions the bucket retains per key.
	History uint8 `json:"history"`

	// Replicas is the bucket replication factor.
	Replicas int `json:"replicas"`

	// CacheTTL is the in-process node cache lifetime. The cache absorbs
	// repeated reads of hot nodes between walks; per-request dedup is the
	// loader's job, not the store's.
	CacheTTL time.Duration `json:"cache_ttl"`
}

// DefaultKVConfig returns a sensible default configuration
func DefaultKVConfig() KVConfig {
	return KVConfig{
		Bucket:   "GRAPH_NODES",
		TTL:      24 * time.Hour,
		History:  3,
		Replicas: 1,
		CacheTTL: 5 * time.Minute,
	}
}

// KVStore reads the correlation graph from a JetStream KV bucket. Each key
// is a node id; each value is the node record with its outgoing edges.
type KVStore struct {
	client *natsclient.Client
	config KVConfig
	logger *slog.Logger

	nodeCache cache.Cache[string, *nodeRecord]

	initMu      sync.Mutex
	initialized bool
	bucket      jetstream.KeyValue
}

// KVOption configures the KV store.
type KVOption func(*kvOptions)

type kvOptions struct {
	metricsReg metric.Registrar
	logger     *slog.Logger
}

// WithKVMetrics enables Prometheus export for the node cache.
func WithKVMetrics(registry metric.Registrar) KVOption {
	return func(o *kvOptions) { o.metricsReg = registry }
}

// WithKVLogger sets the store logger.
func WithKVLogger(logger *slog.Logger) KVOption {
	return func(o *kvOptions) { o.logger = logger }
}

// NewKVStore creates a JetStream-backed graph store. The bucket is created
// lazily on first read so construction does not require a live connection.
func NewKVStore(client *natsclient.Client, config KVConfig, opts ...KVOption) (*KVStore, error) {
	if client == nil {
		return nil, errors.WrapValidation(errors.ErrInvalidConfig, "graph", "NewKVStore", "nil client check")
	}
	if config.Bucket == "" {
		config.Bucket = DefaultKVConfig().Bucket
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultKVConfig().CacheTTL
	}

	options := &kvOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	var cacheOpts []cache.Option[string, *nodeRecord]
	if options.metricsReg != nil {
		cacheOpts = append(cacheOpts, cache.WithMetrics[string, *nodeRecord](options.metricsReg, "graph_nodes"))
	}

	nodeCache, err := cache.NewTTL[string, *nodeRecord](config.CacheTTL, cacheOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "graph", "NewKVStore", "node cache creation")
	}

	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &KVStore{
		client:    client,
		config:    config,
		logger:    logger,
		nodeCache: nodeCache,
	}, nil
}

// ensureBucket initializes the KV bucket on first use.
func (s *KVStore) ensureBucket(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.initialized {
		return nil
	}

	bucket, err := s.client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:   s.config.Bucket,
		TTL:      s.config.TTL,
		History:  s.config.History,
		Replicas: s.config.Replicas,
	})
	if err != nil {
		return errors.Wrap(err, "graph", "ensureBucket", "bucket initialization")
	}

	s.bucket = bucket
	s.initialized = true
	return nil
}

// record fetches one node record, consulting the in-process cache first.
// Absent nodes return nil, nil.
func (s *KVStore) record(ctx context.Context, id string) (*nodeRecord, error) {
	if cached, ok := s.nodeCache.Get(id); ok {
		return cached, nil
	}

	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}

	entry, err := s.bucket.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, errors.WrapUpstream(err, "graph", "record", "kv get "+id)
	}

	var rec nodeRecord
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return nil, errors.WrapUpstream(err, "graph", "record", "unmarshal node "+id)
	}

	if _, err := s.nodeCache.Set(id, &rec); err != nil {
		s.logger.Debug("node cache set failed", "id", id, "error", err)
	}

	return &rec, nil
}

// NodeDetails implements Store
func (s *KVStore) NodeDetails(ctx context.Context, id string) (*Node, error) {
	rec, err := s.record(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	node := rec.Node
	return &node, nil
}

// Neighbors implements Store
func (s *KVStore) Neighbors(ctx context.Context, id string) ([]Edge, error) {
	rec, err := s.record(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return []Edge{}, nil
	}

	edges := make([]Edge, len(rec.Edges))
	copy(edges, rec.Edges)
	for i := range edges {
		if edges[i].From == "" {
			edges[i].From = id
		}
	}
	return edges, nil
}

// NodesByIDs implements Store
func (s *KVStore) NodesByIDs(ctx context.Context, ids []string) (map[string]Node, error) {
	result := make(map[string]Node, len(ids))
	for _, id := range ids {
		rec, err := s.record(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			result[id] = rec.Node
		}
	}
	return result, nil
}

// NeighborsByIDs implements Store
func (s *KVStore) NeighborsByIDs(ctx context.Context, ids []string) (map[string][]Edge, error) {
	result := make(map[string][]Edge, len(ids))
	for _, id := range ids {
		edges, err := s.Neighbors(ctx, id)
		if err != nil {
			return nil, err
		}
		result[id] = edges
	}
	return result, nil
}

// PutNode writes a node record with its outgoing edges. Used by ingest
// tooling and tests; the walker itself never writes.
func (s *KVStore) PutNode(ctx context.Context, node Node, edges []Edge) error {
	if node.ID == "" {
		return errors.WrapValidation(errors.ErrEmptyKey, "graph", "PutNode", "node id check")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(nodeRecord{Node: node, Edges: edges})
	if err != nil {
		return errors.Wrap(err, "graph", "PutNode", "marshal node "+node.ID)
	}

	if _, err := s.bucket.Put(ctx, node.ID, data); err != nil {
		return errors.WrapUpstream(err, "graph", "PutNode", "kv put "+node.ID)
	}

	_, _ = s.nodeCache.Delete(node.ID)
	return nil
}

// Close releases the node cache.
func (s *KVStore) Close() error {
	return s.nodeCache.Close()
}
