// Package correlation implements the bounded breadth-first walker that
// expands a scored subgraph around a seed entity. Analysts use it to answer
// "what is this alert connected to, and how strongly" without pulling the
// whole graph.
//
// The walker is read-only against the graph store. Node detail fetches are
// funneled through a batch loader per walk, so one level of the frontier
// costs one store round trip regardless of fan-out.
package correlation

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360/opscore/errors"
	"github.com/c360/opscore/graph"
	"github.com/c360/opscore/loader"
)

// ScorePolicy decides what happens to edges whose score is absent.
// Analyzers occasionally emit unscored edges; silently assigning them an
// arbitrary strength would corrupt minScore filtering, so the choice is
// explicit.
type ScorePolicy int

const (
	// ScoreRejectMissing discards unscored edges. The default.
	ScoreRejectMissing ScorePolicy = iota

	// ScoreAssumeDefault treats unscored edges as having DefaultScore.
	ScoreAssumeDefault
)

// Config controls walker behavior.
type Config struct {
	// Policy decides handling of unscored edges.
	Policy ScorePolicy `json:"policy"`

	// DefaultScore is the score assumed under ScoreAssumeDefault. Must be
	// within [0,1].
	DefaultScore float64 `json:"default_score"`

	// FetchTimeout bounds each store level fetch.
	FetchTimeout time.Duration `json:"fetch_timeout"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		Policy:       ScoreRejectMissing,
		DefaultScore: 0.5,
		FetchTimeout: 10 * time.Second,
	}
}

// NodeResult is one node in the returned subgraph with its traversal
// metadata. Depth is the hop count of the shortest path from the seed;
// Score is the strongest surviving edge that reached the node at that
// depth (ties broken by smaller depth, then higher score, then store
// insertion order). The seed itself has Depth 0 and Score 1.
type NodeResult struct {
	Node  graph.Node `json:"node"`
	Depth int        `json:"depth"`
	Score float64    `json:"score"`
}

// Metadata describes how a walk went.
type Metadata struct {
	Seed           string        `json:"seed"`
	SeedFound      bool          `json:"seed_found"`
	MaxDepth       int           `json:"max_depth"`
	MinScore       float64       `json:"min_score"`
	DepthReached   int           `json:"depth_reached"`
	NodesVisited   int           `json:"nodes_visited"`
	EdgesEvaluated int           `json:"edges_evaluated"`
	EdgesDiscarded int           `json:"edges_discarded"`
	Incomplete     bool          `json:"incomplete"`
	Reason         string        `json:"reason,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Subgraph is the result of a walk. Nodes are in discovery order, edges in
// evaluation order; both are deterministic for an unchanged store snapshot.
type Subgraph struct {
	Nodes    []NodeResult `json:"nodes"`
	Edges    []graph.Edge `json:"edges"`
	Metadata Metadata     `json:"metadata"`
}

// Walker performs bounded breadth-first walks over a graph store.
type Walker struct {
	store   graph.Store
	config  Config
	logger  *slog.Logger
	metrics *walkerMetrics
}

// New creates a walker over store.
func New(store graph.Store, config Config, opts ...Option) (*Walker, error) {
	if store == nil {
		return nil, errors.WrapValidation(errors.ErrInvalidConfig, "correlation", "New", "nil store check")
	}
	if config.Policy == ScoreAssumeDefault && (config.DefaultScore < 0 || config.DefaultScore > 1) {
		return nil, errors.WrapValidation(errors.ErrScoreRange, "correlation", "New", "default score check")
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultConfig().FetchTimeout
	}

	options := applyOptions(opts...)

	var metrics *walkerMetrics
	if options.metricsReg != nil {
		var err error
		metrics, err = newWalkerMetrics(options.metricsReg)
		if err != nil {
			return nil, errors.Wrap(err, "correlation", "New", "metrics registration")
		}
	}

	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Walker{
		store:   store,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// visit tracks how a node was first reached.
type visit struct {
	depth int
	score float64
	order int
}

// Walk expands the subgraph around seedID to at most maxDepth hops,
// keeping only edges with score >= minScore. A store failure mid-walk
// returns the partial subgraph accumulated so far with Incomplete set,
// never discarding progress. Only invalid input returns an error.
func (w *Walker) Walk(ctx context.Context, seedID string, maxDepth int, minScore float64) (*Subgraph, error) {
	// All validation happens before any store I/O.
	if seedID == "" {
		return nil, errors.WrapValidation(errors.ErrEmptySeed, "correlation", "Walk", "seed check")
	}
	if maxDepth < 0 {
		return nil, errors.WrapValidation(errors.ErrNegativeDepth, "correlation", "Walk", "depth check")
	}
	if minScore < 0 || minScore > 1 {
		return nil, errors.WrapValidation(errors.ErrScoreRange, "correlation", "Walk", "score check")
	}

	started := time.Now()

	result := &Subgraph{
		Nodes: []NodeResult{},
		Edges: []graph.Edge{},
		Metadata: Metadata{
			Seed:     seedID,
			MaxDepth: maxDepth,
			MinScore: minScore,
		},
	}

	nodeLoader, err := loader.New(
		loader.BatchFunc[string, graph.Node](w.store.NodesByIDs),
		loader.Config{Timeout: w.config.FetchTimeout},
	)
	if err != nil {
		return nil, err
	}
	defer nodeLoader.Close()

	seed, err := nodeLoader.Load(ctx, seedID)
	if err != nil {
		return w.finish(result, started, err)
	}
	if !seed.Found {
		// Absent seed is not an error; the subgraph is just empty.
		return w.finish(result, started, nil)
	}

	visited := map[string]*visit{
		seedID: {depth: 0, score: 1, order: 0},
	}
	details := map[string]graph.Node{seedID: seed.Value}
	discovery := []string{seedID}
	frontier := []string{seedID}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		neighborSets, err := w.fetchNeighbors(ctx, frontier)
		if err != nil {
			w.assemble(result, discovery, visited, details)
			return w.finish(result, started, err)
		}

		var next []string
		for _, from := range frontier {
			for _, edge := range neighborSets[from] {
				result.Metadata.EdgesEvaluated++

				score, ok := w.effectiveScore(edge)
				if !ok || score < minScore {
					result.Metadata.EdgesDiscarded++
					continue
				}

				// Surviving edges are always recorded, even when the target
				// was already visited, so cross edges appear in the result.
				result.Edges = append(result.Edges, edge)

				prior, seen := visited[edge.To]
				if !seen {
					visited[edge.To] = &visit{depth: depth, score: score, order: len(discovery)}
					discovery = append(discovery, edge.To)
					next = append(next, edge.To)
					continue
				}

				// Same-depth re-discovery keeps the stronger score; the
				// first encounter wins ties via insertion order.
				if prior.depth == depth && score > prior.score {
					prior.score = score
				}
			}
		}

		if len(next) > 0 {
			result.Metadata.DepthReached = depth
			if err := w.hydrate(ctx, nodeLoader, next, details); err != nil {
				// Record the already-discovered frontier without details
				// before reporting the partial result.
				w.assemble(result, discovery, visited, details)
				return w.finish(result, started, err)
			}
		}

		frontier = next
	}

	w.assemble(result, discovery, visited, details)
	return w.finish(result, started, nil)
}

// fetchNeighbors pulls one frontier level's outgoing edges in a single
// batched store call.
func (w *Walker) fetchNeighbors(ctx context.Context, frontier []string) (map[string][]graph.Edge, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, w.config.FetchTimeout)
	defer cancel()

	sets, err := w.store.NeighborsByIDs(fetchCtx, frontier)
	if err != nil {
		if errors.IsTimeout(err) {
			return nil, errors.WrapTimeout(err, "correlation", "fetchNeighbors", "frontier fetch")
		}
		return nil, errors.WrapUpstream(err, "correlation", "fetchNeighbors", "frontier fetch")
	}
	return sets, nil
}

// hydrate resolves node details for newly discovered ids through the
// per-walk loader.
func (w *Walker) hydrate(ctx context.Context, nodeLoader *loader.Loader[string, graph.Node], ids []string, details map[string]graph.Node) error {
	results := nodeLoader.LoadMany(ctx, ids)
	for i, res := range results {
		if res.Err != nil {
			return res.Err
		}
		if res.Found {
			details[ids[i]] = res.Value
		}
	}
	return nil
}

// effectiveScore applies the missing-score policy. The second return is
// false when the edge must be discarded.
func (w *Walker) effectiveScore(edge graph.Edge) (float64, bool) {
	if edge.HasScore {
		return edge.Score, true
	}
	if w.config.Policy == ScoreAssumeDefault {
		return w.config.DefaultScore, true
	}
	return 0, false
}

// assemble produces the node list in discovery order.
func (w *Walker) assemble(result *Subgraph, discovery []string, visited map[string]*visit, details map[string]graph.Node) {
	for _, id := range discovery {
		v := visited[id]
		node, ok := details[id]
		if !ok {
			// Referenced by an edge but absent from the store; keep the id
			// so the subgraph stays structurally consistent.
			node = graph.Node{ID: id}
		}
		result.Nodes = append(result.Nodes, NodeResult{Node: node, Depth: v.depth, Score: v.score})
	}
	result.Metadata.SeedFound = true
	result.Metadata.NodesVisited = len(discovery)
}

// finish stamps metadata, records metrics, and folds a mid-walk store
// failure into the incomplete flag.
func (w *Walker) finish(result *Subgraph, started time.Time, walkErr error) (*Subgraph, error) {
	result.Metadata.Duration = time.Since(started)

	if walkErr != nil {
		result.Metadata.Incomplete = true
		result.Metadata.Reason = errors.UserMessage(walkErr)
		w.logger.Warn("walk incomplete",
			"seed", result.Metadata.Seed,
			"depth_reached", result.Metadata.DepthReached,
			"error", walkErr)
	}

	if w.metrics != nil {
		w.metrics.recordWalk(result.Metadata, result.Metadata.Duration)
	}

	return result, nil
}
