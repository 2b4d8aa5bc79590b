package cluster

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/recollect-labs/recollect/internal/telemetry"
)

// Options tunes the clustering pipeline.
type Options struct {
	// SimilarityThreshold is the minimum cosine similarity for a group to
	// join a proposed theme instead of the generic bucket.
	SimilarityThreshold float64
	// EmbedTextLimit bounds the length of texts sent to the embedding port.
	EmbedTextLimit int
}

// Orchestrator sequences the clustering pipeline: compression, theme
// discovery, embedding, similarity assignment, decompression, response
// assembly and persistence. One instance serves all requests; all state
// lives in the result store.
type Orchestrator struct {
	discoverer ThemeDiscoverer
	embedder   Embedder
	store      ResultStore
	assigner   *Assigner
	logger     *log.Logger
}

// NewOrchestrator wires the pipeline from its capability ports.
func NewOrchestrator(discoverer ThemeDiscoverer, embedder Embedder, store ResultStore, opts Options, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	return &Orchestrator{
		discoverer: discoverer,
		embedder:   embedder,
		store:      store,
		assigner:   NewAssigner(embedder, opts.SimilarityThreshold, opts.EmbedTextLimit, logger),
		logger:     logger,
	}
}

// Cluster turns a raw session into thematic clusters. With force unset a
// previously stored result for the same canonical identity is returned
// untouched without any provider calls. With force set the pipeline always
// recomputes and the stored record is replaced wholesale.
//
// Provider degradation never fails the call: missing embeddings and failed
// theme discovery route groups to the generic bucket, and a persistence
// failure still returns the computed result.
func (o *Orchestrator) Cluster(ctx context.Context, session HistorySession, userID string, force bool) (*ClusteringResult, error) {
	canonicalID := CanonicalSessionID(userID, session.SessionIdentifier)
	runID := uuid.NewString()
	started := time.Now()

	if !force {
		cached, found, err := o.store.GetClusteringResult(ctx, canonicalID)
		if err != nil {
			o.logger.Printf("run %s: cache lookup for %s failed, recomputing: %v", runID, canonicalID, err)
		} else if found {
			telemetry.ClusteringRuns.WithLabelValues("cache_hit").Inc()
			return cached, nil
		}
	}

	groups := CompressSession(session)

	// Discovery gets its own copy of the group headers: the embedding leg
	// writes into the shared elements while discovery reads them.
	discoveryGroups := make([]SemanticGroup, len(groups))
	copy(discoveryGroups, groups)

	var candidates []ThemeCandidate
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		o.assigner.EmbedGroups(egCtx, groups)
		return nil
	})
	eg.Go(func() error {
		candidates = o.discoverer.DiscoverThemes(egCtx, discoveryGroups)
		candidates = o.assigner.EmbedThemes(egCtx, candidates)
		return nil
	})
	// Both legs degrade internally instead of returning errors; the wait is
	// the synchronization barrier before assignment.
	_ = eg.Wait()

	assignment := o.assigner.AssignGroups(groups, candidates)
	itemsByTheme := Decompress(assignment)

	result := &ClusteringResult{
		SessionIdentifier: canonicalID,
		SessionStartTime:  session.StartTime,
		SessionEndTime:    session.EndTime,
		Clusters:          o.buildClusters(ctx, candidates, itemsByTheme),
	}

	if _, err := o.store.SaveClusteringResult(ctx, userID, result, force); err != nil {
		// Durability is traded for request-path resilience.
		telemetry.PersistFailures.Inc()
		o.logger.Printf("run %s: persisting %s failed, returning unpersisted result: %v", runID, canonicalID, err)
	}

	telemetry.ClusteringRuns.WithLabelValues("computed").Inc()
	telemetry.PipelineDuration.Observe(time.Since(started).Seconds())
	o.logger.Printf("run %s: clustered %s into %d clusters from %d items (%d groups)",
		runID, canonicalID, len(result.Clusters), len(session.Items), len(groups))
	return result, nil
}

// buildClusters emits one ClusterResult per theme that received items, in
// discovery order, then the generic bucket when it is non-empty. The
// generic bucket's embedding is computed lazily only in that case.
func (o *Orchestrator) buildClusters(ctx context.Context, candidates []ThemeCandidate, itemsByTheme map[string][]ClusterItem) []ClusterResult {
	clusters := make([]ClusterResult, 0, len(candidates)+1)
	for _, c := range candidates {
		items := itemsByTheme[c.ClusterID]
		if len(items) == 0 {
			continue
		}
		clusters = append(clusters, ClusterResult{
			ClusterID: c.ClusterID,
			Theme:     c.Theme,
			Summary:   c.Summary,
			Items:     items,
			Embedding: c.Embedding,
		})
	}

	if generic := itemsByTheme[GenericClusterID]; len(generic) > 0 {
		clusters = append(clusters, ClusterResult{
			ClusterID: GenericClusterID,
			Theme:     GenericClusterTheme,
			Summary:   GenericClusterSummary,
			Items:     generic,
			Embedding: o.genericEmbedding(ctx),
		})
	}
	return clusters
}

func (o *Orchestrator) genericEmbedding(ctx context.Context) []float32 {
	vectors, err := o.embedder.Embed(ctx, []string{ThemeEmbedText(GenericClusterTheme, GenericClusterSummary)})
	if err != nil || len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil
	}
	return vectors[0]
}
