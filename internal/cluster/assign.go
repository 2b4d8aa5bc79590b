package cluster

import (
	"context"
	"log"
	"math"
	"strings"
)

// Assigner embeds semantic groups and theme candidates and routes each
// group to its most similar theme, falling back to the generic bucket when
// nothing clears the similarity threshold.
type Assigner struct {
	embedder       Embedder
	threshold      float64
	embedTextLimit int
	logger         *log.Logger
}

// NewAssigner builds an assigner over the given embedding port.
func NewAssigner(embedder Embedder, threshold float64, embedTextLimit int, logger *log.Logger) *Assigner {
	if embedTextLimit <= 0 {
		embedTextLimit = 1200
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[ASSIGN] ", log.LstdFlags)
	}
	return &Assigner{
		embedder:       embedder,
		threshold:      threshold,
		embedTextLimit: embedTextLimit,
		logger:         logger,
	}
}

// EmbedGroups populates each group's embedding in place. Groups yielding no
// embeddable text, and groups whose embedding the port failed to produce,
// keep a nil embedding. A port error degrades to no embeddings at all.
func (a *Assigner) EmbedGroups(ctx context.Context, groups []SemanticGroup) []SemanticGroup {
	texts := make([]string, 0, len(groups))
	indices := make([]int, 0, len(groups))
	for i, g := range groups {
		text := a.groupEmbedText(g)
		if text == "" {
			continue
		}
		texts = append(texts, text)
		indices = append(indices, i)
	}
	if len(texts) == 0 {
		return groups
	}

	vectors, err := a.embedder.Embed(ctx, texts)
	if err != nil {
		a.logger.Printf("group embedding failed, groups will route to generic bucket: %v", err)
		return groups
	}
	for pos, idx := range indices {
		if pos < len(vectors) && len(vectors[pos]) > 0 {
			groups[idx].Embedding = vectors[pos]
		}
	}
	return groups
}

// EmbedThemes populates each candidate's embedding in place using the
// "{theme} - {summary}" rendering. Failed entries keep a nil embedding and
// are skipped during assignment.
func (a *Assigner) EmbedThemes(ctx context.Context, candidates []ThemeCandidate) []ThemeCandidate {
	if len(candidates) == 0 {
		return candidates
	}
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = truncate(ThemeEmbedText(c.Theme, c.Summary), a.embedTextLimit)
	}

	vectors, err := a.embedder.Embed(ctx, texts)
	if err != nil {
		a.logger.Printf("theme embedding failed, groups will route to generic bucket: %v", err)
		return candidates
	}
	for i := range candidates {
		if i < len(vectors) && len(vectors[i]) > 0 {
			candidates[i].Embedding = vectors[i]
		}
	}
	return candidates
}

// AssignGroups maps every group to exactly one theme id (including the
// generic bucket id). The mapping is total over the input groups.
// Candidate iteration is discovery order, so similarity ties keep the
// first-seen maximum.
func (a *Assigner) AssignGroups(groups []SemanticGroup, candidates []ThemeCandidate) map[string][]SemanticGroup {
	assignment := make(map[string][]SemanticGroup, len(candidates)+1)
	for _, c := range candidates {
		assignment[c.ClusterID] = nil
	}
	assignment[GenericClusterID] = nil

	embedded := make([]ThemeCandidate, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Embedding) > 0 {
			embedded = append(embedded, c)
		}
	}

	for _, group := range groups {
		if len(group.Embedding) == 0 {
			assignment[GenericClusterID] = append(assignment[GenericClusterID], group)
			continue
		}
		bestID := GenericClusterID
		bestSim := -1.0
		for _, c := range embedded {
			if sim := CosineSimilarity(group.Embedding, c.Embedding); sim > bestSim {
				bestSim = sim
				bestID = c.ClusterID
			}
		}
		if bestSim >= a.threshold {
			assignment[bestID] = append(assignment[bestID], group)
		} else {
			assignment[GenericClusterID] = append(assignment[GenericClusterID], group)
		}
	}
	return assignment
}

// groupEmbedText renders a group as natural language for embedding: title,
// hostname, plus the group's unique non-trivial pathnames and search
// queries, bounded to the configured length.
func (a *Assigner) groupEmbedText(g SemanticGroup) string {
	parts := make([]string, 0, 2+len(g.Items))
	if g.Title != "" {
		parts = append(parts, g.Title)
	}
	if g.Hostname != "" {
		parts = append(parts, g.Hostname)
	}

	seen := make(map[string]struct{}, len(g.Items))
	for _, item := range g.Items {
		for _, extra := range []string{item.URLPathnameClean, item.URLSearchQuery} {
			extra = strings.TrimSpace(extra)
			if extra == "" || extra == "/" {
				continue
			}
			if _, dup := seen[extra]; dup {
				continue
			}
			seen[extra] = struct{}{}
			parts = append(parts, extra)
		}
	}
	return truncate(strings.Join(parts, " "), a.embedTextLimit)
}

// ThemeEmbedText renders a theme candidate for embedding.
func ThemeEmbedText(theme, summary string) string {
	return strings.TrimSpace(theme + " - " + summary)
}

// CosineSimilarity returns the cosine of the angle between two vectors.
// Mismatched lengths compare over the shorter prefix; a zero-norm vector
// yields 0.0.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	for i := n; i < len(a); i++ {
		normA += float64(a[i]) * float64(a[i])
	}
	for i := n; i < len(b); i++ {
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func truncate(s string, limit int) string {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
