package cluster

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
)

type stubEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   int
	inputs  [][]string
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.calls++
	s.inputs = append(s.inputs, texts)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = s.vectors[text]
	}
	return out, nil
}

func TestCosineSimilarityProperties(t *testing.T) {
	t.Parallel()
	a := []float32{1, 2, 3}
	b := []float32{-2, 0.5, 4}

	if got, want := CosineSimilarity(a, b), CosineSimilarity(b, a); math.Abs(got-want) > 1e-12 {
		t.Fatalf("similarity not symmetric: %v vs %v", got, want)
	}
	if got := CosineSimilarity(a, a); math.Abs(got-1.0) > 1e-12 {
		t.Fatalf("self similarity should be 1.0, got %v", got)
	}
	if got := CosineSimilarity(a, []float32{0, 0, 0}); got != 0.0 {
		t.Fatalf("zero vector similarity should be 0.0, got %v", got)
	}
	if got := CosineSimilarity(nil, a); got != 0.0 {
		t.Fatalf("empty vector similarity should be 0.0, got %v", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0.0 {
		t.Fatalf("orthogonal similarity should be 0.0, got %v", got)
	}
}

func TestAssignGroupsThresholdBoundary(t *testing.T) {
	t.Parallel()
	group := SemanticGroup{GroupKey: "g", Embedding: []float32{1, 0}}
	theme := ThemeCandidate{ClusterID: "cluster_a", Embedding: []float32{1, 1}}
	sim := CosineSimilarity(group.Embedding, theme.Embedding)

	at := NewAssigner(nil, sim, 0, nil)
	assignment := at.AssignGroups([]SemanticGroup{group}, []ThemeCandidate{theme})
	if len(assignment["cluster_a"]) != 1 {
		t.Fatalf("similarity equal to threshold must assign to the theme: %+v", assignment)
	}

	above := NewAssigner(nil, sim+1e-9, 0, nil)
	assignment = above.AssignGroups([]SemanticGroup{group}, []ThemeCandidate{theme})
	if len(assignment[GenericClusterID]) != 1 {
		t.Fatalf("similarity below threshold must fall back to generic: %+v", assignment)
	}
}

func TestAssignGroupsPicksBestTheme(t *testing.T) {
	t.Parallel()
	group := SemanticGroup{GroupKey: "g", Embedding: []float32{1, 0, 0}}
	themes := []ThemeCandidate{
		// cos = 0.5
		{ClusterID: "cluster_weak", Embedding: []float32{1, float32(math.Sqrt(3)), 0}},
		// cos ≈ 0.9
		{ClusterID: "cluster_strong", Embedding: []float32{0.9, float32(math.Sqrt(1 - 0.81)), 0}},
	}

	a := NewAssigner(nil, 0.82, 0, nil)
	assignment := a.AssignGroups([]SemanticGroup{group}, themes)
	if len(assignment["cluster_strong"]) != 1 {
		t.Fatalf("expected the 0.9 theme to win over 0.5 at threshold 0.82: %+v", assignment)
	}
}

func TestAssignGroupsTieKeepsFirstSeen(t *testing.T) {
	t.Parallel()
	group := SemanticGroup{GroupKey: "g", Embedding: []float32{1, 1}}
	themes := []ThemeCandidate{
		{ClusterID: "cluster_first", Embedding: []float32{2, 2}},
		{ClusterID: "cluster_second", Embedding: []float32{2, 2}},
	}

	a := NewAssigner(nil, 0.5, 0, nil)
	assignment := a.AssignGroups([]SemanticGroup{group}, themes)
	if len(assignment["cluster_first"]) != 1 {
		t.Fatalf("tie must keep the first-seen maximum: %+v", assignment)
	}
}

func TestAssignGroupsTotalOverInput(t *testing.T) {
	t.Parallel()
	groups := []SemanticGroup{
		{GroupKey: "a", Embedding: []float32{1, 0}},
		{GroupKey: "b", Embedding: []float32{0, 1}},
		{GroupKey: "c"}, // no embedding
	}
	themes := []ThemeCandidate{{ClusterID: "cluster_x", Embedding: []float32{1, 0}}}

	a := NewAssigner(nil, 0.8, 0, nil)
	assignment := a.AssignGroups(groups, themes)

	total := 0
	for _, assigned := range assignment {
		total += len(assigned)
	}
	if total != len(groups) {
		t.Fatalf("assignment must be total: %d groups assigned of %d", total, len(groups))
	}
	if len(assignment["cluster_x"]) != 1 {
		t.Fatalf("expected aligned group in cluster_x: %+v", assignment)
	}
	// The orthogonal group and the embeddingless group both fall back.
	if len(assignment[GenericClusterID]) != 2 {
		t.Fatalf("expected 2 generic groups: %+v", assignment)
	}
}

func TestAssignGroupsNoCandidates(t *testing.T) {
	t.Parallel()
	groups := []SemanticGroup{{GroupKey: "a", Embedding: []float32{1, 2}}}

	a := NewAssigner(nil, 0.35, 0, nil)
	assignment := a.AssignGroups(groups, nil)
	if len(assignment[GenericClusterID]) != 1 {
		t.Fatalf("with no candidates every group goes generic: %+v", assignment)
	}
}

func TestAssignGroupsSkipsCandidatesWithoutEmbeddings(t *testing.T) {
	t.Parallel()
	groups := []SemanticGroup{{GroupKey: "a", Embedding: []float32{1, 0}}}
	themes := []ThemeCandidate{
		{ClusterID: "cluster_broken"}, // embedding failed
		{ClusterID: "cluster_ok", Embedding: []float32{1, 0}},
	}

	a := NewAssigner(nil, 0.9, 0, nil)
	assignment := a.AssignGroups(groups, themes)
	if len(assignment["cluster_ok"]) != 1 {
		t.Fatalf("expected embeddingless candidate to be skipped: %+v", assignment)
	}
	if _, ok := assignment["cluster_broken"]; !ok {
		t.Fatalf("broken candidate should still have a (possibly empty) entry: %+v", assignment)
	}
}

func TestEmbedGroupsAssignsPositionally(t *testing.T) {
	t.Parallel()
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"Docs x.com": {1, 2},
	}}
	a := NewAssigner(embedder, 0.35, 1200, nil)

	groups := []SemanticGroup{
		{GroupKey: "k1", Title: "Docs", Hostname: "x.com"},
		{GroupKey: "k2"}, // no embeddable text at all
	}
	groups = a.EmbedGroups(context.Background(), groups)

	if got := groups[0].Embedding; len(got) != 2 {
		t.Fatalf("expected embedding on first group, got %v", got)
	}
	if groups[1].Embedding != nil {
		t.Fatalf("textless group must keep nil embedding, got %v", groups[1].Embedding)
	}
	if embedder.calls != 1 {
		t.Fatalf("expected a single batch call, got %d", embedder.calls)
	}
	if len(embedder.inputs[0]) != 1 {
		t.Fatalf("textless groups must not be sent to the port: %v", embedder.inputs[0])
	}
}

func TestEmbedGroupsIncludesPathnamesAndQueries(t *testing.T) {
	t.Parallel()
	embedder := &stubEmbedder{vectors: map[string][]float32{}}
	a := NewAssigner(embedder, 0.35, 1200, nil)

	groups := []SemanticGroup{{
		GroupKey: "k",
		Title:    "Search",
		Hostname: "google.com",
		Items: []HistoryItem{
			{URLPathnameClean: "/search", URLSearchQuery: "golang generics"},
			{URLPathnameClean: "/search", URLSearchQuery: "golang generics"},
			{URLPathnameClean: "/"},
		},
	}}
	a.EmbedGroups(context.Background(), groups)

	text := embedder.inputs[0][0]
	if !strings.Contains(text, "golang generics") || !strings.Contains(text, "/search") {
		t.Fatalf("embed text missing url features: %q", text)
	}
	if strings.Count(text, "golang generics") != 1 {
		t.Fatalf("duplicate features must be deduplicated: %q", text)
	}
}

func TestEmbedGroupsTruncatesText(t *testing.T) {
	t.Parallel()
	embedder := &stubEmbedder{vectors: map[string][]float32{}}
	a := NewAssigner(embedder, 0.35, 32, nil)

	a.EmbedGroups(context.Background(), []SemanticGroup{{
		GroupKey: "k",
		Title:    strings.Repeat("long title ", 20),
		Hostname: "x.com",
	}})
	if got := len(embedder.inputs[0][0]); got > 32 {
		t.Fatalf("embed text must be bounded, got %d chars", got)
	}
}

func TestEmbedGroupsDegradesOnPortError(t *testing.T) {
	t.Parallel()
	embedder := &stubEmbedder{err: fmt.Errorf("embedding service down")}
	a := NewAssigner(embedder, 0.35, 1200, nil)

	groups := a.EmbedGroups(context.Background(), []SemanticGroup{{GroupKey: "k", Title: "Docs"}})
	if groups[0].Embedding != nil {
		t.Fatalf("port error must leave embeddings nil, got %v", groups[0].Embedding)
	}
}

func TestEmbedThemesDegradesPerEntry(t *testing.T) {
	t.Parallel()
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"Go - docs": {1, 0},
		// "Broken - b" intentionally absent: empty vector from the port.
	}}
	a := NewAssigner(embedder, 0.35, 1200, nil)

	candidates := a.EmbedThemes(context.Background(), []ThemeCandidate{
		{ClusterID: "c1", Theme: "Go", Summary: "docs"},
		{ClusterID: "c2", Theme: "Broken", Summary: "b"},
	})
	if len(candidates[0].Embedding) != 2 {
		t.Fatalf("expected embedding on first candidate, got %v", candidates[0].Embedding)
	}
	if candidates[1].Embedding != nil {
		t.Fatalf("failed entry must keep nil embedding, got %v", candidates[1].Embedding)
	}
}
