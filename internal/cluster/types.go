package cluster

import (
	"context"
	"strings"
	"time"
)

// HistoryItem represents a single browsing history visit supplied by the
// extension. The enriched URL fields are optional; the server backfills
// them from the raw URL when absent.
type HistoryItem struct {
	URL              string    `json:"url"`
	Title            string    `json:"title"`
	VisitTime        time.Time `json:"visit_time"`
	URLHostname      string    `json:"url_hostname,omitempty"`
	URLPathnameClean string    `json:"url_pathname_clean,omitempty"`
	URLSearchQuery   string    `json:"url_search_query,omitempty"`
}

// HistorySession is an ordered window of history items grouped by time.
type HistorySession struct {
	SessionIdentifier string        `json:"session_identifier"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	Items             []HistoryItem `json:"items"`
}

// SemanticGroup is a compression unit of visits sharing (title, hostname).
// Items with no title never merge; each one becomes its own singleton group.
type SemanticGroup struct {
	GroupKey             string
	Title                string
	Hostname             string
	ItemCount            int
	ExampleVisitTime     time.Time
	ExamplePathnameClean string
	Items                []HistoryItem
	Embedding            []float32
}

// ThemeCandidate is an LLM-proposed theme. Candidates live for a single
// pipeline run; a schema-invalid completion yields none at all.
type ThemeCandidate struct {
	ClusterID string
	Theme     string
	Summary   string
	Embedding []float32
}

// ClusterItem is a history item projected into the response shape, stamped
// with the embedding of the semantic group it belonged to.
type ClusterItem struct {
	URL              string    `json:"url"`
	Title            string    `json:"title"`
	VisitTime        time.Time `json:"visit_time"`
	URLHostname      string    `json:"url_hostname,omitempty"`
	URLPathnameClean string    `json:"url_pathname_clean,omitempty"`
	URLSearchQuery   string    `json:"url_search_query,omitempty"`
	Embedding        []float32 `json:"embedding,omitempty"`
}

// ClusterResult is one materialized output cluster.
type ClusterResult struct {
	ClusterID string        `json:"cluster_id"`
	Theme     string        `json:"theme"`
	Summary   string        `json:"summary"`
	Items     []ClusterItem `json:"items"`
	Embedding []float32     `json:"embedding,omitempty"`
}

// ClusteringResult is the full per-session output, keyed by the canonical
// session identity. This is the unit persisted and cached.
type ClusteringResult struct {
	SessionIdentifier string          `json:"session_identifier"`
	SessionStartTime  time.Time       `json:"session_start_time"`
	SessionEndTime    time.Time       `json:"session_end_time"`
	Clusters          []ClusterResult `json:"clusters"`
}

// The generic bucket is the reserved catch-all cluster for groups that do
// not clear the similarity threshold against any proposed theme. Its id is
// never accepted from the model.
const (
	GenericClusterID      = "cluster_generic"
	GenericClusterTheme   = "General Browsing"
	GenericClusterSummary = "Miscellaneous browsing activity."
)

// CanonicalSessionID derives the user-scoped storage key for a session.
// Prefixing the server-controlled user id keeps client-chosen session
// identifiers from colliding across users, even when they contain the
// separator themselves.
func CanonicalSessionID(userID, sessionIdentifier string) string {
	return "u" + userID + ":" + sessionIdentifier
}

// LocalSessionID strips the user scope from a canonical session id,
// recovering the identifier the client supplied.
func LocalSessionID(userID, canonicalID string) string {
	return strings.TrimPrefix(canonicalID, "u"+userID+":")
}

// TextCompleter is the text-completion port. The returned text carries no
// structural guarantee; callers parse defensively.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// Embedder is the embedding port. The result has the same length as the
// input with positional correspondence; an entry may be empty when the
// provider failed for that text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ThemeDiscoverer proposes themes for a set of semantic groups. A failed or
// malformed discovery returns an empty list, never an error.
type ThemeDiscoverer interface {
	DiscoverThemes(ctx context.Context, groups []SemanticGroup) []ThemeCandidate
}

// ResultStore persists clustering results by canonical session identity.
type ResultStore interface {
	// GetClusteringResult returns the stored result and whether one exists.
	GetClusteringResult(ctx context.Context, canonicalID string) (*ClusteringResult, bool, error)
	// SaveClusteringResult stores a result. When replaceIfExists is set any
	// record under the same identity is deleted before the insert.
	SaveClusteringResult(ctx context.Context, ownerID string, result *ClusteringResult, replaceIfExists bool) (string, error)
}
