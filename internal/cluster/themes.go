package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// LLMThemeDiscoverer proposes themes for semantic groups with a single
// text-completion call. Discovery never fails: a provider error or a
// malformed completion degrades to an empty candidate list, which routes
// every group to the generic bucket downstream.
type LLMThemeDiscoverer struct {
	completer   TextCompleter
	maxThemes   int
	maxTokens   int
	temperature float64
	logger      *log.Logger
}

// NewLLMThemeDiscoverer builds a discoverer over the given completion port.
func NewLLMThemeDiscoverer(completer TextCompleter, maxThemes, maxTokens int, temperature float64, logger *log.Logger) *LLMThemeDiscoverer {
	if maxThemes <= 0 {
		maxThemes = 10
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[THEMES] ", log.LstdFlags)
	}
	return &LLMThemeDiscoverer{
		completer:   completer,
		maxThemes:   maxThemes,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

type groupProjection struct {
	Title    string `json:"title"`
	Hostname string `json:"hostname"`
}

type themePayload struct {
	ClusterID string `json:"cluster_id"`
	Theme     string `json:"theme"`
	Summary   string `json:"summary"`
}

// DiscoverThemes implements ThemeDiscoverer.
func (d *LLMThemeDiscoverer) DiscoverThemes(ctx context.Context, groups []SemanticGroup) []ThemeCandidate {
	prompt := d.buildPrompt(groups)

	raw, err := d.completer.Complete(ctx, prompt, d.maxTokens, d.temperature)
	if err != nil {
		d.logger.Printf("theme discovery completion failed, routing to generic bucket: %v", err)
		return nil
	}

	data, err := extractJSON(strings.TrimSpace(raw))
	if err != nil {
		d.logger.Printf("theme discovery returned unparseable output, routing to generic bucket: %v", err)
		return nil
	}

	var payload []json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		d.logger.Printf("theme discovery returned non-array output, routing to generic bucket: %v", err)
		return nil
	}

	candidates := make([]ThemeCandidate, 0, len(payload))
	for idx, element := range payload {
		// Only object elements qualify; null, strings and numbers would
		// otherwise decode into a zero payload.
		if !strings.HasPrefix(strings.TrimSpace(string(element)), "{") {
			continue
		}
		var tp themePayload
		if err := json.Unmarshal(element, &tp); err != nil {
			continue
		}
		cid := strings.TrimSpace(tp.ClusterID)
		if cid == "" {
			cid = fmt.Sprintf("cluster_%d", idx+1)
		}
		if cid == GenericClusterID {
			// The fallback bucket is never LLM-authored.
			continue
		}
		theme := strings.TrimSpace(tp.Theme)
		if theme == "" {
			theme = "Miscellaneous"
		}
		candidates = append(candidates, ThemeCandidate{
			ClusterID: cid,
			Theme:     theme,
			Summary:   strings.TrimSpace(tp.Summary),
		})
	}
	return candidates
}

func (d *LLMThemeDiscoverer) buildPrompt(groups []SemanticGroup) string {
	projections := make([]groupProjection, len(groups))
	for i, g := range groups {
		projections[i] = groupProjection{Title: g.Title, Hostname: g.Hostname}
	}
	// Marshal of plain string structs cannot fail.
	encoded, _ := json.Marshal(projections)

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are grouping a user's browsing activity into themes.\n")
	fmt.Fprintf(&sb, "Given the browsing groups below, propose between 1 and %d distinct, non-overlapping themes.\n", d.maxThemes)
	sb.WriteString("Respond with ONLY a JSON array of objects with keys cluster_id, theme, summary.\n")
	sb.WriteString("Each cluster_id must be a short unique slug. Never use the reserved id \"" + GenericClusterID + "\".\n")
	sb.WriteString("Browsing groups:\n")
	sb.Write(encoded)
	return sb.String()
}

// extractJSON decodes text that should be JSON but may be wrapped in prose
// or markdown fences. It first tries the text as-is, then the substring
// between the first opening and last closing bracket.
func extractJSON(text string) (json.RawMessage, error) {
	if json.Valid([]byte(text)) {
		return json.RawMessage(text), nil
	}

	start := -1
	for _, c := range []string{"[", "{"} {
		if i := strings.Index(text, c); i != -1 && (start == -1 || i < start) {
			start = i
		}
	}
	if start == -1 {
		return nil, fmt.Errorf("no JSON start found")
	}
	end := strings.LastIndex(text, "]")
	if i := strings.LastIndex(text, "}"); i > end {
		end = i
	}
	if end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON end found")
	}
	sub := text[start : end+1]
	if !json.Valid([]byte(sub)) {
		return nil, fmt.Errorf("embedded JSON is invalid")
	}
	return json.RawMessage(sub), nil
}
