package cluster

import (
	"fmt"
	"strings"
)

// CompressSession deduplicates a session's items into semantic groups keyed
// by (trimmed title, hostname). Output order is the first-occurrence order
// of each key. Every item lands in exactly one group and no group is empty.
func CompressSession(session HistorySession) []SemanticGroup {
	byKey := make(map[string]int, len(session.Items))
	groups := make([]SemanticGroup, 0, len(session.Items))
	noTitleCounter := 0

	for _, item := range session.Items {
		title := strings.TrimSpace(item.Title)
		hostname := item.URLHostname

		var key string
		if title == "" {
			// Untitled visits never merge with each other.
			key = fmt.Sprintf("__notitle__%d::%s", noTitleCounter, hostname)
			noTitleCounter++
		} else {
			key = title + "::" + hostname
		}

		idx, ok := byKey[key]
		if !ok {
			byKey[key] = len(groups)
			groups = append(groups, SemanticGroup{
				GroupKey:             key,
				Title:                title,
				Hostname:             hostname,
				ExampleVisitTime:     item.VisitTime,
				ExamplePathnameClean: item.URLPathnameClean,
			})
			idx = len(groups) - 1
		}
		groups[idx].Items = append(groups[idx].Items, item)
		groups[idx].ItemCount++
	}

	return groups
}
