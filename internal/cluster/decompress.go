package cluster

// Decompress expands an assignment mapping back into per-theme item lists.
// Each group's member items are emitted in their original order and stamped
// with the group's embedding.
func Decompress(assignment map[string][]SemanticGroup) map[string][]ClusterItem {
	out := make(map[string][]ClusterItem, len(assignment))
	for themeID, groups := range assignment {
		var items []ClusterItem
		for _, group := range groups {
			for _, item := range group.Items {
				items = append(items, ClusterItem{
					URL:              item.URL,
					Title:            item.Title,
					VisitTime:        item.VisitTime,
					URLHostname:      item.URLHostname,
					URLPathnameClean: item.URLPathnameClean,
					URLSearchQuery:   item.URLSearchQuery,
					Embedding:        group.Embedding,
				})
			}
		}
		out[themeID] = items
	}
	return out
}
