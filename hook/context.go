package hook

// buildContext walks diff recursively, collecting every value of key
// "@type" into AffectedTypes and "@id" into AffectedIDs. Implemented
// as a typed tree walk over generic JSON-shaped values per Design Note
// "Reflection over @type/@id in diffs", avoiding language reflection.
func buildContext(meta CommitMeta, diff, before, after map[string]any) *DiffContext {
	dc := &DiffContext{Meta: meta, Diff: diff, Before: before, After: after}
	walk(diff, dc)
	return dc
}

func walk(v any, dc *DiffContext) {
	switch val := v.(type) {
	case map[string]any:
		if t, ok := val["@type"].(string); ok {
			dc.AffectedTypes = append(dc.AffectedTypes, t)
		}
		if id, ok := val["@id"].(string); ok {
			dc.AffectedIDs = append(dc.AffectedIDs, id)
		}
		for _, child := range val {
			walk(child, dc)
		}
	case []any:
		for _, child := range val {
			walk(child, dc)
		}
	}
}
