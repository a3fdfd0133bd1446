package mapping

// Merge layers overlay on top of base. Top-level extra keys of overlay
// replace those of base. Fields are merged base, then overlay.Fields, then
// overlay.Overrides.Fields, with later layers replacing earlier definitions
// at the same output path. Segment rules of all three layers are
// concatenated in the same order. The result carries neither Extends nor
// Overrides, and base is never modified.
func Merge(base, overlay *Document) *Document {
	if base == nil {
		base = &Document{}
	}
	if overlay == nil {
		overlay = &Document{}
	}
	merged := &Document{}

	if len(base.Extra) > 0 || len(overlay.Extra) > 0 {
		merged.Extra = make(map[string]any, len(base.Extra)+len(overlay.Extra))
		for k, v := range base.Extra {
			merged.Extra[k] = v
		}
		for k, v := range overlay.Extra {
			merged.Extra[k] = v
		}
	}

	merged.Fields = base.Fields.Clone()
	for k, def := range overlay.Fields.All() {
		merged.Fields.Set(k, def)
	}

	n := len(base.SegmentRules) + len(overlay.SegmentRules)
	if overlay.Overrides != nil {
		for k, def := range overlay.Overrides.Fields.All() {
			merged.Fields.Set(k, def)
		}
		n += len(overlay.Overrides.SegmentRules)
	}

	merged.SegmentRules = make([]SegmentRule, 0, n)
	merged.SegmentRules = append(merged.SegmentRules, base.SegmentRules...)
	merged.SegmentRules = append(merged.SegmentRules, overlay.SegmentRules...)
	if overlay.Overrides != nil {
		merged.SegmentRules = append(merged.SegmentRules, overlay.Overrides.SegmentRules...)
	}
	return merged
}
