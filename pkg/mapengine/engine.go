package mapengine

import (
	"github.com/r9s-ai/x12-mapper/pkg/jsonutil"
	"github.com/r9s-ai/x12-mapper/pkg/mapping"
	"github.com/r9s-ai/x12-mapper/pkg/x12"
)

// Apply maps segments through a resolved document and returns the output
// tree. Field definitions run first in insertion order, then segment rules
// run for every segment in input order. Absent values never create keys.
func Apply(segments []x12.Segment, doc *mapping.Document) map[string]any {
	out := map[string]any{}
	if doc == nil {
		return out
	}

	for outPath, def := range doc.Fields.All() {
		if v, ok := selectOccurrence(collect(segments, def), def.Occurrence); ok {
			jsonutil.SetPath(out, outPath, v)
		}
	}

	for _, seg := range segments {
		for i := range doc.SegmentRules {
			rule := &doc.SegmentRules[i]
			if rule.Segment == "" || rule.Segment != seg.ID || !ruleMatches(seg, rule) {
				continue
			}
			for outPath, def := range rule.Map.All() {
				if v, ok := extract(seg, def); ok {
					jsonutil.SetPath(out, outPath, v)
				}
			}
		}
	}
	return out
}

// collect returns the extracted values of every matching segment. A
// definition without a segment matches nothing.
func collect(segments []x12.Segment, def mapping.FieldDefinition) []any {
	if def.Segment == "" {
		return nil
	}
	var matches []any
	for _, seg := range segments {
		if seg.ID != def.Segment || !conditionMatches(seg, def.When) {
			continue
		}
		if v, ok := extract(seg, def); ok {
			matches = append(matches, v)
		}
	}
	return matches
}

func selectOccurrence(matches []any, occ mapping.Occurrence) (any, bool) {
	if len(matches) == 0 {
		return nil, false
	}
	switch occ.Kind {
	case mapping.OccurrenceAll:
		return matches, true
	case mapping.OccurrenceLast:
		return matches[len(matches)-1], true
	case mapping.OccurrenceNth:
		if occ.N < 1 || occ.N > len(matches) {
			return nil, false
		}
		return matches[occ.N-1], true
	default:
		return matches[0], true
	}
}

func ruleMatches(seg x12.Segment, rule *mapping.SegmentRule) bool {
	if rule.When != nil {
		return conditionMatches(seg, rule.When)
	}
	if len(rule.WhenAny) > 0 {
		for _, c := range rule.WhenAny {
			if conditionMatches(seg, c) {
				return true
			}
		}
		return false
	}
	return true
}

// extract applies the element/component lookup, then valueMap, then the
// transform.
func extract(seg x12.Segment, def mapping.FieldDefinition) (any, bool) {
	v, ok := lookup(seg, def.Element, def.Component)
	if !ok {
		return nil, false
	}
	if s, isStr := v.(string); isStr && def.ValueMap != nil {
		if mapped, hit := def.ValueMap[s]; hit {
			v = mapped
		}
	}
	if v == nil {
		return nil, false
	}
	return ParseTransform(def.Transform).Apply(v), true
}

func lookup(seg x12.Segment, element int, component *int) (any, bool) {
	el, ok := seg.Element(element)
	if !ok {
		return nil, false
	}
	if component == nil {
		return el.Any(), true
	}
	c, ok := el.Component(*component)
	if !ok {
		return nil, false
	}
	return c, true
}

// conditionMatches treats a nil condition as always true. An absent value
// never matches.
func conditionMatches(seg x12.Segment, c *mapping.Condition) bool {
	if c == nil {
		return true
	}
	v, ok := lookup(seg, c.Element, c.Component)
	if !ok {
		return false
	}
	if c.HasEquals {
		return valuesEqual(v, c.Equals)
	}
	if c.HasIn {
		for _, candidate := range c.In {
			if valuesEqual(v, candidate) {
				return true
			}
		}
		return false
	}
	return true
}

// valuesEqual compares an extracted value (string or []string) with an
// operand decoded from a mapping document.
func valuesEqual(v, operand any) bool {
	switch got := v.(type) {
	case string:
		s, ok := operand.(string)
		return ok && s == got
	case []string:
		list, ok := operand.([]any)
		if !ok || len(list) != len(got) {
			return false
		}
		for i, item := range list {
			s, ok := item.(string)
			if !ok || s != got[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}
