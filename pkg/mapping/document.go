package mapping

import (
	"bytes"
	"encoding/json"
	"iter"
	"sort"
)

// Document is a mapping definition. Before resolution it may carry an
// Extends reference and an Overrides block; a resolved document never does.
type Document struct {
	// Extends references a parent document, root-anchored when it starts with "/".
	Extends      string
	Fields       *FieldMap
	SegmentRules []SegmentRule
	Overrides    *Overrides
	// Extra holds every other top-level key (name, description, ...).
	Extra map[string]any
}

// Overrides is applied after the overlay's own fields and rules.
type Overrides struct {
	Fields       *FieldMap
	SegmentRules []SegmentRule
}

// FieldDefinition extracts one value from every matching segment.
type FieldDefinition struct {
	Segment    string
	Element    int
	Component  *int
	When       *Condition
	Occurrence Occurrence
	ValueMap   map[string]any
	Transform  string
}

// SegmentRule writes its Map for every matching segment.
// A nil entry in WhenAny matches unconditionally.
type SegmentRule struct {
	Segment string
	When    *Condition
	WhenAny []*Condition
	Map     *FieldMap
}

// Condition tests the value addressed by Element/Component. With neither
// Equals nor In set it only requires the value to be present.
type Condition struct {
	Element   int
	Component *int
	Equals    any
	HasEquals bool
	In        []any
	HasIn     bool
}

// OccurrenceKind selects which matches of a field are kept.
type OccurrenceKind int

const (
	OccurrenceFirst OccurrenceKind = iota
	OccurrenceLast
	OccurrenceAll
	OccurrenceNth
)

// Occurrence is "first", "last", "all" or a 1-based match index.
type Occurrence struct {
	Kind OccurrenceKind
	N    int
}

// Nth returns an occurrence selecting the n-th match.
func Nth(n int) Occurrence {
	return Occurrence{Kind: OccurrenceNth, N: n}
}

func (o Occurrence) MarshalJSON() ([]byte, error) {
	switch o.Kind {
	case OccurrenceLast:
		return json.Marshal("last")
	case OccurrenceAll:
		return json.Marshal("all")
	case OccurrenceNth:
		return json.Marshal(o.N)
	default:
		return json.Marshal("first")
	}
}

// FieldMap is an insertion-ordered map from output path to definition.
// Setting an existing path replaces its definition in place.
type FieldMap struct {
	keys []string
	defs map[string]FieldDefinition
}

func NewFieldMap() *FieldMap {
	return &FieldMap{defs: map[string]FieldDefinition{}}
}

func (m *FieldMap) Set(path string, def FieldDefinition) {
	if m.defs == nil {
		m.defs = map[string]FieldDefinition{}
	}
	if _, ok := m.defs[path]; !ok {
		m.keys = append(m.keys, path)
	}
	m.defs[path] = def
}

func (m *FieldMap) Get(path string) (FieldDefinition, bool) {
	if m == nil {
		return FieldDefinition{}, false
	}
	def, ok := m.defs[path]
	return def, ok
}

func (m *FieldMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the output paths in insertion order.
func (m *FieldMap) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// All iterates definitions in insertion order.
func (m *FieldMap) All() iter.Seq2[string, FieldDefinition] {
	return func(yield func(string, FieldDefinition) bool) {
		if m == nil {
			return
		}
		for _, k := range m.keys {
			if !yield(k, m.defs[k]) {
				return
			}
		}
	}
}

// Clone returns an independent copy; a nil map clones to an empty one.
func (m *FieldMap) Clone() *FieldMap {
	out := NewFieldMap()
	for k, def := range m.All() {
		out.Set(k, def)
	}
	return out
}

func (m *FieldMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.defs[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type fieldDefinitionJSON struct {
	Segment    string         `json:"segment,omitempty"`
	Element    int            `json:"element,omitempty"`
	Component  *int           `json:"component,omitempty"`
	When       *Condition     `json:"when,omitempty"`
	Occurrence *Occurrence    `json:"occurrence,omitempty"`
	ValueMap   map[string]any `json:"valueMap,omitempty"`
	Transform  string         `json:"transform,omitempty"`
}

func (d FieldDefinition) MarshalJSON() ([]byte, error) {
	out := fieldDefinitionJSON{
		Segment:   d.Segment,
		Element:   d.Element,
		Component: d.Component,
		When:      d.When,
		ValueMap:  d.ValueMap,
		Transform: d.Transform,
	}
	if d.Occurrence != (Occurrence{}) {
		occ := d.Occurrence
		out.Occurrence = &occ
	}
	return json.Marshal(out)
}

func (r SegmentRule) MarshalJSON() ([]byte, error) {
	type ruleJSON struct {
		Segment string       `json:"segment"`
		When    *Condition   `json:"when,omitempty"`
		WhenAny []*Condition `json:"whenAny,omitempty"`
		Map     *FieldMap    `json:"map"`
	}
	m := r.Map
	if m == nil {
		m = NewFieldMap()
	}
	return json.Marshal(ruleJSON{Segment: r.Segment, When: r.When, WhenAny: r.WhenAny, Map: m})
}

func (c Condition) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if c.Element != 0 {
		out["element"] = c.Element
	}
	if c.Component != nil {
		out["component"] = *c.Component
	}
	if c.HasEquals {
		out["equals"] = c.Equals
	}
	if c.HasIn {
		out["in"] = c.In
	}
	return json.Marshal(out)
}

// MarshalJSON renders extra keys first (sorted), then extends, fields,
// segmentRules and overrides.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, v any) error {
		vb, err := json.Marshal(v)
		if err != nil {
			return err
		}
		kb, _ := json.Marshal(key)
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return nil
	}

	extraKeys := make([]string, 0, len(d.Extra))
	for k := range d.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		if err := write(k, d.Extra[k]); err != nil {
			return nil, err
		}
	}
	if d.Extends != "" {
		if err := write(keyExtends, d.Extends); err != nil {
			return nil, err
		}
	}
	fields := d.Fields
	if fields == nil {
		fields = NewFieldMap()
	}
	if err := write(keyFields, fields); err != nil {
		return nil, err
	}
	rules := d.SegmentRules
	if rules == nil {
		rules = []SegmentRule{}
	}
	if err := write(keySegmentRules, rules); err != nil {
		return nil, err
	}
	if d.Overrides != nil {
		ov := map[string]any{}
		if d.Overrides.Fields != nil {
			ov[keyFields] = d.Overrides.Fields
		}
		if d.Overrides.SegmentRules != nil {
			ov[keySegmentRules] = d.Overrides.SegmentRules
		}
		if err := write(keyOverrides, ov); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
