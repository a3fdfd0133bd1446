package mapping

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/r9s-ai/x12-mapper/pkg/jsonutil"
	"github.com/r9s-ai/x12-mapper/pkg/maperr"
)

const (
	keyExtends      = "extends"
	keyFields       = "fields"
	keySegmentRules = "segmentRules"
	keyOverrides    = "overrides"

	maxYAMLDepth = 64
)

// object is a decoded JSON/YAML object that remembers key order.
type object struct {
	keys []string
	vals map[string]any
}

func newObject() *object {
	return &object{vals: map[string]any{}}
}

func (o *object) set(k string, v any) {
	if _, ok := o.vals[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.vals[k] = v
}

func (o *object) get(k string) (any, bool) {
	v, ok := o.vals[k]
	return v, ok
}

// IsYAMLPath reports whether p names a YAML-authored mapping.
func IsYAMLPath(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Decode parses a mapping document, choosing YAML or JSON by the extension
// of name. Failures are reported as *maperr.MappingError.
func Decode(name string, data []byte) (*Document, error) {
	var (
		doc *Document
		err error
	)
	if IsYAMLPath(name) {
		doc, err = DecodeYAML(data)
	} else {
		doc, err = DecodeJSON(data)
	}
	if err != nil {
		var me *maperr.MappingError
		if errors.As(err, &me) && me.Path == "" {
			me.Path = name
		}
		return nil, err
	}
	return doc, nil
}

// DecodeJSON parses a JSON mapping document, keeping field order.
func DecodeJSON(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	root, err := decodeJSONValue(dec)
	if err != nil {
		return nil, &maperr.MappingError{Cause: fmt.Errorf("decode json: %w", err)}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &maperr.MappingError{Cause: errors.New("decode json: trailing data after document")}
	}
	return documentFromTree(root)
}

// DecodeYAML parses a YAML mapping document, keeping field order.
func DecodeYAML(data []byte) (*Document, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, &maperr.MappingError{Cause: fmt.Errorf("decode yaml: %w", err)}
	}
	root, err := fromYAMLNode(&node, 0)
	if err != nil {
		return nil, &maperr.MappingError{Cause: fmt.Errorf("decode yaml: %w", err)}
	}
	return documentFromTree(root)
}

func decodeJSONValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		obj := newObject()
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", kt)
			}
			v, err := decodeJSONValue(dec)
			if err != nil {
				return nil, err
			}
			obj.set(key, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := []any{}
		for dec.More() {
			v, err := decodeJSONValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", delim)
	}
}

func fromYAMLNode(n *yaml.Node, depth int) (any, error) {
	if depth > maxYAMLDepth {
		return nil, errors.New("document nested too deeply")
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromYAMLNode(n.Content[0], depth+1)
	case yaml.MappingNode:
		obj := newObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := fromYAMLNode(n.Content[i+1], depth+1)
			if err != nil {
				return nil, err
			}
			obj.set(n.Content[i].Value, v)
		}
		return obj, nil
	case yaml.SequenceNode:
		arr := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromYAMLNode(c, depth+1)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, nil
		}
		return fromYAMLNode(n.Alias, depth+1)
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	default:
		return nil, nil
	}
}

// plain converts ordered objects into map[string]any for values the engine
// treats opaquely (valueMap targets, condition operands, extra keys).
func plain(v any) any {
	switch t := v.(type) {
	case *object:
		out := make(map[string]any, len(t.keys))
		for _, k := range t.keys {
			out[k] = plain(t.vals[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plain(item)
		}
		return out
	default:
		return v
	}
}

func errAt(field string, format string, args ...any) error {
	return &maperr.MappingError{Field: field, Cause: fmt.Errorf(format, args...)}
}

func join(at, key string) string {
	if at == "" {
		return key
	}
	return at + "." + key
}

func documentFromTree(root any) (*Document, error) {
	obj, ok := root.(*object)
	if !ok {
		return nil, errAt("", "document must be an object")
	}
	doc := &Document{}
	for _, k := range obj.keys {
		v := obj.vals[k]
		var err error
		switch k {
		case keyExtends:
			doc.Extends, err = optionalString(v, keyExtends)
		case keyFields:
			doc.Fields, err = decodeFieldMap(v, keyFields)
		case keySegmentRules:
			doc.SegmentRules, err = decodeRules(v, keySegmentRules)
		case keyOverrides:
			doc.Overrides, err = decodeOverrides(v)
		default:
			if doc.Extra == nil {
				doc.Extra = map[string]any{}
			}
			doc.Extra[k] = plain(v)
		}
		if err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func decodeOverrides(v any) (*Overrides, error) {
	if v == nil {
		return nil, nil
	}
	obj, ok := v.(*object)
	if !ok {
		return nil, errAt(keyOverrides, "must be an object")
	}
	ov := &Overrides{}
	var err error
	if fv, ok := obj.get(keyFields); ok {
		if ov.Fields, err = decodeFieldMap(fv, join(keyOverrides, keyFields)); err != nil {
			return nil, err
		}
	}
	if rv, ok := obj.get(keySegmentRules); ok {
		if ov.SegmentRules, err = decodeRules(rv, join(keyOverrides, keySegmentRules)); err != nil {
			return nil, err
		}
	}
	return ov, nil
}

func decodeFieldMap(v any, at string) (*FieldMap, error) {
	if v == nil {
		return nil, nil
	}
	obj, ok := v.(*object)
	if !ok {
		return nil, errAt(at, "must be an object")
	}
	m := NewFieldMap()
	for _, k := range obj.keys {
		def, err := decodeFieldDefinition(obj.vals[k], join(at, k))
		if err != nil {
			return nil, err
		}
		m.Set(k, def)
	}
	return m, nil
}

// decodeFieldDefinition leaves Segment empty when it is missing; such a
// definition matches no segment.
func decodeFieldDefinition(v any, at string) (FieldDefinition, error) {
	obj, ok := v.(*object)
	if !ok {
		return FieldDefinition{}, errAt(at, "must be an object")
	}
	var (
		def FieldDefinition
		err error
	)
	if def.Segment, err = optionalString(valueOf(obj, "segment"), join(at, "segment")); err != nil {
		return def, err
	}
	if def.Element, err = optionalInt(valueOf(obj, "element"), join(at, "element")); err != nil {
		return def, err
	}
	if def.Component, err = optionalIntPtr(valueOf(obj, "component"), join(at, "component")); err != nil {
		return def, err
	}
	if def.When, err = decodeCondition(valueOf(obj, "when"), join(at, "when")); err != nil {
		return def, err
	}
	def.Occurrence = decodeOccurrence(valueOf(obj, "occurrence"))
	if vm := valueOf(obj, "valueMap"); vm != nil {
		m, ok := plain(vm).(map[string]any)
		if !ok {
			return def, errAt(join(at, "valueMap"), "must be an object")
		}
		def.ValueMap = m
	}
	if def.Transform, err = optionalString(valueOf(obj, "transform"), join(at, "transform")); err != nil {
		return def, err
	}
	return def, nil
}

func decodeRules(v any, at string) ([]SegmentRule, error) {
	if v == nil {
		return nil, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, errAt(at, "must be an array")
	}
	rules := make([]SegmentRule, 0, len(arr))
	for i, item := range arr {
		rule, err := decodeRule(item, fmt.Sprintf("%s[%d]", at, i))
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func decodeRule(v any, at string) (SegmentRule, error) {
	obj, ok := v.(*object)
	if !ok {
		return SegmentRule{}, errAt(at, "must be an object")
	}
	var (
		rule SegmentRule
		err  error
	)
	if rule.Segment, err = optionalString(valueOf(obj, "segment"), join(at, "segment")); err != nil {
		return rule, err
	}
	if rule.When, err = decodeCondition(valueOf(obj, "when"), join(at, "when")); err != nil {
		return rule, err
	}
	if wa := valueOf(obj, "whenAny"); wa != nil {
		arr, ok := wa.([]any)
		if !ok {
			return rule, errAt(join(at, "whenAny"), "must be an array")
		}
		rule.WhenAny = make([]*Condition, 0, len(arr))
		for i, c := range arr {
			cond, err := decodeCondition(c, fmt.Sprintf("%s.whenAny[%d]", at, i))
			if err != nil {
				return rule, err
			}
			rule.WhenAny = append(rule.WhenAny, cond)
		}
	}
	if rule.Map, err = decodeFieldMap(valueOf(obj, "map"), join(at, "map")); err != nil {
		return rule, err
	}
	return rule, nil
}

// decodeCondition returns nil for a missing, null or empty condition, all of
// which match unconditionally.
func decodeCondition(v any, at string) (*Condition, error) {
	if v == nil {
		return nil, nil
	}
	obj, ok := v.(*object)
	if !ok {
		return nil, errAt(at, "must be an object")
	}
	if len(obj.keys) == 0 {
		return nil, nil
	}
	cond := &Condition{}
	var err error
	if cond.Element, err = optionalInt(valueOf(obj, "element"), join(at, "element")); err != nil {
		return nil, err
	}
	if cond.Component, err = optionalIntPtr(valueOf(obj, "component"), join(at, "component")); err != nil {
		return nil, err
	}
	if eq, ok := obj.get("equals"); ok {
		cond.Equals = plain(eq)
		cond.HasEquals = true
	}
	if in, ok := obj.get("in"); ok {
		if arr, ok := plain(in).([]any); ok {
			cond.In = arr
			cond.HasIn = true
		}
	}
	return cond, nil
}

func decodeOccurrence(v any) Occurrence {
	// Booleans count as 0 and 1.
	if b, ok := v.(bool); ok {
		if b {
			return Nth(1)
		}
		return Nth(0)
	}
	if s, ok := v.(string); ok {
		switch s {
		case "last":
			return Occurrence{Kind: OccurrenceLast}
		case "all":
			return Occurrence{Kind: OccurrenceAll}
		default:
			return Occurrence{Kind: OccurrenceFirst}
		}
	}
	if n, ok := jsonutil.AsInt(v); ok {
		return Nth(n)
	}
	return Occurrence{Kind: OccurrenceFirst}
}

func valueOf(obj *object, key string) any {
	v, _ := obj.get(key)
	return v
}

func optionalString(v any, at string) (string, error) {
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", errAt(at, "must be a string")
	}
	return s, nil
}

func optionalInt(v any, at string) (int, error) {
	if v == nil {
		return 0, nil
	}
	n, ok := jsonutil.AsInt(v)
	if !ok {
		return 0, errAt(at, "must be an integer")
	}
	return n, nil
}

func optionalIntPtr(v any, at string) (*int, error) {
	if v == nil {
		return nil, nil
	}
	n, err := optionalInt(v, at)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
