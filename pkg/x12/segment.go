package x12

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Segment is one parsed X12 segment. Elements are addressed 1-based: element 1
// is the first token after the segment identifier.
type Segment struct {
	ID       string    `json:"id"`
	Elements []Element `json:"elements"`
}

// Element is either a scalar value or a composite of components.
type Element struct {
	Value      string
	Components []string
}

// Scalar builds a scalar element.
func Scalar(v string) Element {
	return Element{Value: v}
}

// Composite builds a composite element.
func Composite(components ...string) Element {
	if components == nil {
		components = []string{}
	}
	return Element{Components: components}
}

// IsComposite reports whether the element carries components.
func (e Element) IsComposite() bool {
	return e.Components != nil
}

// Any returns the element as a JSON-compatible value: a string for scalars
// and a []string for composites.
func (e Element) Any() any {
	if e.IsComposite() {
		out := make([]string, len(e.Components))
		copy(out, e.Components)
		return out
	}
	return e.Value
}

// Component returns the 1-based component of a composite element.
func (e Element) Component(idx int) (string, bool) {
	if !e.IsComposite() || idx < 1 || idx > len(e.Components) {
		return "", false
	}
	return e.Components[idx-1], true
}

// Element returns the 1-based element of the segment.
func (s Segment) Element(idx int) (Element, bool) {
	if idx < 1 || idx > len(s.Elements) {
		return Element{}, false
	}
	return s.Elements[idx-1], true
}

func (e Element) MarshalJSON() ([]byte, error) {
	if e.IsComposite() {
		return json.Marshal(e.Components)
	}
	return json.Marshal(e.Value)
}

func (e *Element) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	el, err := ElementFromAny(raw)
	if err != nil {
		return err
	}
	*e = el
	return nil
}

var errElementShape = errors.New("element must be a string or an array of strings")

// ElementFromAny converts a decoded JSON value into an Element.
func ElementFromAny(v any) (Element, error) {
	switch t := v.(type) {
	case string:
		return Scalar(t), nil
	case []string:
		return Composite(append([]string(nil), t...)...), nil
	case []any:
		comps := make([]string, 0, len(t))
		for i, c := range t {
			s, ok := c.(string)
			if !ok {
				return Element{}, fmt.Errorf("component %d: %w", i+1, errElementShape)
			}
			comps = append(comps, s)
		}
		return Composite(comps...), nil
	default:
		return Element{}, errElementShape
	}
}
