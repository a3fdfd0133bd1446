package x12

import (
	"strings"

	"github.com/r9s-ai/x12-mapper/pkg/maperr"
)

// Parse splits raw X12 text into segments. Blank segments are dropped while
// empty elements are kept so positional indices stay stable. No semantic
// validation is performed.
func Parse(text string, d Delimiters) ([]Segment, error) {
	if d.Segment == "" {
		return nil, maperr.Input("segmentSeparator", "must not be empty")
	}
	if d.Element == "" {
		return nil, maperr.Input("elementSeparator", "must not be empty")
	}
	raw := strings.Split(text, d.Segment)
	segments := make([]Segment, 0, len(raw))
	for _, candidate := range raw {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		parts := strings.Split(candidate, d.Element)
		seg := Segment{
			ID:       parts[0],
			Elements: make([]Element, 0, len(parts)-1),
		}
		for _, token := range parts[1:] {
			if d.Component != "" && strings.Contains(token, d.Component) {
				seg.Elements = append(seg.Elements, Composite(strings.Split(token, d.Component)...))
				continue
			}
			seg.Elements = append(seg.Elements, Scalar(token))
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// ParseDetect parses text with delimiters detected from its ISA header.
func ParseDetect(text string) ([]Segment, Delimiters, error) {
	d := DetectDelimiters(text)
	segments, err := Parse(text, d)
	return segments, d, err
}

// Format renders segments back into X12 text, terminating every segment
// with the segment separator.
func Format(segments []Segment, d Delimiters) string {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.ID)
		for _, el := range seg.Elements {
			b.WriteString(d.Element)
			if el.IsComposite() {
				b.WriteString(strings.Join(el.Components, d.Component))
				continue
			}
			b.WriteString(el.Value)
		}
		b.WriteString(d.Segment)
	}
	return b.String()
}
