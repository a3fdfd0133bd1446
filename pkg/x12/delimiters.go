package x12

import (
	"strings"
	"unicode"
)

const (
	DefaultElementSeparator   = "*"
	DefaultSegmentSeparator   = "~"
	DefaultComponentSeparator = ":"

	// isaHeaderLen is the fixed length of an ISA segment including its terminator.
	isaHeaderLen = 106
)

// Delimiters holds the three X12 separators.
type Delimiters struct {
	Element   string `json:"element"`
	Segment   string `json:"segment"`
	Component string `json:"component"`
}

// DefaultDelimiters returns "*", "~" and ":".
func DefaultDelimiters() Delimiters {
	return Delimiters{
		Element:   DefaultElementSeparator,
		Segment:   DefaultSegmentSeparator,
		Component: DefaultComponentSeparator,
	}
}

// DetectDelimiters infers the separators from a fixed-position ISA header:
// element at offset 3, component at 104, segment at 105. Text that does not
// start with a complete ISA header yields the defaults.
func DetectDelimiters(text string) Delimiters {
	candidate := strings.TrimLeftFunc(text, unicode.IsSpace)
	if !strings.HasPrefix(candidate, "ISA") {
		return DefaultDelimiters()
	}
	head := make([]rune, 0, isaHeaderLen)
	for _, r := range candidate {
		head = append(head, r)
		if len(head) == isaHeaderLen {
			break
		}
	}
	if len(head) < isaHeaderLen {
		return DefaultDelimiters()
	}
	return Delimiters{
		Element:   string(head[3]),
		Segment:   string(head[105]),
		Component: string(head[104]),
	}
}

// WithOverrides returns d with every non-nil override applied.
func (d Delimiters) WithOverrides(element, segment, component *string) Delimiters {
	if element != nil {
		d.Element = *element
	}
	if segment != nil {
		d.Segment = *segment
	}
	if component != nil {
		d.Component = *component
	}
	return d
}
