package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/r9s-ai/x12-mapper/pkg/maperr"
	"github.com/r9s-ai/x12-mapper/pkg/x12"
)

// mapRequest is the decoded POST /x12-map payload.
type mapRequest struct {
	Segments []x12.Segment
	// Delimiters is set when segments were parsed from X12 text.
	Delimiters *x12.Delimiters

	MappingBlobURL   string
	MappingPath      string
	TransactionSet   string
	Client           string
	MappingRoot      string
	MappingContainer string
	IncludeMeta      bool
}

func parseMapRequest(body []byte) (*mapRequest, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil, maperr.Input("", "Request body must be valid JSON.")
	}
	if trimmed[0] != '{' {
		return nil, maperr.Input("", "JSON payload must be an object.")
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, maperr.Input("", "Request body must be valid JSON.")
	}

	req := &mapRequest{}
	var err error
	if req.Segments, req.Delimiters, err = parseSegmentsField(raw); err != nil {
		return nil, err
	}
	strFields := []struct {
		key string
		dst *string
	}{
		{"mappingBlobUrl", &req.MappingBlobURL},
		{"mappingPath", &req.MappingPath},
		{"transactionSet", &req.TransactionSet},
		{"client", &req.Client},
		{"mappingRoot", &req.MappingRoot},
		{"mappingContainer", &req.MappingContainer},
	}
	for _, f := range strFields {
		v, err := optionalString(raw, f.key)
		if err != nil {
			return nil, err
		}
		if v != nil {
			*f.dst = *v
		}
	}
	if rawMeta, ok := raw["includeMeta"]; ok && !isNull(rawMeta) {
		if err := json.Unmarshal(rawMeta, &req.IncludeMeta); err != nil {
			return nil, maperr.Input("includeMeta", "must be a boolean")
		}
	}
	return req, nil
}

func parseSegmentsField(raw map[string]json.RawMessage) ([]x12.Segment, *x12.Delimiters, error) {
	if rawSegs, ok := raw["segments"]; ok && !isNull(rawSegs) {
		var items []json.RawMessage
		if err := json.Unmarshal(rawSegs, &items); err != nil {
			return nil, nil, maperr.Input("segments", "must be an array.")
		}
		segments := make([]x12.Segment, 0, len(items))
		for i, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) == 0 || item[0] != '{' {
				return nil, nil, maperr.Input("segments", "must be an array of objects.")
			}
			var seg x12.Segment
			if err := json.Unmarshal(item, &seg); err != nil {
				return nil, nil, maperr.Input(fmt.Sprintf("segments[%d]", i), "%v", err)
			}
			segments = append(segments, seg)
		}
		return segments, nil, nil
	}

	text, err := firstNonEmptyString(raw, "x12", "x12Text")
	if err != nil {
		return nil, nil, err
	}
	if text == "" {
		return nil, nil, maperr.Input("", "x12 or segments is required.")
	}
	var overrides [3]*string
	for i, key := range []string{"elementSeparator", "segmentSeparator", "componentSeparator"} {
		if overrides[i], err = optionalString(raw, key); err != nil {
			return nil, nil, err
		}
	}
	d := x12.DetectDelimiters(text).WithOverrides(overrides[0], overrides[1], overrides[2])
	segments, err := x12.Parse(text, d)
	if err != nil {
		return nil, nil, err
	}
	return segments, &d, nil
}

// firstNonEmptyString returns the first key holding a non-empty string.
// A present non-string value is rejected.
func firstNonEmptyString(raw map[string]json.RawMessage, keys ...string) (string, error) {
	for _, key := range keys {
		v, err := optionalString(raw, key)
		if err != nil {
			return "", maperr.Input("x12", "must be a string.")
		}
		if v != nil && *v != "" {
			return *v, nil
		}
	}
	return "", nil
}

func optionalString(raw map[string]json.RawMessage, key string) (*string, error) {
	v, ok := raw[key]
	if !ok || isNull(v) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, maperr.Input(key, "must be a string")
	}
	return &s, nil
}

func isNull(v json.RawMessage) bool {
	return strings.TrimSpace(string(v)) == "null"
}
