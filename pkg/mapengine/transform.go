package mapengine

import "strings"

// Transform is a named value rewrite applied after valueMap substitution.
type Transform int

const (
	TransformNone Transform = iota
	TransformTrim
	TransformUpper
	TransformLower
	TransformDateYYYYMMDD
)

var transformNames = map[string]Transform{
	"trim":          TransformTrim,
	"upper":         TransformUpper,
	"lower":         TransformLower,
	"date_yyyymmdd": TransformDateYYYYMMDD,
}

// ParseTransform maps a mapping document's transform name to a Transform.
// Unknown and empty names yield TransformNone, which passes values through.
func ParseTransform(name string) Transform {
	return transformNames[name]
}

// Known reports whether name is a recognized transform.
func Known(name string) bool {
	_, ok := transformNames[name]
	return ok
}

func (t Transform) String() string {
	for name, v := range transformNames {
		if v == t {
			return name
		}
	}
	return "none"
}

// Apply rewrites v. Non-string values are returned unchanged.
func (t Transform) Apply(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch t {
	case TransformTrim:
		return strings.TrimSpace(s)
	case TransformUpper:
		return strings.ToUpper(s)
	case TransformLower:
		return strings.ToLower(s)
	case TransformDateYYYYMMDD:
		if !isDigits8(s) {
			return s
		}
		return s[:4] + "-" + s[4:6] + "-" + s[6:]
	default:
		return s
	}
}

func isDigits8(s string) bool {
	if len(s) != 8 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
