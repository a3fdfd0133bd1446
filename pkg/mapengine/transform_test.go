package mapengine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransformApply(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"trim", "  ACME \t", "ACME"},
		{"upper", "acme", "ACME"},
		{"lower", "ACME", "acme"},
		{"date_yyyymmdd", "20240115", "2024-01-15"},
		{"date_yyyymmdd", "2024-01-15", "2024-01-15"},
		{"date_yyyymmdd", "ABCDEFGH", "ABCDEFGH"},
		{"date_yyyymmdd", "2024011", "2024011"},
		{"date_yyyymmdd", "202401150", "202401150"},
		{"date_yyyymmdd", "２０２４０１１５", "２０２４０１１５"},
		{"reverse", "abc", "abc"},
		{"", " x ", " x "},
		{"upper", []string{"a"}, []string{"a"}},
		{"trim", json.Number("5"), json.Number("5")},
		{"date_yyyymmdd", true, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseTransform(tc.name).Apply(tc.in), "%s(%v)", tc.name, tc.in)
	}
}

func TestParseTransform(t *testing.T) {
	assert.Equal(t, TransformTrim, ParseTransform("trim"))
	assert.Equal(t, TransformDateYYYYMMDD, ParseTransform("date_yyyymmdd"))
	assert.Equal(t, TransformNone, ParseTransform("TRIM"))
	assert.True(t, Known("lower"))
	assert.False(t, Known("titlecase"))
	assert.Equal(t, "upper", TransformUpper.String())
	assert.Equal(t, "none", TransformNone.String())
}
