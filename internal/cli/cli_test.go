package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedver "github.com/r9s-ai/x12-mapper/internal/version"
)

const (
	testStandard = `{
  "fields": {
    "po.number": {"segment": "BEG", "element": 3},
    "po.date": {"segment": "BEG", "element": 5, "transform": "date_yyyymmdd"}
  },
  "segmentRules": [
    {"segment": "N1", "when": {"element": 1, "equals": "ST"}, "map": {"shipTo.name": {"element": 2}}}
  ]
}`
	testClient = `{
  "extends": "../../standards/850.json",
  "overrides": {"fields": {"po.number": {"segment": "BEG", "element": 3, "transform": "upper"}}}
}`
	testEDI = "BEG*00*SA*po-1**20240115~N1*ST*DOCK 4~"
)

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func newStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "mapping/standards/850.json", testStandard)
	writeFile(t, dir, "mapping/clients/acme/850.json", testClient)
	return dir
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	// Keep tests independent of a config file in the working directory.
	if len(args) > 0 && (args[0] == "map" || args[0] == "resolve" || args[0] == "validate") {
		args = append(args, "--config=")
	}
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestMapCmd_ClientMapping(t *testing.T) {
	dir := newStore(t)
	edi := writeFile(t, t.TempDir(), "850.edi", testEDI)

	out, err := run(t, "", "map", edi, "--root", dir, "--mapping", "clients/acme/850.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"po": {"number": "PO-1", "date": "2024-01-15"}, "shipTo": {"name": "DOCK 4"}}`, out)
	assert.True(t, strings.Index(out, `"po"`) < strings.Index(out, `"shipTo"`), "keys are sorted")
}

func TestMapCmd_StdinTransactionSetAndMeta(t *testing.T) {
	dir := newStore(t)
	out, err := run(t, testEDI, "map", "-", "--root", dir, "-t", "850", "--include-meta")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "mapping/standards/850.json", got["mappingPath"])
	assert.EqualValues(t, 2, got["segmentCount"])
	assert.Equal(t, map[string]any{"number": "po-1", "date": "2024-01-15"}, got["output"].(map[string]any)["po"])
}

func TestMapCmd_SeparatorOverride(t *testing.T) {
	dir := newStore(t)
	out, err := run(t, "BEG|00|SA|X||20240101\nN1|ST|Y\n", "map", "-", "--root", dir, "-t", "850",
		"--element-separator", "|", "--segment-separator", "\n")
	require.NoError(t, err)
	assert.JSONEq(t, `{"po": {"number": "X", "date": "2024-01-01"}, "shipTo": {"name": "Y"}}`, out)

	_, err = run(t, testEDI, "map", "-", "--root", dir, "-t", "850", "--segment-separator=")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "segmentSeparator")
}

func TestMapCmd_Errors(t *testing.T) {
	dir := newStore(t)
	_, err := run(t, testEDI, "map", "-", "--root", dir, "-t", "810")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapping/standards/810.json")

	_, err = run(t, "", "map", filepath.Join(dir, "missing.edi"), "--root", dir)
	require.Error(t, err)

	_, err = run(t, testEDI, "map", "-", "--root", filepath.Join(dir, "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open mapping store")
}

func TestMapCmd_ConfigDefaults(t *testing.T) {
	base := t.TempDir()
	writeFile(t, base, "maps/edi/mapping/standards/850.json", testStandard)
	cfg := writeFile(t, base, "x12map.yaml", fmt.Sprintf("mappings:\n  dir: %s\n  container: edi\n", filepath.Join(base, "maps")))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader(testEDI))
	root.SetArgs([]string{"map", "-", "-c", cfg, "-t", "850"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `"number": "po-1"`)
}

func TestResolveCmd(t *testing.T) {
	dir := newStore(t)
	out, err := run(t, "", "resolve", "--root", dir, "-m", "/clients/acme/850.json")
	require.NoError(t, err)

	var doc struct {
		Extends string                     `json:"extends"`
		Fields  map[string]json.RawMessage `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Empty(t, doc.Extends)
	assert.Len(t, doc.Fields, 2)
	assert.Contains(t, string(doc.Fields["po.number"]), "upper")

	_, err = run(t, "", "resolve", "--root", dir)
	require.EqualError(t, err, "--mapping is required")
}

func TestParseCmd(t *testing.T) {
	out, err := run(t, "BEG*00*SA*1~N1*ST*A:B~", "parse", "-")
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"id": "BEG", "elements": ["00", "SA", "1"]},
		{"id": "N1", "elements": ["ST", ["A", "B"]]}
	]`, out)

	out, err = run(t, "BEG*00~", "parse", "-", "--delimiters")
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"delimiters": {"element": "*", "segment": "~", "component": ":"},
		"segments": [{"id": "BEG", "elements": ["00"]}]
	}`, out)
}

func TestValidateCmd(t *testing.T) {
	dir := newStore(t)
	out, err := run(t, "", "validate", "--root", dir)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("OK 2 mapping files in %s\n", dir), out)

	writeFile(t, dir, "mapping/loop/a.json", `{"extends": "a.json"}`)
	out, err = run(t, "", "validate", "--root", dir)
	require.Error(t, err)
	assert.Contains(t, out, "INVALID mapping/loop/a.json kind=cycle")
	assert.Equal(t, "1 of 3 mapping files failed validation", err.Error())
}

func TestVersionCmdOutput(t *testing.T) {
	t.Parallel()

	cmd := newVersionCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(nil)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute version cmd: %v", err)
	}

	got := strings.TrimSpace(buf.String())
	want := strings.TrimSpace(fmt.Sprint(sharedver.Get()))
	if got != want {
		t.Fatalf("version output=%q want=%q", got, want)
	}
}

func TestRootCmdHasSubcommands(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	for _, name := range []string{"map", "resolve", "parse", "validate", "version"} {
		if _, _, err := root.Find([]string{name}); err != nil {
			t.Fatalf("find %s subcommand: %v", name, err)
		}
	}
}

func TestMapCmd_BundledSample(t *testing.T) {
	root := filepath.Join("..", "..", "config", "x12-mappings")
	sample := filepath.Join("..", "..", "samples", "850_acme.edi")

	out, err := run(t, "", "map", sample, "--root", root)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"purchaseOrder": {
			"number": "PO-4471",
			"date": "2024-01-15",
			"purpose": "original",
			"type": "stand-alone",
			"requestedDelivery": "2024-02-01"
		},
		"buyer": {"contact": "Jane Buyer"},
		"lines": {
			"sku": ["ACM-100", "ACM-220"],
			"quantity": ["10", "4"],
			"unitPrice": ["4.25", "18.00"]
		},
		"summary": {"lineCount": "2"},
		"acme": {"vendorNumber": "V-20931", "department": "0042"},
		"shipTo": {"name": "ACME Distribution Center", "idQualifier": "92", "id": "DC-EAST"},
		"billTo": {"name": "ACME Corporate"},
		"shipping": {"carrier": "UPSN", "method": "GROUND"}
	}`, out)

	out, err = run(t, "", "validate", "--root", root)
	require.NoError(t, err, out)
}
