package logx

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestCompileAccessLogFormat(t *testing.T) {
	t.Run("empty returns nil", func(t *testing.T) {
		f, err := CompileAccessLogFormat("   ")
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if f != nil {
			t.Fatalf("expected nil formatter")
		}
	})

	t.Run("unknown variable fails", func(t *testing.T) {
		_, err := CompileAccessLogFormat("$provider")
		if err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("bare dollar fails", func(t *testing.T) {
		_, err := CompileAccessLogFormat("cost $ 5")
		if err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("render with missing var uses dash", func(t *testing.T) {
		f, err := CompileAccessLogFormat("$method $path $mapping_path")
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		out := f.Format(AccessLogEntry{Time: time.Unix(0, 0), Status: 200, Latency: 1500 * time.Millisecond, ClientIP: "127.0.0.1", Method: "POST", Path: "/x12-map"}, false)
		if out != "POST /x12-map -" {
			t.Fatalf("unexpected out: %q", out)
		}
	})

	t.Run("fields fill variables", func(t *testing.T) {
		f, err := CompileAccessLogFormat("request_id=$request_id segments=$segment_count kind=$error_kind")
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		out := f.Format(AccessLogEntry{Status: 404, Fields: map[string]any{
			"request_id":    "x12-abc",
			"segment_count": 12,
			"error_kind":    nil,
		}}, false)
		if out != "request_id=x12-abc segments=12 kind=-" {
			t.Fatalf("unexpected out: %q", out)
		}
	})

	t.Run("dollar escape", func(t *testing.T) {
		f, err := CompileAccessLogFormat("$$ $status")
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		out := f.Format(AccessLogEntry{Status: 200, Latency: time.Second}, false)
		if !strings.HasPrefix(out, "$ 200") {
			t.Fatalf("unexpected out: %q", out)
		}
	})
}

func TestResolveAccessLogFormat(t *testing.T) {
	got, err := ResolveAccessLogFormat("", "X12_Minimal")
	if err != nil || !strings.Contains(got, "$mapping_path") {
		t.Fatalf("preset not resolved: %q err=%v", got, err)
	}
	got, err = ResolveAccessLogFormat("$status", "x12_minimal")
	if err != nil || got != "$status" {
		t.Fatalf("explicit format should win: %q err=%v", got, err)
	}
	if _, err := ResolveAccessLogFormat("", "nginx"); err == nil {
		t.Fatalf("expected unknown preset error")
	}
	for name, format := range accessLogFormatPresets {
		if _, err := CompileAccessLogFormat(format); err != nil {
			t.Fatalf("preset %s does not compile: %v", name, err)
		}
	}
}

func TestColorizeStatusWith(t *testing.T) {
	if got := ColorizeStatusWith(500, false); got != "500" {
		t.Fatalf("plain status=%q", got)
	}
	if got := ColorizeStatusWith(500, true); !strings.Contains(got, ansiRed) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("colored status=%q", got)
	}
	if got := ColorizeStatusWith(201, true); !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("colored 2xx=%q", got)
	}
	if ColorEnabled(&bytes.Buffer{}) {
		t.Fatalf("buffer must not be treated as a terminal")
	}
}
