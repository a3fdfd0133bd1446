package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/r9s-ai/x12-mapper/internal/config"
	"github.com/r9s-ai/x12-mapper/internal/logx"
	"github.com/r9s-ai/x12-mapper/pkg/mappingstore"
)

func TestOpenAccessLogger_RotateEnabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "access.log")
	cfg := &config.Config{}
	cfg.Logging.AccessLog = true
	cfg.Logging.AccessLogPath = path
	cfg.Logging.AccessLogRotate.Enabled = true
	cfg.Logging.AccessLogRotate.MaxSizeMB = 1
	cfg.Logging.AccessLogRotate.MaxBackups = 2
	cfg.Logging.AccessLogRotate.MaxAgeDays = 14

	l, closer, color, err := openAccessLogger(cfg)
	if err != nil {
		t.Fatalf("openAccessLogger err=%v", err)
	}
	if l == nil {
		t.Fatalf("expected logger")
	}
	if color {
		t.Fatalf("expected color disabled for file logger")
	}
	if _, ok := closer.(*logx.RotateWriter); !ok {
		t.Fatalf("expected RotateWriter closer, got %T", closer)
	}

	l.Println("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("close err=%v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected active log file, stat err=%v", err)
	}
}

func TestOpenAccessLogger_RotateDisabledFileAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	if err := os.WriteFile(path, []byte("old\n"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cfg := &config.Config{}
	cfg.Logging.AccessLog = true
	cfg.Logging.AccessLogPath = path

	l, closer, _, err := openAccessLogger(cfg)
	if err != nil {
		t.Fatalf("openAccessLogger err=%v", err)
	}
	if _, ok := closer.(*os.File); !ok {
		t.Fatalf("expected os.File closer, got %T", closer)
	}
	l.Println("new")
	_ = closer.Close()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "old\nnew\n" {
		t.Fatalf("expected appended log, got %q", string(b))
	}
}

func TestOpenAccessLogger_Disabled(t *testing.T) {
	cfg := &config.Config{}
	l, closer, _, err := openAccessLogger(cfg)
	if err != nil || l != nil || closer != nil {
		t.Fatalf("expected no logger, got l=%v closer=%v err=%v", l, closer, err)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "x12map.pid")
	cfg := &config.Config{}
	cfg.Server.PidFile = path

	closer, err := writePIDFile(cfg)
	if err != nil {
		t.Fatalf("writePIDFile err=%v", err)
	}
	pid, err := ReadPIDFile(path)
	if err != nil {
		t.Fatalf("ReadPIDFile err=%v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("pid=%d want=%d", pid, os.Getpid())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected tmp file to be renamed away, err=%v", err)
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("close err=%v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, err=%v", err)
	}
}

func TestWritePIDFile_Empty(t *testing.T) {
	closer, err := writePIDFile(&config.Config{})
	if err != nil || closer != nil {
		t.Fatalf("expected no-op, closer=%v err=%v", closer, err)
	}
}

func TestReadPIDFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.pid")
	if err := os.WriteFile(path, []byte("abc\n"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := ReadPIDFile(path); err == nil || !strings.Contains(err.Error(), "invalid pid") {
		t.Fatalf("expected invalid pid error, got %v", err)
	}
	if _, err := ReadPIDFile(path + ".missing"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestReloadCatalog_ReportsChanges(t *testing.T) {
	dir := t.TempDir()
	writeTestMapping(t, dir, "mapping/standards/850.json", standard850)
	st := &state{catalog: mappingstore.NewCatalog(dir)}

	res, err := reloadCatalog(context.Background(), st)
	if err != nil {
		t.Fatalf("reload err=%v", err)
	}
	if res.Entries != 1 || mappingNamesForLog(res.Changed) != "mapping/standards/850.json" {
		t.Fatalf("unexpected first reload: %+v", res)
	}

	res, err = reloadCatalog(context.Background(), st)
	if err != nil {
		t.Fatalf("reload err=%v", err)
	}
	if got := mappingNamesForLog(res.Changed); got != "<none>" {
		t.Fatalf("expected no changes, got %s", got)
	}

	writeTestMapping(t, dir, "mapping/clients/acme/850.json", `{"extends": "missing.json"}`)
	res, err = reloadCatalog(context.Background(), st)
	if err != nil {
		t.Fatalf("reload err=%v", err)
	}
	if len(res.Issues) != 1 || res.Issues[0].Kind != "not_found" {
		t.Fatalf("expected a not_found issue, got %+v", res.Issues)
	}
}

func TestReloadCatalog_NoCatalog(t *testing.T) {
	if _, err := reloadCatalog(context.Background(), &state{}); err == nil {
		t.Fatalf("expected error without catalog")
	}
}

func TestCatalogDir(t *testing.T) {
	cfg := config.Default()
	cfg.Mappings.Dir = "/srv/maps"
	if got := catalogDir(cfg); got != filepath.Join("/srv/maps", "x12-mappings") {
		t.Fatalf("catalogDir=%q", got)
	}
}
