package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/r9s-ai/x12-mapper/internal/config"
	"github.com/r9s-ai/x12-mapper/internal/logx"
	"github.com/r9s-ai/x12-mapper/pkg/mappingstore"
)

func Run(cfgPath string) error {
	startedAt := time.Now().Unix()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	accessLogger, accessClose, accessColor, err := openAccessLogger(cfg)
	if err != nil {
		return fmt.Errorf("init access log: %w", err)
	}
	if accessClose != nil {
		defer func() { _ = accessClose.Close() }()
	}

	pidCleanup, err := writePIDFile(cfg)
	if err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	if pidCleanup != nil {
		defer func() { _ = pidCleanup.Close() }()
	}

	stores := newStoreProvider(cfg, nil)
	defer func() { _ = stores.Close() }()

	st := &state{stores: stores}
	st.SetStartedAtUnix(startedAt)

	if cfg.Mappings.Backend == config.BackendFS {
		st.catalog = mappingstore.NewCatalog(catalogDir(cfg))
		res, err := st.catalog.Reload(context.Background())
		if err != nil {
			return fmt.Errorf("load mappings dir %q: %w", st.catalog.Dir(), err)
		}
		log.Printf("mappings loaded: dir=%q entries=%d", st.catalog.Dir(), res.Entries)
		logInvalidMappings(st.catalog.Dir(), res.Issues, false)
	}

	installReloadSignalHandler(st)
	autoReloadClose, err := installMappingsAutoReload(cfg, st)
	if err != nil {
		return fmt.Errorf("init mappings auto reload: %w", err)
	}
	if autoReloadClose != nil {
		defer func() { _ = autoReloadClose.Close() }()
	}

	accessFormat, err := logx.ResolveAccessLogFormat(cfg.Logging.AccessLogFormat, cfg.Logging.AccessLogFormatPreset)
	if err != nil {
		return fmt.Errorf("resolve access log format: %w", err)
	}
	if accessFormat == "" {
		accessFormat, _ = logx.ResolveAccessLogFormat("", logx.DefaultAccessLogPreset)
	}
	accessFormatter, err := logx.CompileAccessLogFormat(accessFormat)
	if err != nil {
		return fmt.Errorf("compile access_log_format: %w", err)
	}
	engine := NewRouter(cfg, st, accessLogger, accessColor, "", accessFormatter)

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutMs) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutMs) * time.Millisecond,
	}
	log.Printf("x12-mapper listening on %s", cfg.Server.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

// catalogDir is the directory of the default container on the fs backend.
func catalogDir(cfg *config.Config) string {
	return filepath.Join(cfg.MappingDir(), cfg.Mappings.Container)
}

func openAccessLogger(cfg *config.Config) (*log.Logger, io.Closer, bool, error) {
	if cfg == nil || !cfg.Logging.AccessLog {
		return nil, nil, false, nil
	}

	path := strings.TrimSpace(cfg.Logging.AccessLogPath)
	if path == "" {
		return log.New(os.Stdout, "", 0), nil, logx.ColorEnabled(os.Stdout), nil
	}

	dir := filepath.Dir(path)
	if strings.TrimSpace(dir) != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, false, err
		}
	}
	rot := cfg.Logging.AccessLogRotate
	if rot.Enabled {
		w, err := logx.NewRotateWriter(logx.RotateOptions{
			Path:       path,
			MaxSizeMB:  rot.MaxSizeMB,
			MaxBackups: rot.MaxBackups,
			MaxAgeDays: rot.MaxAgeDays,
			Compress:   rot.Compress,
		})
		if err != nil {
			return nil, nil, false, err
		}
		return log.New(w, "", 0), w, false, nil
	}
	// #nosec G304 -- access_log_path comes from trusted config/env.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, false, err
	}
	return log.New(f, "", 0), f, false, nil
}

type closerFunc func() error

func (c closerFunc) Close() error { return c() }

func writePIDFile(cfg *config.Config) (io.Closer, error) {
	if cfg == nil {
		return nil, nil
	}
	path := strings.TrimSpace(cfg.Server.PidFile)
	if path == "" {
		return nil, nil
	}
	dir := filepath.Dir(path)
	if strings.TrimSpace(dir) != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}

	tmp := path + ".tmp"
	pid := strconv.Itoa(os.Getpid()) + "\n"
	// #nosec G304 -- pid_file comes from trusted config/env.
	if err := os.WriteFile(tmp, []byte(pid), 0o600); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	return closerFunc(func() error { return os.Remove(path) }), nil
}

// ReadPIDFile returns the pid recorded at path.
func ReadPIDFile(path string) (int, error) {
	// #nosec G304 -- pid_file comes from trusted config/env.
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %q", path)
	}
	return pid, nil
}

func installReloadSignalHandler(st *state) {
	if st == nil || st.catalog == nil {
		return
	}
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGHUP)
	go func() {
		for range ch {
			res, err := reloadCatalog(context.Background(), st)
			if err != nil {
				log.Printf("reload failed (signal): %v", err)
				continue
			}
			log.Printf("reload ok (signal): mappings_dir=%q entries=%d changed_mappings=%s", st.catalog.Dir(), res.Entries, mappingNamesForLog(res.Changed))
		}
	}()
}

func reloadCatalog(ctx context.Context, st *state) (mappingstore.ReloadResult, error) {
	if st == nil || st.catalog == nil {
		return mappingstore.ReloadResult{}, errors.New("reload mappings: no catalog")
	}
	st.reloadMu.Lock()
	defer st.reloadMu.Unlock()
	res, err := st.catalog.Reload(ctx)
	if err != nil {
		return mappingstore.ReloadResult{}, fmt.Errorf("reload mappings dir %q: %w", st.catalog.Dir(), err)
	}
	logInvalidMappings(st.catalog.Dir(), res.Issues, true)
	return res, nil
}

func logInvalidMappings(dir string, issues []mappingstore.Issue, reloading bool) {
	if len(issues) == 0 {
		return
	}
	phase := "load"
	if reloading {
		phase = "reload"
	}
	warn := "WARNING"
	if logx.ColorEnabled(os.Stderr) {
		warn = "\x1b[1;33mWARNING\x1b[0m"
	}
	parts := make([]string, 0, len(issues))
	for _, is := range issues {
		parts = append(parts, is.Path+" ("+is.Kind+")")
	}
	log.Printf("%s [mappings/%s] dir=%q invalid_mappings=%s", warn, phase, dir, strings.Join(parts, ", "))
	for _, is := range issues {
		log.Printf("invalid mapping: path=%q kind=%s err=%v", is.Path, is.Kind, is.Err)
	}
}

func mappingNamesForLog(names []string) string {
	if len(names) == 0 {
		return "<none>"
	}
	return strings.Join(names, ",")
}
