package logx

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

const archiveTimeLayout = "20060102-150405.000000000"

// RotateOptions configures a RotateWriter.
type RotateOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	// MaxAgeDays of 0 keeps archives regardless of age.
	MaxAgeDays int
	Compress   bool
	Now        func() time.Time
}

func (o RotateOptions) validate() error {
	switch {
	case strings.TrimSpace(o.Path) == "":
		return errors.New("access log rotate path is empty")
	case o.MaxSizeMB <= 0:
		return errors.New("max_size_mb must be > 0")
	case o.MaxBackups <= 0:
		return errors.New("max_backups must be > 0")
	case o.MaxAgeDays < 0:
		return errors.New("max_age_days must be >= 0")
	}
	return nil
}

// RotateWriter is an append-only log file that is archived as
// <path>.<timestamp>[.gz] when it would exceed MaxSizeMB or when the local
// day changes. It is safe for concurrent use.
type RotateWriter struct {
	mu   sync.Mutex
	opts RotateOptions
	dir  string

	f      *os.File
	size   int64
	day    string
	closed bool
}

func NewRotateWriter(opts RotateOptions) (*RotateWriter, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.Path = strings.TrimSpace(opts.Path)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	dir := filepath.Dir(opts.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}
	w := &RotateWriter{opts: opts, dir: dir}
	if err := w.openLocked(opts.Now()); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotateWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, os.ErrClosed
	}
	now := w.opts.Now()
	overflow := w.size > 0 && w.size+int64(len(p)) > int64(w.opts.MaxSizeMB)<<20
	if overflow || dayKey(now) != w.day {
		if err := w.rotateLocked(now); err != nil {
			return 0, err
		}
	}
	if w.f == nil {
		return 0, errors.New("access log writer is not initialized")
	}
	n, err := w.f.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotateWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func (w *RotateWriter) openLocked(now time.Time) error {
	f, err := os.OpenFile(w.opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.size = st.Size()
	w.day = dayKey(now)
	return nil
}

func (w *RotateWriter) rotateLocked(now time.Time) error {
	if w.f != nil {
		if err := w.f.Close(); err != nil {
			return err
		}
		w.f = nil
	}

	archive := fmt.Sprintf("%s.%s", w.opts.Path, now.In(time.Local).Format(archiveTimeLayout))
	if err := os.Rename(w.opts.Path, archive); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			if openErr := w.openLocked(now); openErr != nil {
				return openErr
			}
			return err
		}
	} else if w.opts.Compress {
		if err := gzipFile(archive); err != nil {
			return err
		}
	}

	if err := w.openLocked(now); err != nil {
		return err
	}
	w.pruneLocked(now)
	return nil
}

type archiveFile struct {
	path string
	when time.Time
}

// pruneLocked keeps the newest MaxBackups archives and drops any older
// than MaxAgeDays. Failures are ignored; the active file is unaffected.
func (w *RotateWriter) pruneLocked(now time.Time) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	prefix := filepath.Base(w.opts.Path) + "."
	var archives []archiveFile
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasPrefix(ent.Name(), prefix) {
			continue
		}
		ts := strings.TrimSuffix(strings.TrimPrefix(ent.Name(), prefix), ".gz")
		when, err := time.ParseInLocation(archiveTimeLayout, ts, time.Local)
		if err != nil {
			continue
		}
		archives = append(archives, archiveFile{path: filepath.Join(w.dir, ent.Name()), when: when})
	}
	slices.SortFunc(archives, func(a, b archiveFile) int { return b.when.Compare(a.when) })

	var cutoff time.Time
	if w.opts.MaxAgeDays > 0 {
		cutoff = now.AddDate(0, 0, -w.opts.MaxAgeDays)
	}
	for i, a := range archives {
		if i >= w.opts.MaxBackups || (!cutoff.IsZero() && a.when.Before(cutoff)) {
			_ = os.Remove(a.path)
		}
	}
}

func gzipFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	tmp := path + ".gz.tmp"
	dst, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(dst)
	_, copyErr := io.Copy(gz, src)
	if err := errors.Join(copyErr, gz.Close(), dst.Close()); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path+".gz"); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Remove(path)
}

func dayKey(ts time.Time) string {
	return ts.In(time.Local).Format("20060102")
}
