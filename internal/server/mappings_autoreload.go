package server

import (
	"context"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/r9s-ai/x12-mapper/internal/config"
	"github.com/r9s-ai/x12-mapper/pkg/mappingstore"
)

func installMappingsAutoReload(cfg *config.Config, st *state) (io.Closer, error) {
	if cfg == nil || st == nil || st.catalog == nil {
		return nil, nil
	}
	if !cfg.Mappings.AutoReload.Enabled {
		return nil, nil
	}
	dir := st.catalog.Dir()
	debounce := time.Duration(cfg.Mappings.AutoReload.DebounceMs) * time.Millisecond

	closer, err := watchMappingsDir(dir, debounce, func() {
		res, err := reloadCatalog(context.Background(), st)
		if err != nil {
			log.Printf("reload failed (mappings auto): %v", err)
			return
		}
		log.Printf("reload ok (mappings auto): mappings_dir=%q entries=%d changed_mappings=%s", dir, res.Entries, mappingNamesForLog(res.Changed))
	})
	if err != nil {
		return nil, err
	}
	log.Printf("mappings auto-reload enabled: dir=%q debounce_ms=%d", dir, cfg.Mappings.AutoReload.DebounceMs)
	return closer, nil
}

// watchMappingsDir calls reload once per burst of relevant changes under
// dir, after debounce has passed without further events.
func watchMappingsDir(dir string, debounce time.Duration, reload func()) (io.Closer, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addWatchRecursive(watcher, dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	triggerCh := make(chan struct{}, 1)

	go func() {
		defer close(doneCh)
		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		resetTimer := func() {
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
				return
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)
			timerC = timer.C
		}

		for {
			select {
			case <-stopCh:
				if timer != nil {
					timer.Stop()
				}
				return
			case <-timerC:
				timerC = nil
				reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("mappings auto-reload watcher error: %v", err)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if evt.Op&fsnotify.Create != 0 {
					if fi, statErr := os.Stat(evt.Name); statErr == nil && fi.IsDir() {
						if addErr := addWatchRecursive(watcher, evt.Name); addErr != nil {
							log.Printf("mappings auto-reload add watch failed: path=%q err=%v", evt.Name, addErr)
						}
					}
				}
				if shouldTriggerMappingReload(evt) {
					select {
					case triggerCh <- struct{}{}:
					default:
					}
				}
			case <-triggerCh:
				resetTimer()
			}
		}
	}()

	return closerFunc(func() error {
		close(stopCh)
		_ = watcher.Close()
		<-doneCh
		return nil
	}), nil
}

// shouldTriggerMappingReload accepts changes to mapping documents and to
// extensionless names, which covers directories being added or removed.
func shouldTriggerMappingReload(evt fsnotify.Event) bool {
	if strings.TrimSpace(evt.Name) == "" {
		return false
	}
	if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename|fsnotify.Chmod) == 0 {
		return false
	}
	base := filepath.Base(evt.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return filepath.Ext(base) == "" || mappingstore.IsMappingFile(base)
}

func addWatchRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
