package server

import (
	"sync"
	"sync/atomic"

	"github.com/r9s-ai/x12-mapper/pkg/mappingstore"
)

type state struct {
	stores  *storeProvider
	catalog *mappingstore.Catalog
	// reloadMu serializes catalog reloads from SIGHUP, fsnotify and the admin API.
	reloadMu sync.Mutex

	startedAtUnix atomic.Int64
}

func (s *state) SetStartedAtUnix(ts int64) {
	if s == nil {
		return
	}
	s.startedAtUnix.Store(ts)
}

func (s *state) StartedAtUnix() int64 {
	if s == nil {
		return 0
	}
	return s.startedAtUnix.Load()
}
