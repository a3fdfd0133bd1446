package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/r9s-ai/x12-mapper/internal/config"
	"github.com/r9s-ai/x12-mapper/pkg/httpclient"
	"github.com/r9s-ai/x12-mapper/pkg/mapping"
	"github.com/r9s-ai/x12-mapper/pkg/mappingstore"
	"github.com/r9s-ai/x12-mapper/pkg/maperr"
)

// storeProvider hands out the mapping store for a container. Filesystem
// containers are subdirectories of mappings.dir and are opened once; remote
// containers are addressed as <remote.base_url>/<container>.
type storeProvider struct {
	cfg    *config.Config
	client httpclient.HTTPDoer

	mu sync.Mutex
	fs map[string]*mappingstore.FSStore
}

func newStoreProvider(cfg *config.Config, client httpclient.HTTPDoer) *storeProvider {
	if client == nil {
		client = httpclient.New(httpclient.Options{
			Timeout:  remoteTimeout(cfg),
			ProxyURL: cfg.Mappings.Remote.ProxyURL,
			NoProxy:  cfg.Mappings.Remote.NoProxy,
		})
	}
	return &storeProvider{cfg: cfg, client: client, fs: map[string]*mappingstore.FSStore{}}
}

func remoteTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Mappings.Remote.TimeoutMs) * time.Millisecond
}

func (p *storeProvider) remoteHeader() http.Header {
	h := http.Header{}
	for k, v := range p.cfg.Mappings.Remote.Headers {
		h.Set(k, v)
	}
	return h
}

// forContainer returns the configured backend's store for container.
func (p *storeProvider) forContainer(container string) (mapping.Store, error) {
	container, err := cleanContainer("mappingContainer", container)
	if err != nil {
		return nil, err
	}
	if p.cfg.Mappings.Backend == config.BackendHTTP {
		return p.remoteStore(container), nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.fs[container]; ok {
		return s, nil
	}
	s, err := mappingstore.OpenFS(filepath.Join(p.cfg.MappingDir(), container))
	if err != nil {
		return nil, &maperr.NotFoundError{Path: container, Cause: err}
	}
	p.fs[container] = s
	return s, nil
}

// remoteStore addresses container on the configured remote account with the
// configured credentials.
func (p *storeProvider) remoteStore(container string) *mappingstore.HTTPStore {
	return &mappingstore.HTTPStore{
		BaseURL: strings.TrimRight(p.cfg.Mappings.Remote.BaseURL, "/") + "/" + container,
		Query:   p.cfg.Mappings.Remote.Query,
		Header:  p.remoteHeader(),
		Timeout: remoteTimeout(p.cfg),
		Client:  p.client,
	}
}

// forBlob returns a store for a caller supplied blob URL. A URL carrying a
// SAS query is fetched as given with no configured credentials. Without a
// SAS only the container and blob path are taken from the URL; the request
// goes to the configured remote account, never to the caller's host.
func (p *storeProvider) forBlob(loc mappingstore.BlobLocation) (mapping.Store, error) {
	if loc.SAS != "" {
		return &mappingstore.HTTPStore{
			BaseURL: loc.ContainerURL,
			Query:   loc.SAS,
			Timeout: remoteTimeout(p.cfg),
			Client:  p.client,
		}, nil
	}
	if strings.TrimSpace(p.cfg.Mappings.Remote.BaseURL) == "" {
		return nil, maperr.Input("mappingBlobUrl", "must carry a SAS token when no remote mapping store is configured.")
	}
	container, err := cleanContainer("mappingBlobUrl", loc.Container)
	if err != nil {
		return nil, err
	}
	return p.remoteStore(container), nil
}

func cleanContainer(field, container string) (string, error) {
	container = strings.Trim(strings.TrimSpace(container), "/")
	if container == "" || strings.Contains(container, "/") || !filepath.IsLocal(container) {
		return "", maperr.Input(field, "container must be a single path element")
	}
	return container, nil
}

func (p *storeProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for name, s := range p.fs {
		errs = append(errs, s.Close())
		delete(p.fs, name)
	}
	return errors.Join(errs...)
}
