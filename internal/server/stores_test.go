package server

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r9s-ai/x12-mapper/internal/config"
	"github.com/r9s-ai/x12-mapper/pkg/mappingstore"
	"github.com/r9s-ai/x12-mapper/pkg/maperr"
)

func TestStoreProvider_FSCachesContainer(t *testing.T) {
	dir := t.TempDir()
	writeTestMapping(t, dir, "x12-mappings/mapping/standards/850.json", standard850)
	cfg := config.Default()
	cfg.Mappings.Dir = dir

	p := newStoreProvider(cfg, nil)
	defer func() { _ = p.Close() }()

	a, err := p.forContainer("x12-mappings")
	require.NoError(t, err)
	b, err := p.forContainer("/x12-mappings/")
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = p.forContainer("nope")
	assert.True(t, errors.Is(err, maperr.ErrNotFound), "err=%v", err)

	for _, bad := range []string{"", "a/b", "..", "../x"} {
		_, err := p.forContainer(bad)
		assert.True(t, errors.Is(err, maperr.ErrInput), "container %q: err=%v", bad, err)
	}
	require.NoError(t, p.Close())
}

func TestStoreProvider_HTTPContainer(t *testing.T) {
	cfg := config.Default()
	cfg.Mappings.Backend = config.BackendHTTP
	cfg.Mappings.Remote.BaseURL = "https://acct.blob.core.windows.net/"
	cfg.Mappings.Remote.Query = "sv=1&sig=x"
	cfg.Mappings.Remote.Headers = map[string]string{"x-ms-version": "2024-05-04"}

	p := newStoreProvider(cfg, nil)
	s, err := p.forContainer("edi")
	require.NoError(t, err)
	hs, ok := s.(*mappingstore.HTTPStore)
	require.True(t, ok, "got %T", s)
	assert.Equal(t, "https://acct.blob.core.windows.net/edi", hs.BaseURL)
	assert.Equal(t, "sv=1&sig=x", hs.Query)
	assert.Equal(t, "2024-05-04", hs.Header.Get("x-ms-version"))
	assert.NotNil(t, hs.Client)
}

func TestStoreProvider_Blob(t *testing.T) {
	cfg := config.Default()
	cfg.Mappings.Remote.BaseURL = "https://acct.blob.core.windows.net/"
	cfg.Mappings.Remote.Query = "configured=1"
	cfg.Mappings.Remote.Headers = map[string]string{"Authorization": "Bearer t"}
	p := newStoreProvider(cfg, nil)

	s, err := p.forBlob(mappingstore.BlobLocation{ContainerURL: "https://h/c", Container: "c", BlobPath: "a.json", SAS: "sig=1"})
	require.NoError(t, err)
	withSAS := s.(*mappingstore.HTTPStore)
	assert.Equal(t, "https://h/c", withSAS.BaseURL)
	assert.Equal(t, "sig=1", withSAS.Query)
	assert.Empty(t, withSAS.Header)

	s, err = p.forBlob(mappingstore.BlobLocation{ContainerURL: "https://attacker.example/c", Container: "c", BlobPath: "a.json"})
	require.NoError(t, err)
	noSAS := s.(*mappingstore.HTTPStore)
	assert.Equal(t, "https://acct.blob.core.windows.net/c", noSAS.BaseURL)
	assert.Equal(t, "configured=1", noSAS.Query)
	assert.Equal(t, "Bearer t", noSAS.Header.Get("Authorization"))

	_, err = p.forBlob(mappingstore.BlobLocation{ContainerURL: "https://h/..", Container: "..", BlobPath: "a.json"})
	assert.ErrorIs(t, err, maperr.ErrInput)
}

func TestStoreProvider_BlobWithoutSASNeedsRemote(t *testing.T) {
	cfg := config.Default()
	cfg.Mappings.Remote.Query = "configured=1"
	p := newStoreProvider(cfg, nil)

	_, err := p.forBlob(mappingstore.BlobLocation{ContainerURL: "https://attacker.example/c", Container: "c", BlobPath: "a.json"})
	assert.ErrorIs(t, err, maperr.ErrInput)
	assert.Contains(t, err.Error(), "SAS")
}
