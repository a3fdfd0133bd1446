package mappingstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/r9s-ai/x12-mapper/pkg/httpclient"
	"github.com/r9s-ai/x12-mapper/pkg/mapping"
	"github.com/r9s-ai/x12-mapper/pkg/maperr"
)

const maxRemoteDocumentBytes = 8 << 20

// HTTPStore reads mapping documents from blob-style object storage: every
// path is fetched with GET <BaseURL>/<path>?<Query>.
type HTTPStore struct {
	// BaseURL addresses the container, e.g. https://acct.blob.core.windows.net/x12-mappings.
	BaseURL string
	// Query is appended to every request, typically a SAS token.
	Query string
	// Header is sent with every request.
	Header http.Header
	// Timeout bounds each fetch; zero leaves it to the client and context.
	Timeout time.Duration
	Client  httpclient.HTTPDoer
}

func (s *HTTPStore) FetchJSON(ctx context.Context, p string) (*mapping.Document, error) {
	u, err := s.documentURL(p)
	if err != nil {
		return nil, err
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	for k, vals := range s.Header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &maperr.NotFoundError{Path: p, Cause: fmt.Errorf("GET %s: status %d", redactQuery(u), resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("GET %s: status %d: %s", redactQuery(u), resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", redactQuery(u), err)
	}
	if len(body) > maxRemoteDocumentBytes {
		return nil, &maperr.MappingError{Path: p, Cause: fmt.Errorf("document exceeds %d bytes", maxRemoteDocumentBytes)}
	}
	return mapping.Decode(p, body)
}

func (s *HTTPStore) documentURL(p string) (string, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(s.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("invalid mapping store base url %q", s.BaseURL)
	}
	name, ok := localStorePath(p)
	if !ok {
		return "", &maperr.NotFoundError{Path: p}
	}
	segs := strings.Split(name, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	out := base.String() + "/" + strings.Join(segs, "/")
	if q := strings.TrimLeft(strings.TrimSpace(s.Query), "?"); q != "" {
		out += "?" + q
	}
	return out, nil
}

// BlobLocation is a mapping document addressed by a full blob URL.
type BlobLocation struct {
	// ContainerURL is scheme://host/container.
	ContainerURL string
	// Container is the first path element of the URL.
	Container string
	// BlobPath is the document path inside the container.
	BlobPath string
	// SAS is the raw query string, empty when the URL carries none.
	SAS string
}

// ParseBlobURL splits https://host/container/path/to/doc.json?sas into its
// container URL, blob path and SAS query.
func ParseBlobURL(raw string) (BlobLocation, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return BlobLocation{}, maperr.Input("mappingBlobUrl", "must be an absolute URL")
	}
	p := strings.TrimLeft(u.Path, "/")
	container, blobPath, _ := strings.Cut(p, "/")
	if container == "" || blobPath == "" {
		return BlobLocation{}, maperr.Input("mappingBlobUrl", "must include a container and blob path.")
	}
	return BlobLocation{
		ContainerURL: u.Scheme + "://" + u.Host + "/" + container,
		Container:    container,
		BlobPath:     blobPath,
		SAS:          u.RawQuery,
	}, nil
}

func redactQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i] + "?<redacted>"
	}
	return u
}

var _ mapping.Store = (*HTTPStore)(nil)
