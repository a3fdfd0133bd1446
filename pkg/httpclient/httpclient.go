package httpclient

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http/httpproxy"
)

// HTTPDoer captures the subset of *http.Client the remote mapping store
// relies on. Tests inject fakes so no request leaves the process.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures New.
type Options struct {
	Timeout time.Duration
	// ProxyURL forces every request through this proxy. When empty the
	// standard HTTP_PROXY/HTTPS_PROXY/NO_PROXY environment is honored.
	ProxyURL string
	// NoProxy is a comma separated host list bypassing ProxyURL.
	NoProxy string
}

// New builds an *http.Client whose proxy selection goes through httpproxy.
func New(opts Options) *http.Client {
	var cfg *httpproxy.Config
	if p := strings.TrimSpace(opts.ProxyURL); p != "" {
		cfg = &httpproxy.Config{
			HTTPProxy:  p,
			HTTPSProxy: p,
			NoProxy:    strings.TrimSpace(opts.NoProxy),
		}
	} else {
		cfg = httpproxy.FromEnvironment()
	}
	proxyFunc := cfg.ProxyFunc()

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = func(req *http.Request) (*url.URL, error) {
		return proxyFunc(req.URL)
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}
}
