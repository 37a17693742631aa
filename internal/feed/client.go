package feed

import (
	"net/http"
	"time"

	"github.com/samhoang/myrepo/internal/config"
)

// RequestTimeout bounds each feed request
const RequestTimeout = 10 * time.Second

// NewHTTPClient builds a client that routes through proxy when set
func NewHTTPClient(proxy config.Proxy, timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	proxyURL, err := proxy.URL()
	if err != nil {
		return nil, err
	}
	if proxyURL != nil {
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}
