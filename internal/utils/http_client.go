package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"
)

// HTTPClient is a configurable HTTP client shared by the providers
type HTTPClient struct {
	client    *http.Client
	transport *http.Transport
	userAgent string
	logger    zerolog.Logger
}

// ClientConfig represents HTTP client configuration
type ClientConfig struct {
	Timeout         time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	ProxyURL        string
	UserAgent       string
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// NewHTTPClient creates a new HTTP client with the given configuration
func NewHTTPClient(config ClientConfig) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
		MaxIdleConnsPerHost: 10,
	}

	if config.ProxyURL != "" {
		proxyURL, err := url.Parse(config.ProxyURL)
		if err == nil {
			switch proxyURL.Scheme {
			case "http", "https":
				transport.Proxy = http.ProxyURL(proxyURL)
			case "socks5":
				dialer, err := proxy.FromURL(proxyURL, proxy.Direct)
				if err == nil {
					transport.DialContext = dialer.(proxy.ContextDialer).DialContext
				}
			}
		}
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		transport: transport,
		userAgent: userAgent,
		logger:    zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// Get performs a GET request with custom headers
func (c *HTTPClient) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	return c.Do(req, headers)
}

// Post performs a POST request with the given body and headers
func (c *HTTPClient) Post(ctx context.Context, url, contentType string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.Do(req, headers)
}

// Do performs an HTTP request with custom headers
func (c *HTTPClient) Do(req *http.Request, headers map[string]string) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("Making HTTP request")

	return c.client.Do(req)
}

// Close closes idle connections held by the client
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// BuildURL builds a URL with query parameters
func BuildURL(baseURL string, params map[string]string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}

	q := u.Query()
	for key, value := range params {
		q.Set(key, value)
	}
	u.RawQuery = q.Encode()

	return u.String()
}
