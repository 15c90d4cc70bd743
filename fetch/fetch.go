// Package fetch holds the collaborators that retrieve raw page markup for
// the scraper. Fetchers never render JavaScript for the core pipeline.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"streeteasy_scraper/httputil"
)

const (
	ModeScrapingBee = "scrapingbee"
	ModeDirect      = "direct"
)

// Response is a successful page fetch.
type Response struct {
	StatusCode int
	Body       []byte
	Credits    int // API credits this call consumed
}

type Fetcher interface {
	Fetch(ctx context.Context, target string, renderJS bool) (*Response, error)
}

// Factory builds a Fetcher bound to one API credential. Each search
// invocation gets its own Fetcher.
type Factory func(credential string) Fetcher

// HTTPError is returned when the upstream answered with a status >= 400.
type HTTPError struct {
	Code    int
	Body    string
	Credits int
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http error %d", e.Code)
	}
	return fmt.Sprintf("http error %d: %s", e.Code, e.Body)
}

// IsForbidden reports whether err is an upstream 403.
func IsForbidden(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Code == http.StatusForbidden
}

// Usage counts calls and credits for a single invocation.
type Usage struct {
	Calls   int `json:"calls"`
	Credits int `json:"credits"`
}

// Record accounts for one fetch attempt. Attempts that never reached the
// upstream (network errors) are not counted.
func (u *Usage) Record(resp *Response, err error) {
	if resp != nil {
		u.Calls++
		u.Credits += resp.Credits
		return
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		u.Calls++
		u.Credits += httpErr.Credits
	}
}

func (u *Usage) Add(other Usage) {
	u.Calls += other.Calls
	u.Credits += other.Credits
}

// NewFactory returns the Factory for the configured fetch mode.
func NewFactory(mode string, clients *httputil.Clients) (Factory, error) {
	switch mode {
	case "", ModeScrapingBee:
		return func(credential string) Fetcher {
			return NewScrapingBee(credential, clients.API)
		}, nil
	case ModeDirect:
		direct := NewDirectFetcher(clients.Scraping)
		return func(string) Fetcher { return direct }, nil
	default:
		return nil, fmt.Errorf("unknown fetch mode: %s", mode)
	}
}

func snippet(body []byte) string {
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
