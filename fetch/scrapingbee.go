package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	scrapingBeeEndpoint = "https://app.scrapingbee.com/api/v1/"
	maxBodySize         = 10 * 1024 * 1024

	standardCredits = 1
	renderJSCredits = 5
)

// ScrapingBee fetches pages through the ScrapingBee proxy API.
type ScrapingBee struct {
	apiKey   string
	client   *http.Client
	endpoint string
}

func NewScrapingBee(apiKey string, client *http.Client) *ScrapingBee {
	if client == nil {
		client = http.DefaultClient
	}
	return &ScrapingBee{
		apiKey:   apiKey,
		client:   client,
		endpoint: scrapingBeeEndpoint,
	}
}

// WithEndpoint points the fetcher at a different API base.
func (s *ScrapingBee) WithEndpoint(endpoint string) *ScrapingBee {
	s.endpoint = endpoint
	return s
}

func (s *ScrapingBee) Fetch(ctx context.Context, target string, renderJS bool) (*Response, error) {
	params := url.Values{}
	params.Set("api_key", s.apiKey)
	params.Set("url", target)
	params.Set("render_js", strconv.FormatBool(renderJS))
	params.Set("premium_proxy", "false")
	params.Set("country_code", "us")

	req, err := http.NewRequestWithContext(ctx, "GET", s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrapingbee: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	credits := creditsFor(resp.Header, renderJS)
	if resp.StatusCode >= 400 {
		return nil, &HTTPError{Code: resp.StatusCode, Body: snippet(body), Credits: credits}
	}

	return &Response{StatusCode: resp.StatusCode, Body: body, Credits: credits}, nil
}

// creditsFor prefers the cost ScrapingBee reports and falls back to the
// published price list.
func creditsFor(h http.Header, renderJS bool) int {
	if cost := strings.TrimSpace(h.Get("Spb-Cost")); cost != "" {
		if n, err := strconv.Atoi(cost); err == nil && n >= 0 {
			return n
		}
	}
	if renderJS {
		return renderJSCredits
	}
	return standardCredits
}
