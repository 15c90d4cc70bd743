package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"

	"streeteasy_scraper/config"
)

type Clients struct {
	Scraping *http.Client // proxied, for direct fetches against the target site
	API      *http.Client // direct, for the ScrapingBee API
}

func NewClients(fetchCfg *config.FetchConfig) *Clients {
	transport := &http.Transport{
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}
	if fetchCfg.ProxyURL != "" {
		if proxyURL, err := url.Parse(fetchCfg.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	scraping := &http.Client{
		Timeout:   fetchCfg.Timeout,
		Transport: transport,
	}

	apiTimeout := fetchCfg.APITimeout
	if apiTimeout <= 0 {
		apiTimeout = 90 * time.Second
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: apiTimeout},
	}
}
