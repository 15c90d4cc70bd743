package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gocolly/colly/v2"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var ErrRenderUnsupported = errors.New("direct fetcher cannot render javascript")

// DirectFetcher requests pages straight from the target site with a colly
// collector. It consumes no API credits.
type DirectFetcher struct {
	collector *colly.Collector
}

func NewDirectFetcher(client *http.Client) *DirectFetcher {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	if client != nil {
		if client.Transport != nil {
			c.WithTransport(client.Transport)
		}
		if client.Timeout > 0 {
			c.SetRequestTimeout(client.Timeout)
		}
	}
	return &DirectFetcher{collector: c}
}

func (d *DirectFetcher) Fetch(ctx context.Context, target string, renderJS bool) (*Response, error) {
	if renderJS {
		return nil, ErrRenderUnsupported
	}

	c := d.collector.Clone()
	c.Context = ctx

	var (
		resp       *Response
		failStatus int
		failBody   []byte
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})
	c.OnResponse(func(r *colly.Response) {
		resp = &Response{StatusCode: r.StatusCode, Body: r.Body}
	})
	c.OnError(func(r *colly.Response, err error) {
		failStatus = r.StatusCode
		failBody = r.Body
	})

	err := c.Visit(target)
	if failStatus >= 400 {
		return nil, &HTTPError{Code: failStatus, Body: snippet(failBody)}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("fetch %s: no response", target)
	}
	return resp, nil
}
