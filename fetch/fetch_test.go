package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrapingBeeParams(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		got = map[string]string{
			"api_key":       q.Get("api_key"),
			"url":           q.Get("url"),
			"render_js":     q.Get("render_js"),
			"premium_proxy": q.Get("premium_proxy"),
			"country_code":  q.Get("country_code"),
		}
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	sb := NewScrapingBee("key-123", srv.Client()).WithEndpoint(srv.URL + "/")
	resp, err := sb.Fetch(context.Background(), "https://streeteasy.com/for-sale/nyc?page=2", false)
	require.NoError(t, err)

	assert.Equal(t, "<html>ok</html>", string(resp.Body))
	assert.Equal(t, 1, resp.Credits)
	assert.Equal(t, map[string]string{
		"api_key":       "key-123",
		"url":           "https://streeteasy.com/for-sale/nyc?page=2",
		"render_js":     "false",
		"premium_proxy": "false",
		"country_code":  "us",
	}, got)
}

func TestScrapingBeeCredits(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		renderJS bool
		want     int
	}{
		{"default", "", false, 1},
		{"js", "", true, 5},
		{"reported", "10", false, 10},
		{"garbage header", "abc", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Spb-Cost", tt.header)
			}
			assert.Equal(t, tt.want, creditsFor(h, tt.renderJS))
		})
	}
}

func TestScrapingBeeForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("out of credits"))
	}))
	defer srv.Close()

	sb := NewScrapingBee("k", srv.Client()).WithEndpoint(srv.URL + "/")
	resp, err := sb.Fetch(context.Background(), "https://example.com", false)
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.True(t, IsForbidden(err))

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, "out of credits", httpErr.Body)
	assert.Equal(t, 1, httpErr.Credits)
}

func TestUsageRecord(t *testing.T) {
	var u Usage
	u.Record(&Response{Credits: 1}, nil)
	u.Record(nil, &HTTPError{Code: 500, Credits: 1})
	u.Record(nil, errors.New("dial tcp: refused"))
	assert.Equal(t, Usage{Calls: 2, Credits: 2}, u)

	u.Add(Usage{Calls: 3, Credits: 15})
	assert.Equal(t, Usage{Calls: 5, Credits: 17}, u)
}

func TestIsForbidden(t *testing.T) {
	assert.True(t, IsForbidden(&HTTPError{Code: 403}))
	assert.False(t, IsForbidden(&HTTPError{Code: 404}))
	assert.False(t, IsForbidden(errors.New("403")))
}

func TestDirectFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html><body>listing</body></html>"))
		case "/blocked":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	d := NewDirectFetcher(srv.Client())

	resp, err := d.Fetch(context.Background(), srv.URL+"/ok", false)
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body), "listing")
	assert.Equal(t, 0, resp.Credits)

	_, err = d.Fetch(context.Background(), srv.URL+"/blocked", false)
	assert.True(t, IsForbidden(err))

	_, err = d.Fetch(context.Background(), srv.URL+"/broken", false)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 500, httpErr.Code)

	_, err = d.Fetch(context.Background(), srv.URL+"/ok", true)
	assert.ErrorIs(t, err, ErrRenderUnsupported)
}

func TestNewFactory(t *testing.T) {
	_, err := NewFactory("carrier-pigeon", nil)
	assert.Error(t, err)
}
