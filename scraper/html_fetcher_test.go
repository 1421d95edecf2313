package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairval/apperrors"
)

// localFetcher skips the dial guard so tests can reach httptest servers on
// loopback. Redirects are still checked.
func localFetcher() *HTMLFetcher {
	f := NewHTMLFetcher(time.Second)
	f.client = &http.Client{CheckRedirect: checkRedirect}
	return f
}

func TestHTMLFetcherSendsBrowserHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Chrome/120")
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		assert.Equal(t, "en-US,en;q=0.5", r.Header.Get("Accept-Language"))
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	html, err := localFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", html)
}

func TestHTMLFetcherRetriesNon2xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("second"))
	}))
	defer srv.Close()

	fetcher := localFetcher()
	fetcher.Retry.BaseDelay = time.Millisecond

	html, err := fetcher.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "second", html)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTMLFetcherGivesUpAfterTwoAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	fetcher := localFetcher()
	fetcher.Retry.BaseDelay = time.Millisecond

	_, err := fetcher.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 403")
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTMLFetcherRefusesPrivateAddresses(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	fetcher := NewHTMLFetcher(time.Second)
	fetcher.Retry.BaseDelay = time.Millisecond

	_, err := fetcher.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestHTMLFetcherRefusesPrivateRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://169.254.169.254/latest/meta-data/", http.StatusFound)
	}))
	defer srv.Close()

	fetcher := localFetcher()
	fetcher.Retry.MaxRetries = 1

	_, err := fetcher.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Contains(t, err.Error(), "redirect")
}

func TestCheckRedirect(t *testing.T) {
	public := httptest.NewRequest(http.MethodGet, "https://www.target.com/p/kettle", nil)
	assert.NoError(t, checkRedirect(public, nil))

	local := httptest.NewRequest(http.MethodGet, "http://localhost:8080/admin", nil)
	assert.ErrorIs(t, checkRedirect(local, nil), apperrors.ErrValidation)

	via := make([]*http.Request, maxRedirects)
	assert.ErrorContains(t, checkRedirect(public, via), "stopped after 10 redirects")
}
