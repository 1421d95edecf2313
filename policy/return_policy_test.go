package policy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairval/ai"
	"fairval/apperrors"
)

type stubFetcher struct {
	html string
	err  error
	urls []string
}

func (f *stubFetcher) Fetch(_ context.Context, rawURL string) (string, error) {
	f.urls = append(f.urls, rawURL)
	return f.html, f.err
}

func allowAll(raw string) (*url.URL, error) { return url.Parse(raw) }

func newTestScraper(fetcher *stubFetcher, model ai.Model) *Scraper {
	s := NewScraper(fetcher, model, "sonnet")
	s.Retry.BaseDelay = time.Millisecond
	return s
}

func TestFindPolicyURLFromModel(t *testing.T) {
	s := newTestScraper(&stubFetcher{}, ai.ModelFunc(func(context.Context, ai.Request) (string, error) {
		return "  https://www.target.com/help/returns \n", nil
	}))

	got, err := s.FindPolicyURL(context.Background(), "Target", "target.com")
	require.NoError(t, err)
	assert.Equal(t, "https://www.target.com/help/returns", got)
}

func TestFindPolicyURLProbesCommonPaths(t *testing.T) {
	var probed []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		probed = append(probed, r.URL.Path)
		if r.URL.Path == "/returns-exchanges" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := newTestScraper(&stubFetcher{}, ai.ModelFunc(func(context.Context, ai.Request) (string, error) {
		return "I'm not sure which page that is.", nil
	}))
	s.scheme = "http"
	s.validateURL = allowAll
	s.client = srv.Client()

	host := strings.TrimPrefix(srv.URL, "http://")
	got, err := s.FindPolicyURL(context.Background(), "Shop", host)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/returns-exchanges", got)
	assert.Equal(t, []string{"/returns", "/return-policy", "/returns-exchanges"}, probed)
}

func TestFindPolicyURLSkipsPrivateAddresses(t *testing.T) {
	var probed []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probed = append(probed, r.URL.Path)
	}))
	defer srv.Close()

	s := newTestScraper(&stubFetcher{}, ai.ModelFunc(func(context.Context, ai.Request) (string, error) {
		return "no idea", nil
	}))
	s.scheme = "http"
	s.validateURL = allowAll

	_, err := s.FindPolicyURL(context.Background(), "Shop", strings.TrimPrefix(srv.URL, "http://"))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, probed)
}

func TestFindPolicyURLRejectsPrivateAnswers(t *testing.T) {
	s := newTestScraper(&stubFetcher{}, ai.ModelFunc(func(context.Context, ai.Request) (string, error) {
		return "http://127.0.0.1/returns", nil
	}))

	_, err := s.FindPolicyURL(context.Background(), "Shop", "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestExtractPolicyAppliesDefaults(t *testing.T) {
	fetcher := &stubFetcher{html: `<main><h1>Returns</h1><p>` + strings.Repeat("Items may be returned. ", 40) + `</p></main>`}
	var prompt string
	s := newTestScraper(fetcher, ai.ModelFunc(func(_ context.Context, req ai.Request) (string, error) {
		prompt = req.Prompt
		return "```json\n{\"policy_text\":\"Return unopened items.\",\"return_days\":0,\"has_price_match\":false,\"price_match_days\":14}\n```", nil
	}))

	result, err := s.ExtractPolicy(context.Background(), "https://shop.example/returns", "Shop")
	require.NoError(t, err)
	assert.Equal(t, "Return unopened items.", result.PolicyText)
	assert.Equal(t, 30, result.ReturnDays)
	assert.Equal(t, 0, result.PriceMatchDays)
	assert.Equal(t, 0.5, result.Confidence)
	assert.Equal(t, "https://shop.example/returns", result.PolicyURL)

	assert.Contains(t, prompt, "Items may be returned.")
	assert.NotContains(t, prompt, "<main>")
}

func TestExtractPolicyFetchFailure(t *testing.T) {
	calls := 0
	s := newTestScraper(&stubFetcher{err: errors.New("HTTP 404")}, ai.ModelFunc(func(context.Context, ai.Request) (string, error) {
		calls++
		return "", nil
	}))

	_, err := s.ExtractPolicy(context.Background(), "https://shop.example/returns", "Shop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
	assert.Equal(t, 0, calls)
}

func TestScrapeReturnPolicy(t *testing.T) {
	fetcher := &stubFetcher{html: `<article>` + strings.Repeat("You have 90 days to return. Price match within 14 days. ", 12) + `</article>`}
	calls := 0
	s := newTestScraper(fetcher, ai.ModelFunc(func(_ context.Context, req ai.Request) (string, error) {
		calls++
		if calls == 1 {
			return "https://www.bestbuy.com/site/help-topics/return-exchange-policy", nil
		}
		return `{"policy_text":"90 day returns.","return_days":90,"has_price_match":true,"price_match_days":14,"confidence":0.9}`, nil
	}))
	s.now = func() time.Time { return time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC) }

	result, err := s.ScrapeReturnPolicy(context.Background(), "Best Buy", "www.bestbuy.com")
	require.NoError(t, err)
	assert.Equal(t, "Best Buy", result.MerchantName)
	assert.Equal(t, "bestbuy.com", result.MerchantDomain)
	assert.Equal(t, 90, result.ReturnDays)
	assert.True(t, result.HasPriceMatch)
	assert.Equal(t, 14, result.PriceMatchDays)
	assert.Equal(t, 0.9, result.Confidence)
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), result.ScrapedAt)
	assert.Equal(t, []string{"https://www.bestbuy.com/site/help-topics/return-exchange-policy"}, fetcher.urls)
}

func TestScrapeReturnPolicyNeedsMerchant(t *testing.T) {
	s := newTestScraper(&stubFetcher{}, nil)
	_, err := s.ScrapeReturnPolicy(context.Background(), " ", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestPolicyContent(t *testing.T) {
	long := strings.Repeat("Refunds are issued to the original payment method. ", 15)

	t.Run("main block", func(t *testing.T) {
		html := `<nav>Menu</nav><main><script>track()</script><p>` + long + `</p></main><footer>Footer</footer>`
		got := PolicyContent(html)
		assert.Contains(t, got, "original payment method")
		assert.NotContains(t, got, "track()")
		assert.NotContains(t, got, "Footer")
	})

	t.Run("short blocks fall back to keyword sections", func(t *testing.T) {
		html := `<main>tiny</main><div class="nav">Shop all</div><section>Exchange within 30 days</section>`
		got := PolicyContent(html)
		assert.Contains(t, got, "Exchange within 30 days")
		assert.NotContains(t, got, "Shop all")
	})

	t.Run("nothing relevant", func(t *testing.T) {
		got := PolicyContent(`<p>Welcome</p>`)
		assert.Contains(t, got, "Welcome")
	})
}
