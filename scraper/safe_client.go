package scraper

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"fairval/validation"
)

const maxRedirects = 10

// NewSafeHTTPClient returns a client for user-supplied URLs. Redirect
// targets are validated like the original URL and connections to private
// addresses are refused after DNS resolution.
func NewSafeHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   validation.CheckDialAddress,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &http.Client{
		Timeout:       timeout,
		Transport:     transport,
		CheckRedirect: checkRedirect,
	}
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if _, err := validation.ValidateProductURL(req.URL.String()); err != nil {
		return fmt.Errorf("redirect to %s refused: %w", req.URL.Redacted(), err)
	}
	return nil
}
