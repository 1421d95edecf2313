package scraper

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// BrowserSession owns the connection to the remote scraping browser. It
// connects on first use and reconnects when the connection stops answering.
type BrowserSession struct {
	endpoint string

	mu      sync.Mutex
	browser *rod.Browser
}

// NewBrowserSession creates a session for the given DevTools websocket
// endpoint. An empty endpoint yields a session whose pages always fail with
// ErrBrowserNotConfigured.
func NewBrowserSession(endpoint string) *BrowserSession {
	return &BrowserSession{endpoint: endpoint}
}

// Configured reports whether the session has an endpoint to connect to.
func (s *BrowserSession) Configured() bool {
	return s.endpoint != ""
}

// Browser returns a healthy connection, dialing a new one if needed.
func (s *BrowserSession) Browser(ctx context.Context) (*rod.Browser, error) {
	if !s.Configured() {
		return nil, ErrBrowserNotConfigured
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil {
		if _, err := s.browser.Version(); err == nil {
			return s.browser, nil
		}
		log.Printf("⚠️  Cached browser connection unhealthy, reconnecting")
		_ = s.browser.Close()
		s.browser = nil
	}

	log.Printf("🌐 Connecting to remote browser...")
	browser := rod.New().ControlURL(s.endpoint).Context(context.WithoutCancel(ctx))
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	log.Printf("✅ Connected to remote browser")

	s.browser = browser
	return browser, nil
}

// NewPage opens a stealth page on the shared browser. Callers must close it.
func (s *BrowserSession) NewPage(ctx context.Context) (*rod.Page, error) {
	browser, err := s.Browser(ctx)
	if err != nil {
		return nil, err
	}
	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return page, nil
}

// Close releases the connection. The session can be reused afterwards.
func (s *BrowserSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.browser = nil
	return err
}

// rodDocument adapts a live page to Document.
type rodDocument struct {
	page *rod.Page
}

func (d rodDocument) First(selector, attr string) (string, error) {
	found, el, err := d.page.Has(selector)
	if err != nil || !found {
		return "", err
	}
	return elementValue(el, attr)
}

func (d rodDocument) All(selector, attr string) ([]string, error) {
	elements, err := d.page.Elements(selector)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(elements))
	for _, el := range elements {
		value, err := elementValue(el, attr)
		if err != nil {
			continue
		}
		values = append(values, value)
	}
	return values, nil
}

func (d rodDocument) VisibleText() (string, error) {
	obj, err := d.page.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return "", err
	}
	return obj.Value.Str(), nil
}

func (d rodDocument) Title() (string, error) {
	info, err := d.page.Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func elementValue(el *rod.Element, attr string) (string, error) {
	if attr == "" {
		return el.Text()
	}
	value, err := el.Attribute(attr)
	if err != nil || value == nil {
		return "", err
	}
	return *value, nil
}
