package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Rod captures the first open page of a Chrome instance reachable over the
// DevTools protocol. The browser is shared with the code under test and is
// never closed here.
type Rod struct {
	controlURL string

	mu      sync.Mutex
	browser *rod.Browser
}

// NewRod returns a capturer for the browser at controlURL
// (for example ws://127.0.0.1:9222/devtools/browser/<id>).
func NewRod(controlURL string) *Rod {
	return &Rod{controlURL: controlURL}
}

func (r *Rod) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		if _, err := r.browser.Version(); err == nil {
			return r.browser, nil
		}
		r.browser = nil
	}
	if r.controlURL == "" {
		return nil, fmt.Errorf("no debugger url: %w", ErrCaptureUnavailable)
	}

	browser := rod.New().ControlURL(r.controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	r.browser = browser
	return browser, nil
}

// Capture implements Capturer.
func (r *Rod) Capture(ctx context.Context) ([]byte, error) {
	browser, err := r.connect()
	if err != nil {
		return nil, err
	}
	pages, err := browser.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	page := pages.First()
	if page == nil {
		return nil, fmt.Errorf("no open page: %w", ErrCaptureUnavailable)
	}
	data, err := page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return data, nil
}
