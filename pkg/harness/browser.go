package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Browser is a headless browser session.
type Browser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// newLauncher configures the browser launch. The leakless guard stays on, so the browser dies with
// the test binary even when the binary crashes.
func newLauncher(cfg BrowserConfig) *launcher.Launcher {
	l := launcher.New().
		Headless(cfg.Headless).
		Set("no-sandbox")
	if cfg.Width > 0 && cfg.Height > 0 {
		l = l.Set("window-size", fmt.Sprintf("%d,%d", cfg.Width, cfg.Height))
	}
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	return l
}

// LaunchBrowser starts a browser as cfg describes and connects to it.
func LaunchBrowser(cfg BrowserConfig) (*Browser, error) {
	l := newLauncher(cfg)
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u).SlowMotion(cfg.SlowMotion)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	// keep the window size instead of emulating the default device
	browser = browser.NoDefaultDevice()

	return &Browser{launcher: l, browser: browser}, nil
}

// Open creates a page and navigates to url. Navigation has no timeout of its own; it ends
// when the page loaded or ctx is done.
func (b *Browser) Open(ctx context.Context, url string) (*Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	p := &Page{page: page, ctx: ctx}
	if err := page.Context(ctx).Navigate(url); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("failed to load %s: %w", url, err)
	}
	return p, nil
}

// Close closes the browser and removes its profile.
func (b *Browser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	b.launcher.Cleanup()
	return err
}

// Page is an open browser page.
type Page struct {
	page *rod.Page
	ctx  context.Context
}

func (p *Page) p() *rod.Page {
	return p.page.Context(p.ctx)
}

// WaitFor waits until an element matches selector.
func (p *Page) WaitFor(selector string) error {
	if _, err := p.p().Element(selector); err != nil {
		return fmt.Errorf("waiting for %q: %w", selector, err)
	}
	return nil
}

// Count returns the number of elements matching selector.
func (p *Page) Count(selector string) (int, error) {
	elements, err := p.p().Elements(selector)
	if err != nil {
		return 0, fmt.Errorf("counting %q: %w", selector, err)
	}
	return len(elements), nil
}

// Text returns the text content of the first element matching selector, waiting for it to appear.
func (p *Page) Text(selector string) (string, error) {
	el, err := p.p().Element(selector)
	if err != nil {
		return "", fmt.Errorf("waiting for %q: %w", selector, err)
	}
	return el.Text()
}

// Title returns the document title.
func (p *Page) Title() (string, error) {
	res, err := p.p().Eval(`() => document.title`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// Close closes the page. Closing twice is not an error.
func (p *Page) Close() error {
	if p == nil || p.page == nil {
		return nil
	}
	err := p.page.Close()
	p.page = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
