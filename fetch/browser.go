package fetch

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"

	"github.com/chromedp/chromedp"

	"github.com/omtx/go-extract-orders/auth"
	"github.com/omtx/go-extract-orders/config"
)

// BrowserBackend renders pages in a headless browser so JavaScript-built
// listings come back as complete DOM. The browser and its login are
// established lazily on the first fetch.
type BrowserBackend struct {
	cfg *config.Config

	mu         sync.Mutex
	browserCtx context.Context
	cancels    []context.CancelFunc
	loggedIn   bool
}

// NewBrowser returns a headless-browser backend. No browser process is
// started until the first FetchPage call.
func NewBrowser(cfg *config.Config) *BrowserBackend {
	return &BrowserBackend{cfg: cfg}
}

// Name implements Backend.
func (b *BrowserBackend) Name() string {
	return config.BackendBrowser
}

// Close implements Backend and tears down the browser.
func (b *BrowserBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.cancels) - 1; i >= 0; i-- {
		b.cancels[i]()
	}
	b.cancels = nil
	b.browserCtx = nil
	b.loggedIn = false
	return nil
}

// FetchPage implements Backend. It navigates to the page, waits for the
// configured content-ready selector, and extracts the rendered DOM. A
// wait timeout is transient; a malformed URL is permanent.
func (b *BrowserBackend) FetchPage(ctx context.Context, desc PageDescriptor) (string, error) {
	parsed, err := url.ParseRequestURI(desc.URL)
	if err != nil || parsed.Host == "" {
		return "", &FetchError{Backend: b.Name(), URL: desc.URL, Page: desc.Page, Err: err}
	}

	if err := b.ensureLoggedIn(ctx); err != nil {
		return "", err
	}

	html, err := b.renderPage(ctx, desc)
	if err != nil {
		return "", err
	}

	if auth.LooksLoggedOut(html) {
		// Session dropped server-side: log in again and refetch once.
		slog.Warn("browser session expired, re-authenticating",
			slog.Int("page", desc.Page))
		b.mu.Lock()
		b.loggedIn = false
		b.mu.Unlock()
		if err := b.ensureLoggedIn(ctx); err != nil {
			return "", err
		}
		return b.renderPage(ctx, desc)
	}
	return html, nil
}

func (b *BrowserBackend) renderPage(ctx context.Context, desc PageDescriptor) (string, error) {
	b.mu.Lock()
	browserCtx := b.browserCtx
	b.mu.Unlock()

	var html string
	err := b.run(ctx, browserCtx,
		chromedp.Navigate(desc.URL),
		chromedp.WaitVisible(b.cfg.WaitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", &FetchError{
			Backend: b.Name(), URL: desc.URL, Page: desc.Page,
			Transient: errors.Is(err, context.DeadlineExceeded),
			Err:       err,
		}
	}
	return html, nil
}

func (b *BrowserBackend) ensureLoggedIn(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx == nil {
		if err := b.startBrowserLocked(); err != nil {
			return err
		}
	}
	if b.loggedIn {
		return nil
	}

	slog.Info("browser login", slog.String("url", b.cfg.LoginURL))
	if err := b.run(ctx, b.browserCtx, auth.BrowserLoginTasks(b.cfg)); err != nil {
		return &auth.AuthError{Reason: "browser login", Err: err}
	}
	b.loggedIn = true
	return nil
}

func (b *BrowserBackend) startBrowserLocked() error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", b.cfg.BrowserHeadless),
		chromedp.Flag("disable-gpu", b.cfg.BrowserHeadless),
		chromedp.Flag("window-size", "1920,1080"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(b.cfg.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser process now so the first page fetch does not
	// absorb the startup latency inside its own timeout.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return &FetchError{Backend: b.Name(), Err: err}
	}

	b.browserCtx = browserCtx
	b.cancels = []context.CancelFunc{allocCancel, browserCancel}
	return nil
}

// run executes actions against the browser bounded by both the caller's
// context and the per-fetch timeout.
func (b *BrowserBackend) run(ctx, browserCtx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeoutCtx, cancel := context.WithTimeout(browserCtx, b.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(timeoutCtx, actions...)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		return <-done
	}
}
