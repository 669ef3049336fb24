package fetch

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gocolly/colly/v2"

	"github.com/omtx/go-extract-orders/auth"
	"github.com/omtx/go-extract-orders/config"
)

// StaticBackend issues plain GETs with the session cookies and returns
// the raw HTML. It suits the panel's server-rendered pages.
type StaticBackend struct {
	cfg  *config.Config
	auth *auth.Authenticator
}

// NewStatic returns a static HTTP backend drawing sessions from a.
func NewStatic(cfg *config.Config, a *auth.Authenticator) *StaticBackend {
	return &StaticBackend{cfg: cfg, auth: a}
}

// Name implements Backend.
func (b *StaticBackend) Name() string {
	return config.BackendStatic
}

// Close implements Backend. The static backend holds no resources
// beyond the shared session.
func (b *StaticBackend) Close() error {
	return nil
}

// FetchPage implements Backend. Network failures, 429 and 5xx statuses
// are transient; other client errors are permanent; a 401 or a response
// that renders the login form surfaces ErrSessionExpired.
func (b *StaticBackend) FetchPage(ctx context.Context, desc PageDescriptor) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := url.ParseRequestURI(desc.URL); err != nil {
		return "", &FetchError{Backend: b.Name(), URL: desc.URL, Page: desc.Page, Err: err}
	}

	session, err := b.auth.EnsureSession(ctx)
	if err != nil {
		return "", err
	}

	c := session.NewCollector()
	c.ParseHTTPErrorResponse = true

	var body string
	var status int
	c.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
		status = r.StatusCode
	})

	if err := c.Visit(desc.URL); err != nil {
		// With error-response parsing enabled, a Visit error means the
		// request never completed: treat it as transient network
		// trouble unless the URL itself was rejected.
		transient := err != colly.ErrMissingURL && err != colly.ErrForbiddenURL
		return "", &FetchError{
			Backend: b.Name(), URL: desc.URL, Page: desc.Page,
			Transient: transient, Err: err,
		}
	}
	c.Wait()

	switch {
	case status == http.StatusUnauthorized:
		return "", &FetchError{
			Backend: b.Name(), URL: desc.URL, Page: desc.Page,
			Status: status, Err: ErrSessionExpired,
		}
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return "", &FetchError{
			Backend: b.Name(), URL: desc.URL, Page: desc.Page,
			Status: status, Transient: true,
		}
	case status >= http.StatusBadRequest:
		return "", &FetchError{
			Backend: b.Name(), URL: desc.URL, Page: desc.Page,
			Status: status,
		}
	}

	if auth.LooksLoggedOut(body) {
		slog.Debug("static fetch returned login page",
			slog.String("url", desc.URL), slog.Int("page", desc.Page))
		return "", &FetchError{
			Backend: b.Name(), URL: desc.URL, Page: desc.Page,
			Status: status, Err: ErrSessionExpired,
		}
	}

	return body, nil
}
