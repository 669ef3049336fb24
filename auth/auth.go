// Package auth establishes and owns the authenticated session against
// the vendor panel's login flow.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/omtx/go-extract-orders/config"
)

// AuthError is fatal for a run: retrying does not change credentials or
// an unrecognized login page.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication: %s", e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// CSRF token extraction patterns, hidden form input first, meta tag as
// fallback.
var csrfPatterns = []*regexp.Regexp{
	regexp.MustCompile(`name=["']_token["']\s+value=["']([^"']+)["']`),
	regexp.MustCompile(`csrf-token["']\s+content=["']([^"']+)["']`),
}

// Session is the authenticated context shared by fetches within a run.
// The cookie jar carries the vendor's session cookies.
type Session struct {
	Jar       http.CookieJar
	UserAgent string
	Timeout   time.Duration

	// Transport overrides the HTTP transport of collectors built from
	// this session. Used for proxies and for mock transports in tests.
	Transport http.RoundTripper

	createdAt time.Time
}

// NewCollector builds a colly collector bound to this session. Every
// collector from the same session shares the cookie jar, so logins
// survive across page and detail fetches.
func (s *Session) NewCollector() *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(s.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetCookieJar(s.Jar)
	c.SetRequestTimeout(s.Timeout)
	if s.Transport != nil {
		c.WithTransport(s.Transport)
	}
	return c
}

// Age reports how long ago the session was established.
func (s *Session) Age() time.Duration {
	return time.Since(s.createdAt)
}

// LooksLoggedOut reports whether a fetched page is the vendor's login
// form, which signals that the session was invalidated server-side.
func LooksLoggedOut(html string) bool {
	return strings.Contains(html, `type="password"`) && containsCSRFToken(html)
}

func containsCSRFToken(html string) bool {
	for _, pattern := range csrfPatterns {
		if pattern.MatchString(html) {
			return true
		}
	}
	return false
}

// Authenticator performs the vendor login flow and caches the resulting
// session until it is invalidated.
type Authenticator struct {
	cfg *config.Config

	// Transport is propagated to sessions; see Session.Transport.
	Transport http.RoundTripper

	mu      sync.Mutex
	session *Session
}

// New returns an Authenticator for cfg.
func New(cfg *config.Config) *Authenticator {
	return &Authenticator{cfg: cfg}
}

// EnsureSession returns the cached session or performs the login flow:
// fetch the login page, extract the anti-forgery token, submit
// credentials, and verify the response carries an authenticated marker.
// It is idempotent; concurrent callers share one login.
func (a *Authenticator) EnsureSession(ctx context.Context) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil {
		return a.session, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, &AuthError{Reason: "cookie jar", Err: err}
	}
	session := &Session{
		Jar:       jar,
		UserAgent: a.cfg.UserAgent,
		Timeout:   a.cfg.Timeout,
		Transport: a.Transport,
		createdAt: time.Now(),
	}

	token, err := a.fetchCSRFToken(session)
	if err != nil {
		return nil, err
	}
	if err := a.submitLogin(session, token); err != nil {
		return nil, err
	}

	a.session = session
	return session, nil
}

// Invalidate discards the cached session. The next EnsureSession call
// performs a fresh login.
func (a *Authenticator) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = nil
}

func (a *Authenticator) fetchCSRFToken(session *Session) (string, error) {
	c := session.NewCollector()

	var body string
	var status int
	c.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
		status = r.StatusCode
	})

	if err := c.Visit(a.cfg.LoginURL); err != nil {
		return "", &AuthError{Reason: "fetch login page", Err: err}
	}
	c.Wait()

	if status != http.StatusOK {
		return "", &AuthError{Reason: fmt.Sprintf("login page returned status %d", status)}
	}
	for _, pattern := range csrfPatterns {
		if match := pattern.FindStringSubmatch(body); match != nil {
			return match[1], nil
		}
	}
	return "", &AuthError{Reason: "csrf token not found in login page"}
}

func (a *Authenticator) submitLogin(session *Session, token string) error {
	c := session.NewCollector()

	var body string
	var status int
	c.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
		status = r.StatusCode
	})

	err := c.Post(a.cfg.LoginURL, map[string]string{
		"_token":   token,
		"email":    a.cfg.Email,
		"password": a.cfg.Password,
	})
	if err != nil {
		return &AuthError{Reason: "submit credentials", Err: err}
	}
	c.Wait()

	if status != http.StatusOK {
		return &AuthError{Reason: fmt.Sprintf("login returned status %d", status)}
	}
	// A successful login redirects into the panel; landing back on the
	// login form means the credentials were rejected.
	if LooksLoggedOut(body) {
		return &AuthError{Reason: "credentials rejected"}
	}
	return nil
}
