// Package fetch abstracts how rendered page content is obtained from
// the vendor panel. Two backends implement the same contract: a static
// HTTP client and a headless browser.
package fetch

import (
	"context"
	"errors"
	"fmt"
)

// ErrSessionExpired signals that a fetch came back as the vendor login
// page or a 401. The caller must invalidate the session, re-login, and
// retry the fetch.
var ErrSessionExpired = errors.New("fetch: session expired")

// FetchError wraps a failed page fetch. Transient failures are eligible
// for retry; permanent ones abort immediately.
type FetchError struct {
	Backend   string
	URL       string
	Page      int
	Status    int
	Transient bool
	Err       error
}

func (e *FetchError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s (%s, page %d, %s): %v", e.URL, e.Backend, e.Page, kind, e.Err)
	}
	return fmt.Sprintf("fetch %s (%s, page %d, %s): status %d", e.URL, e.Backend, e.Page, kind, e.Status)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient reports whether err is a retryable fetch failure.
func Transient(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr) && fetchErr.Transient
}

// PageDescriptor identifies one page to fetch. Page is the 1-based
// listing page number, or 0 for detail pages addressed purely by URL.
type PageDescriptor struct {
	Page int
	URL  string
}

// Backend returns the rendered HTML of a page. Implementations are not
// required to be safe for concurrent use: a run fetches sequentially.
type Backend interface {
	Name() string
	FetchPage(ctx context.Context, desc PageDescriptor) (string, error)
	Close() error
}
