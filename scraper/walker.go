package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/omtx/go-extract-orders/config"
	"github.com/omtx/go-extract-orders/fetch"
	"github.com/omtx/go-extract-orders/models"
	"github.com/omtx/go-extract-orders/parser"
)

// walkOptions bounds one listing walk. Threshold 0 means walk to the
// end; Limit 0 means no cap. StartPage lets a walk resume mid-run after
// a backend swap.
type walkOptions struct {
	Threshold int
	Limit     int
	StartPage int
}

// walkStats reports what a walk (possibly a partial one) covered.
type walkStats struct {
	Pages       int
	SkippedRows int
	LastPage    int
	Stopped     bool
}

// walker pulls listing pages in ascending page order, which the panel
// serves in descending order id, and yields summaries until the
// threshold, the limit, or the last page is reached.
type walker struct {
	cfg     *config.Config
	backend fetch.Backend
	retry   retryPolicy
	metrics *Metrics
	pages   *PageCache
}

// walk fetches pages sequentially and invokes yield for each qualifying
// summary. Once any row on a page carries an id at or below the
// threshold the walk stops after yielding that page's qualifying rows;
// deeper pages only hold older orders.
func (w *walker) walk(ctx context.Context, opts walkOptions, yield func(models.OrderSummary)) (walkStats, error) {
	stats := walkStats{}
	yielded := 0

	startPage := opts.StartPage
	if startPage < 1 {
		startPage = 1
	}

	for page := startPage; page <= w.cfg.MaxPages; page++ {
		stats.LastPage = page
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		pageURL := w.cfg.ListingPageURL(page)
		var html string
		err := w.retry.do(ctx, fmt.Sprintf("listing page %d", page), func() error {
			var fetchErr error
			html, fetchErr = w.backend.FetchPage(ctx, fetch.PageDescriptor{Page: page, URL: pageURL})
			return fetchErr
		})
		if err != nil {
			w.metrics.IncFetchError(errorKind(err))
			return stats, err
		}
		stats.Pages++
		w.metrics.IncPage(w.backend.Name())

		listing, err := parser.ExtractListing(html, w.cfg.BaseURL)
		if err != nil {
			w.metrics.IncFetchError("listing_parse")
			return stats, fmt.Errorf("page %d: %w", page, err)
		}

		w.pages.Put(CachedPage{
			Backend:         w.backend.Name(),
			Page:            page,
			HTML:            html,
			FetchedAt:       time.Now().UTC(),
			MatchedSelector: listing.MatchedSelector,
			RowCount:        listing.RowCount,
			SkippedRows:     listing.SkippedRows,
		})

		stats.SkippedRows += listing.SkippedRows
		w.metrics.AddSkippedRows(listing.SkippedRows)

		stop := false
		for _, order := range listing.Orders {
			if opts.Threshold > 0 && order.ID <= opts.Threshold {
				stop = true
				continue
			}
			yield(order)
			yielded++
			if opts.Limit > 0 && yielded >= opts.Limit {
				stop = true
				break
			}
		}

		slog.Debug("listing page walked",
			slog.Int("page", page),
			slog.Int("rows", listing.RowCount),
			slog.Int("skipped", listing.SkippedRows),
			slog.Bool("has_next", listing.HasNext),
			slog.Bool("stop", stop))

		if stop {
			stats.Stopped = true
			return stats, nil
		}
		if !listing.HasNext {
			return stats, nil
		}
	}

	slog.Warn("walk hit page cap", slog.Int("max_pages", w.cfg.MaxPages))
	return stats, nil
}
