// Package scraper coordinates the incremental extraction of orders from
// the vendor panel: listing walk, detail enrichment, export and cursor
// persistence.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omtx/go-extract-orders/auth"
	"github.com/omtx/go-extract-orders/config"
	"github.com/omtx/go-extract-orders/fetch"
	"github.com/omtx/go-extract-orders/models"
	"github.com/omtx/go-extract-orders/parser"
	"github.com/omtx/go-extract-orders/state"
)

// FullOptions bounds a full extraction. Zero values mean unbounded.
// Setting either field turns the run into a read-only probe that does
// not move the persisted cursor.
type FullOptions struct {
	Limit   int
	AfterID int
}

// RawPageResult is the debug view of one cached or freshly fetched
// listing page.
type RawPageResult struct {
	Backend         string    `json:"backend"`
	Page            int       `json:"page"`
	HTML            string    `json:"html"`
	FetchedAt       time.Time `json:"fetched_at"`
	FromCache       bool      `json:"from_cache"`
	MatchedSelector string    `json:"matched_selector"`
	RowCount        int       `json:"row_count"`
	SkippedRows     int       `json:"skipped_rows"`
}

// Orchestrator runs full and incremental extractions. Runs are
// serialized: the panel session and the cursor file both assume a
// single writer.
type Orchestrator struct {
	cfg      *config.Config
	auth     *auth.Authenticator
	cursor   *state.CursorStore
	metrics  *Metrics
	exporter *Exporter
	pages    *PageCache

	// newBackend builds a fetch backend by kind. Swapped in tests.
	newBackend func(kind string) fetch.Backend

	runMu sync.Mutex
}

// New wires an orchestrator from configuration.
func New(cfg *config.Config) (*Orchestrator, error) {
	pages, err := NewPageCache(cfg.PageCacheSize)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:      cfg,
		auth:     auth.New(cfg),
		cursor:   state.NewCursorStore(cfg.CursorFile),
		metrics:  NewMetrics(),
		exporter: NewExporter(cfg.ExportDir),
		pages:    pages,
	}
	o.newBackend = func(kind string) fetch.Backend {
		if kind == config.BackendBrowser {
			return fetch.NewBrowser(cfg)
		}
		return &refreshingBackend{
			inner: fetch.NewStatic(cfg, o.auth),
			auth:  o.auth,
		}
	}
	return o, nil
}

// Metrics exposes the orchestrator's collector registry for serving.
func (o *Orchestrator) Metrics() *Metrics {
	return o.metrics
}

// ExtractFull walks the listing from the newest order down, enriches
// every yielded record with its detail page and returns the batch. With
// neither Limit nor AfterID set the cursor advances to the highest id
// seen; with either set the run is a probe and the cursor is untouched.
func (o *Orchestrator) ExtractFull(ctx context.Context, opts FullOptions) (*models.ExtractionResult, error) {
	probe := opts.Limit > 0 || opts.AfterID > 0

	var lastIDRequested *int
	if opts.AfterID > 0 {
		id := opts.AfterID
		lastIDRequested = &id
	}

	return o.run(ctx, runParams{
		mode:            "full",
		threshold:       opts.AfterID,
		limit:           opts.Limit,
		persistCursor:   !probe,
		paginated:       opts.Limit > 0,
		lastIDRequested: lastIDRequested,
	})
}

// ExtractIncremental extracts only orders newer than the threshold:
// lastOrderID when positive, else the persisted cursor, else everything.
// The cursor always advances to max(previous, highest id seen) once the
// batch is durably exported.
func (o *Orchestrator) ExtractIncremental(ctx context.Context, lastOrderID int) (*models.ExtractionResult, error) {
	threshold := lastOrderID
	if threshold <= 0 {
		if cur, ok := o.cursor.Read(); ok {
			threshold = cur
		}
	}

	return o.run(ctx, runParams{
		mode:          "incremental",
		threshold:     threshold,
		persistCursor: true,
	})
}

// RawPage returns the raw HTML of one listing page plus extraction
// diagnostics, serving it from the cache when possible. backendKind ""
// means the configured backend.
func (o *Orchestrator) RawPage(ctx context.Context, page int, backendKind string) (*RawPageResult, error) {
	if page < 1 {
		page = 1
	}
	if backendKind == "" {
		backendKind = o.cfg.Backend
	}
	if backendKind != config.BackendStatic && backendKind != config.BackendBrowser {
		return nil, fmt.Errorf("unknown backend %q", backendKind)
	}

	if cached, ok := o.pages.Get(backendKind, page); ok {
		return rawResultFrom(cached, true), nil
	}

	backend := o.newBackend(backendKind)
	defer backend.Close()

	html, err := backend.FetchPage(ctx, fetch.PageDescriptor{
		Page: page,
		URL:  o.cfg.ListingPageURL(page),
	})
	if err != nil {
		o.metrics.IncFetchError(errorKind(err))
		return nil, err
	}
	o.metrics.IncPage(backendKind)

	cached := CachedPage{
		Backend:   backendKind,
		Page:      page,
		HTML:      html,
		FetchedAt: time.Now().UTC(),
	}
	if listing, err := parser.ExtractListing(html, o.cfg.BaseURL); err == nil {
		cached.MatchedSelector = listing.MatchedSelector
		cached.RowCount = listing.RowCount
		cached.SkippedRows = listing.SkippedRows
	}
	o.pages.Put(cached)

	return rawResultFrom(cached, false), nil
}

// Close releases resources held across runs.
func (o *Orchestrator) Close() error {
	return nil
}

type runParams struct {
	mode            string
	threshold       int
	limit           int
	persistCursor   bool
	paginated       bool
	lastIDRequested *int
}

func (o *Orchestrator) run(ctx context.Context, p runParams) (*models.ExtractionResult, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	runID := uuid.NewString()
	started := time.Now()
	log := slog.With(slog.String("run_id", runID), slog.String("mode", p.mode))

	log.Info("extraction run started",
		slog.Int("threshold", p.threshold),
		slog.Int("limit", p.limit),
		slog.String("backend", o.cfg.Backend))

	result, err := o.collect(ctx, log, p)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	o.metrics.ObserveRun(p.mode, outcome, time.Since(started))
	if err != nil {
		log.Error("extraction run failed", slog.Any("error", err))
		return nil, err
	}

	result.RunID = runID
	log.Info("extraction run finished",
		slog.Int("total", result.Total),
		slog.Int("pages", result.PagesFetched),
		slog.Int("detail_failures", result.DetailFailures),
		slog.Bool("cursor_advanced", result.CursorAdvanced),
		slog.Duration("elapsed", time.Since(started)))
	return result, nil
}

func (o *Orchestrator) collect(ctx context.Context, log *slog.Logger, p runParams) (*models.ExtractionResult, error) {
	retry := retryPolicy{
		maxRetries: o.cfg.MaxRetries,
		backoff:    o.cfg.RetryBackoff,
		backoffMax: o.cfg.RetryBackoffMax,
		metrics:    o.metrics,
	}

	backend := o.newBackend(o.cfg.Backend)
	defer func() { backend.Close() }()
	fellBack := false

	var summaries []models.OrderSummary
	stats := walkStats{}

	startPage := 1
	for {
		w := &walker{cfg: o.cfg, backend: backend, retry: retry, metrics: o.metrics, pages: o.pages}
		partial, err := w.walk(ctx, walkOptions{
			Threshold: p.threshold,
			Limit:     remaining(p.limit, len(summaries)),
			StartPage: startPage,
		}, func(s models.OrderSummary) {
			summaries = append(summaries, s)
		})
		stats.Pages += partial.Pages
		stats.SkippedRows += partial.SkippedRows
		stats.Stopped = partial.Stopped

		if err == nil {
			break
		}
		if fellBack || !fallbackEligible(err) {
			return nil, err
		}

		// The preferred backend exhausted its retry budget on a page.
		// Demote to the other backend for the rest of the run and resume
		// from the failing page.
		fellBack = true
		next := otherBackend(backend.Name())
		log.Warn("fetch backend demoted",
			slog.String("from", backend.Name()),
			slog.String("to", next),
			slog.Int("page", partial.LastPage),
			slog.Any("error", err))
		o.metrics.IncFallback()

		backend.Close()
		backend = o.newBackend(next)
		startPage = partial.LastPage
	}

	orders := make([]models.Order, 0, len(summaries))
	detailFailures := 0
	for _, summary := range summaries {
		detail, ok, err := o.fetchDetail(ctx, backend, retry, summary)
		if err != nil {
			return nil, err
		}
		if !ok {
			detailFailures++
			o.metrics.IncDetailFailure()
		}
		orders = append(orders, models.Merge(summary, detail))
	}
	o.metrics.AddRecords(len(orders))

	result := &models.ExtractionResult{
		Total:          len(orders),
		GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
		Orders:         orders,
		Backend:        backend.Name(),
		DetailFailures: detailFailures,
		SkippedRows:    stats.SkippedRows,
		PagesFetched:   stats.Pages,
	}
	if p.paginated {
		result.Pagination = &models.PaginationMeta{
			LastIDProcessed: minOrderID(orders),
			HasMore:         p.limit > 0 && len(orders) == p.limit,
			Limit:           p.limit,
			LastIDRequested: p.lastIDRequested,
		}
	}

	// The cursor only moves after the batch is durably on disk. An
	// export or cursor write failure still returns the records; the
	// caller sees CursorAdvanced=false and the next run re-extracts.
	if o.cfg.ExportJSON && len(orders) > 0 {
		file, err := o.exporter.Export(result)
		if err != nil {
			log.Error("export failed, cursor not advanced", slog.Any("error", err))
			return result, nil
		}
		result.ExportFile = file
	}

	if p.persistCursor && len(orders) > 0 {
		result.CursorAdvanced = o.advanceCursor(log, maxOrderID(orders))
	}
	return result, nil
}

// fetchDetail enriches one summary. Fetch and parse problems soft-fail
// to an empty detail; only authentication failures and context
// cancellation abort the run.
func (o *Orchestrator) fetchDetail(ctx context.Context, backend fetch.Backend, retry retryPolicy, summary models.OrderSummary) (models.OrderDetail, bool, error) {
	if summary.DetailURL == "" {
		return models.OrderDetail{}, false, nil
	}

	var html string
	err := retry.do(ctx, fmt.Sprintf("detail %d", summary.ID), func() error {
		var fetchErr error
		html, fetchErr = backend.FetchPage(ctx, fetch.PageDescriptor{URL: summary.DetailURL})
		return fetchErr
	})
	if err != nil {
		var authErr *auth.AuthError
		if errors.As(err, &authErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return models.OrderDetail{}, false, err
		}
		o.metrics.IncFetchError(errorKind(err))
		slog.Warn("detail fetch failed, keeping empty fields",
			slog.Int("order_id", summary.ID), slog.Any("error", err))
		return models.OrderDetail{}, false, nil
	}
	o.metrics.IncPage(backend.Name())

	detail, err := parser.ExtractDetail(html)
	if err != nil {
		slog.Warn("detail parse failed, keeping empty fields",
			slog.Int("order_id", summary.ID), slog.Any("error", err))
		return models.OrderDetail{}, false, nil
	}
	return detail, true, nil
}

func (o *Orchestrator) advanceCursor(log *slog.Logger, maxSeen int) bool {
	prev, _ := o.cursor.Read()
	if maxSeen <= prev {
		return false
	}
	if err := o.cursor.Write(maxSeen); err != nil {
		log.Error("cursor write failed, progress not committed", slog.Any("error", err))
		return false
	}
	return true
}

// refreshingBackend retries a fetch once after re-establishing the
// session when the panel signals deauthentication mid-run.
type refreshingBackend struct {
	inner fetch.Backend
	auth  *auth.Authenticator
}

func (r *refreshingBackend) Name() string { return r.inner.Name() }
func (r *refreshingBackend) Close() error { return r.inner.Close() }

func (r *refreshingBackend) FetchPage(ctx context.Context, desc fetch.PageDescriptor) (string, error) {
	html, err := r.inner.FetchPage(ctx, desc)
	if err == nil || !errors.Is(err, fetch.ErrSessionExpired) {
		return html, err
	}
	slog.Warn("session expired mid-run, re-authenticating",
		slog.Int("page", desc.Page), slog.String("url", desc.URL))
	r.auth.Invalidate()
	return r.inner.FetchPage(ctx, desc)
}

func fallbackEligible(err error) bool {
	if errors.Is(err, fetch.ErrSessionExpired) {
		return false
	}
	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fetchErr *fetch.FetchError
	return errors.As(err, &fetchErr)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, fetch.ErrSessionExpired):
		return "session_expired"
	case fetch.Transient(err):
		return "transient"
	default:
		var fetchErr *fetch.FetchError
		if errors.As(err, &fetchErr) {
			return "permanent"
		}
		return "other"
	}
}

func otherBackend(kind string) string {
	if kind == config.BackendStatic {
		return config.BackendBrowser
	}
	return config.BackendStatic
}

func remaining(limit, have int) int {
	if limit <= 0 {
		return 0
	}
	return limit - have
}

func minOrderID(orders []models.Order) int {
	min := 0
	for _, o := range orders {
		if min == 0 || o.ID < min {
			min = o.ID
		}
	}
	return min
}

func maxOrderID(orders []models.Order) int {
	max := 0
	for _, o := range orders {
		if o.ID > max {
			max = o.ID
		}
	}
	return max
}

func rawResultFrom(p CachedPage, fromCache bool) *RawPageResult {
	return &RawPageResult{
		Backend:         p.Backend,
		Page:            p.Page,
		HTML:            p.HTML,
		FetchedAt:       p.FetchedAt,
		FromCache:       fromCache,
		MatchedSelector: p.MatchedSelector,
		RowCount:        p.RowCount,
		SkippedRows:     p.SkippedRows,
	}
}
