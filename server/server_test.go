package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/omtx/go-extract-orders/auth"
	"github.com/omtx/go-extract-orders/config"
	"github.com/omtx/go-extract-orders/fetch"
	"github.com/omtx/go-extract-orders/models"
	"github.com/omtx/go-extract-orders/scraper"
)

type stubExtractor struct {
	fullOpts    scraper.FullOptions
	lastOrderID int
	rawPage     int
	rawBackend  string

	result *models.ExtractionResult
	raw    *scraper.RawPageResult
	err    error
}

func (s *stubExtractor) ExtractFull(_ context.Context, opts scraper.FullOptions) (*models.ExtractionResult, error) {
	s.fullOpts = opts
	return s.result, s.err
}

func (s *stubExtractor) ExtractIncremental(_ context.Context, lastOrderID int) (*models.ExtractionResult, error) {
	s.lastOrderID = lastOrderID
	return s.result, s.err
}

func (s *stubExtractor) RawPage(_ context.Context, page int, backend string) (*scraper.RawPageResult, error) {
	s.rawPage = page
	s.rawBackend = backend
	return s.raw, s.err
}

func sampleResult() *models.ExtractionResult {
	return &models.ExtractionResult{
		Total:       1,
		GeneratedAt: "2026-08-25T12:00:00Z",
		Orders:      []models.Order{{ID: 105, Status: "Aprovado"}},
		RunID:       "run-1",
		Backend:     config.BackendStatic,
	}
}

func newTestServer(stub *stubExtractor) *httptest.Server {
	return httptest.NewServer(New(config.DefaultConfig(), stub).Handler())
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("status = %d, want %d", resp.StatusCode, wantStatus)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func TestFullEndpoint(t *testing.T) {
	stub := &stubExtractor{result: sampleResult()}
	ts := newTestServer(stub)
	defer ts.Close()

	body := getJSON(t, ts.URL+"/api/pedidos/full?limit=2&after_id=104", http.StatusOK)

	if stub.fullOpts.Limit != 2 || stub.fullOpts.AfterID != 104 {
		t.Fatalf("opts = %+v", stub.fullOpts)
	}
	if body["total"].(float64) != 1 {
		t.Fatalf("total = %v", body["total"])
	}
	if body["run_id"].(string) != "run-1" {
		t.Fatalf("run_id = %v", body["run_id"])
	}
	if _, ok := body["pedidos"]; !ok {
		t.Fatalf("pedidos missing: %v", body)
	}
}

func TestIncrementalEndpoint(t *testing.T) {
	stub := &stubExtractor{result: sampleResult()}
	ts := newTestServer(stub)
	defer ts.Close()

	getJSON(t, ts.URL+"/api/pedidos/incremental?last_order_id=103", http.StatusOK)
	if stub.lastOrderID != 103 {
		t.Fatalf("last_order_id = %d, want 103", stub.lastOrderID)
	}

	getJSON(t, ts.URL+"/api/pedidos/incremental", http.StatusOK)
	if stub.lastOrderID != 0 {
		t.Fatalf("missing parameter should pass 0, got %d", stub.lastOrderID)
	}
}

func TestBadQueryParameters(t *testing.T) {
	stub := &stubExtractor{result: sampleResult()}
	ts := newTestServer(stub)
	defer ts.Close()

	for _, url := range []string{
		"/api/pedidos/full?limit=abc",
		"/api/pedidos/full?after_id=-1",
		"/api/pedidos/incremental?last_order_id=x",
		"/api/debug/raw-page?page=zero",
		"/api/debug/raw-page?page=1&backend=carrier-pigeon",
	} {
		body := getJSON(t, ts.URL+url, http.StatusBadRequest)
		if body["error"] == "" {
			t.Fatalf("%s: expected an error payload, got %v", url, body)
		}
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"auth", &auth.AuthError{Reason: "credentials rejected"}, http.StatusUnauthorized},
		{"fetch", &fetch.FetchError{Status: 503, Transient: true}, http.StatusBadGateway},
		{"other", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubExtractor{err: tt.err}
			ts := newTestServer(stub)
			defer ts.Close()

			body := getJSON(t, ts.URL+"/api/pedidos/incremental", tt.status)
			if body["error"] == "" {
				t.Fatalf("expected an error payload, got %v", body)
			}
		})
	}
}

func TestRawPageEndpoint(t *testing.T) {
	stub := &stubExtractor{raw: &scraper.RawPageResult{
		Backend:         config.BackendStatic,
		Page:            3,
		HTML:            "<html></html>",
		FromCache:       true,
		MatchedSelector: ".nk-tb-item:not(.nk-tb-head)",
		RowCount:        10,
	}}
	ts := newTestServer(stub)
	defer ts.Close()

	body := getJSON(t, ts.URL+"/api/debug/raw-page?page=3&backend=static", http.StatusOK)

	if stub.rawPage != 3 || stub.rawBackend != config.BackendStatic {
		t.Fatalf("raw call = page %d backend %q", stub.rawPage, stub.rawBackend)
	}
	if body["from_cache"].(bool) != true {
		t.Fatalf("from_cache = %v", body["from_cache"])
	}
	if body["row_count"].(float64) != 10 {
		t.Fatalf("row_count = %v", body["row_count"])
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(&stubExtractor{})
	defer ts.Close()

	body := getJSON(t, ts.URL+"/healthz", http.StatusOK)
	if body["status"] != "ok" {
		t.Fatalf("status = %v", body["status"])
	}
}

func TestRequestIDHeader(t *testing.T) {
	stub := &stubExtractor{result: sampleResult()}
	ts := newTestServer(stub)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID header")
	}
}
