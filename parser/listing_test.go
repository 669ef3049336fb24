package parser

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

const baseURL = "https://panel.example.com"

func listingRow(id int, detailPath string) string {
	return fmt.Sprintf(`
<div class="nk-tb-item">
  <div class="nk-tb-col">
    <div class="tb-lead"><a href="%s">#%d</a></div>
    <input class="model-id-checkbox" type="checkbox" value="%d">
  </div>
  <div class="nk-tb-col tb-col-md">
    <span class="tb-lead" data-original-title="21/11/2025 21:15">1 hora atras</span>
    <span class="tb-sub text-primary">100 bilhetes</span>
  </div>
  <div class="nk-tb-col tb-col-xl"><span class="badge">Aprovado</span></div>
  <div class="nk-tb-col">
    <div class="user-card"><div class="user-info"><span class="tb-lead">BIZ 0KM</span></div></div>
  </div>
  <div class="nk-tb-col">
    <div class="user-card"><div class="user-info"><span class="tb-lead">Maria Souza</span></div></div>
  </div>
  <div class="nk-tb-col"><a class="whatsapp-message-link">+55 66 99999-9999</a></div>
  <div class="nk-tb-col tb-col-sm"><span class="tb-lead">R$ 10,00</span></div>
  <div class="nk-tb-col"><a href="%s">Ver detalhes</a></div>
</div>`, detailPath, id, id, detailPath)
}

func listingHTML(hasNext bool, rows ...string) string {
	next := `<ul class="pagination"><li class="disabled"><a rel="next" href="#">Next</a></li></ul>`
	if hasNext {
		next = `<ul class="pagination"><li><a rel="next" href="?page=2">Next</a></li></ul>`
	}
	return `<html><body><div class="nk-tb-list">` +
		`<div class="nk-tb-item nk-tb-head"><div class="nk-tb-col">Pedido</div></div>` +
		strings.Join(rows, "\n") + `</div>` + next + `</body></html>`
}

func TestExtractListing(t *testing.T) {
	html := listingHTML(true,
		listingRow(106, "/pedidos/106/detalhes"),
		listingRow(105, "https://panel.example.com/pedidos/105/detalhes"),
	)

	page, err := ExtractListing(html, baseURL)
	if err != nil {
		t.Fatalf("extract listing: %v", err)
	}

	if len(page.Orders) != 2 {
		t.Fatalf("orders = %d, want 2", len(page.Orders))
	}
	if !page.HasNext {
		t.Fatalf("expected has-next")
	}
	if page.MatchedSelector != ".nk-tb-item:not(.nk-tb-head)" {
		t.Fatalf("matched selector = %q", page.MatchedSelector)
	}
	if page.SkippedRows != 0 {
		t.Fatalf("skipped rows = %d, want 0", page.SkippedRows)
	}

	first := page.Orders[0]
	if first.ID != 106 {
		t.Fatalf("id = %d, want 106", first.ID)
	}
	if first.Created != "21/11/2025 21:15" {
		t.Fatalf("created = %q", first.Created)
	}
	if first.Status != "Aprovado" {
		t.Fatalf("status = %q", first.Status)
	}
	if first.Lottery != "BIZ 0KM" {
		t.Fatalf("lottery = %q", first.Lottery)
	}
	if first.Customer != "Maria Souza" {
		t.Fatalf("customer = %q", first.Customer)
	}
	if first.Phone != "55 66 99999-9999" {
		t.Fatalf("phone = %q", first.Phone)
	}
	if first.TicketCount != "100 bilhetes" {
		t.Fatalf("ticket count = %q", first.TicketCount)
	}
	if first.Value != "R$ 10,00" {
		t.Fatalf("value = %q", first.Value)
	}
	if first.DetailURL != baseURL+"/pedidos/106/detalhes" {
		t.Fatalf("detail url = %q", first.DetailURL)
	}
	if page.Orders[1].DetailURL != "https://panel.example.com/pedidos/105/detalhes" {
		t.Fatalf("absolute detail url rewritten: %q", page.Orders[1].DetailURL)
	}
}

func TestExtractListingIDFromLinkText(t *testing.T) {
	row := `
<div class="nk-tb-item">
  <div class="nk-tb-col"><div class="tb-lead"><a href="/pedidos/1313">#1313</a></div></div>
</div>`
	page, err := ExtractListing(listingHTML(false, row), baseURL)
	if err != nil {
		t.Fatalf("extract listing: %v", err)
	}
	if len(page.Orders) != 1 || page.Orders[0].ID != 1313 {
		t.Fatalf("orders = %+v, want single id 1313", page.Orders)
	}
}

func TestExtractListingStatusFromDot(t *testing.T) {
	tests := []struct {
		class string
		want  string
	}{
		{"dot bg-success", "Aprovado"},
		{"dot bg-danger", "Cancelado"},
		{"dot bg-warning", "Pendente"},
		{"dot", ""},
	}
	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			row := fmt.Sprintf(`
<div class="nk-tb-item">
  <div class="nk-tb-col"><input class="model-id-checkbox" value="7"></div>
  <div class="nk-tb-col tb-col-xl"><span class="%s"></span></div>
</div>`, tt.class)
			page, err := ExtractListing(listingHTML(false, row), baseURL)
			if err != nil {
				t.Fatalf("extract listing: %v", err)
			}
			if got := page.Orders[0].Status; got != tt.want {
				t.Fatalf("status = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractListingSkipsRowWithoutID(t *testing.T) {
	broken := `<div class="nk-tb-item"><div class="nk-tb-col"><span class="tb-lead">sem id</span></div></div>`
	page, err := ExtractListing(listingHTML(false, listingRow(42, "/pedidos/42"), broken), baseURL)
	if err != nil {
		t.Fatalf("extract listing: %v", err)
	}
	if len(page.Orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(page.Orders))
	}
	if page.SkippedRows != 1 {
		t.Fatalf("skipped rows = %d, want 1", page.SkippedRows)
	}
	if page.RowCount != 2 {
		t.Fatalf("row count = %d, want 2", page.RowCount)
	}
}

func TestExtractListingFallbackSelector(t *testing.T) {
	html := `<html><body><table><tbody><tr>
<td><input class="model-id-checkbox" value="9"></td>
</tr></tbody></table></body></html>`
	page, err := ExtractListing(html, baseURL)
	if err != nil {
		t.Fatalf("extract listing: %v", err)
	}
	if page.MatchedSelector != "table tbody tr" {
		t.Fatalf("matched selector = %q", page.MatchedSelector)
	}
	if len(page.Orders) != 1 || page.Orders[0].ID != 9 {
		t.Fatalf("orders = %+v", page.Orders)
	}
}

func TestExtractListingEmptyPageIsFinal(t *testing.T) {
	html := `<html><body><div class="nk-tb-list"></div></body></html>`
	page, err := ExtractListing(html, baseURL)
	if err != nil {
		t.Fatalf("empty listing should not error, got %v", err)
	}
	if len(page.Orders) != 0 || page.HasNext {
		t.Fatalf("expected empty final page, got %+v", page)
	}
}

func TestExtractListingUnrecognizedPage(t *testing.T) {
	_, err := ExtractListing(`<html><body><h1>Maintenance</h1></body></html>`, baseURL)
	var parseErr ListingParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ListingParseError, got %v", err)
	}
}

func TestExtractListingDisabledNext(t *testing.T) {
	page, err := ExtractListing(listingHTML(false, listingRow(3, "/pedidos/3")), baseURL)
	if err != nil {
		t.Fatalf("extract listing: %v", err)
	}
	if page.HasNext {
		t.Fatalf("disabled next control should stop traversal")
	}
}
