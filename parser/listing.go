package parser

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/omtx/go-extract-orders/models"
)

// Row container candidates, most specific first. The first selector that
// yields at least one element wins for the page.
var rowSelectors = []string{
	".nk-tb-item:not(.nk-tb-head)",
	"table tbody tr",
	".pedido-item",
}

// Containers that prove the page is a listing even when it has no rows
// (e.g. a page past the end of the data set).
var listingContainers = []string{
	".nk-tb-list",
	".nk-block table",
	"table",
}

var detailLinkSelectors = []string{
	`a[href*="detalhes"]`,
	`a[href*="/pedidos/"]`,
}

var nextPageSelectors = []string{
	`ul.pagination a[rel="next"]`,
	`li.next a`,
	`a[rel="next"]`,
	`.pagination-next a`,
}

// ListingPage is the outcome of extracting one listing page, including
// the diagnostics surfaced through the debug side-channel.
type ListingPage struct {
	Orders          []models.OrderSummary
	HasNext         bool
	MatchedSelector string
	RowCount        int
	SkippedRows     int
}

// ExtractListing parses a listing page into order summaries. baseURL is
// used to absolutize relative detail links. A page without any
// recognizable listing container fails with ListingParseError; a page
// with a container but no rows yields an empty, final page.
func ExtractListing(html, baseURL string) (*ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, ListingParseError{Reason: "invalid html: " + err.Error()}
	}

	page := &ListingPage{}
	var rows *goquery.Selection
	for _, selector := range rowSelectors {
		found := doc.Find(selector)
		if found.Length() > 0 {
			rows = found
			page.MatchedSelector = selector
			break
		}
	}

	if rows == nil {
		for _, selector := range listingContainers {
			if doc.Find(selector).Length() > 0 {
				// Recognizable listing, just past the last page.
				return page, nil
			}
		}
		return nil, ListingParseError{Reason: "no listing container matched"}
	}

	page.RowCount = rows.Length()
	rows.Each(func(_ int, row *goquery.Selection) {
		order, ok := extractRow(row, baseURL)
		if !ok {
			page.SkippedRows++
			return
		}
		page.Orders = append(page.Orders, order)
	})

	page.HasNext = hasNextPage(doc)
	return page, nil
}

// extractRow pulls one order summary out of a listing row. A row without
// a parseable integer id is not a record.
func extractRow(row *goquery.Selection, baseURL string) (models.OrderSummary, bool) {
	id, ok := extractRowID(row)
	if !ok {
		return models.OrderSummary{}, false
	}

	order := models.OrderSummary{
		ID:      id,
		Created: extractCreated(row),
		Status:  extractStatus(row),
	}

	// The lottery and customer cells share the same user-card markup;
	// they appear in listing order.
	userInfos := row.Find(".user-card .user-info")
	if userInfos.Length() > 0 {
		order.Lottery = CleanText(userInfos.Eq(0).Find(".tb-lead").First().Text())
	}
	if userInfos.Length() > 1 {
		order.Customer = CleanText(userInfos.Eq(1).Find(".tb-lead").First().Text())
	}

	if link := row.Find(".whatsapp-message-link").First(); link.Length() > 0 {
		order.Phone = strings.TrimLeft(CleanText(link.Text()), "+ ")
	}

	order.TicketCount = CleanText(row.Find(".nk-tb-col.tb-col-md .tb-sub.text-primary").First().Text())

	if cell := row.Find(".nk-tb-col.tb-col-sm .tb-lead").First(); cell.Length() > 0 {
		text := CleanText(cell.Text())
		if money := ExtractMoney(text); money != "" {
			order.Value = money
		} else {
			order.Value = text
		}
	}

	order.DetailURL = extractDetailURL(row, baseURL)
	return order, true
}

func extractRowID(row *goquery.Selection) (int, bool) {
	// Checkbox value is the most reliable source.
	if value, ok := row.Find("input.model-id-checkbox").First().Attr("value"); ok {
		if id, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return id, true
		}
	}

	// Fall back to the "#1313" link text in the first column.
	link := row.Find(".nk-tb-col .tb-lead a").First()
	if link.Length() == 0 {
		link = row.Find("a").First()
	}
	if match := reOrderID.FindStringSubmatch(CleanText(link.Text())); match != nil {
		if id, err := strconv.Atoi(match[1]); err == nil {
			return id, true
		}
	}
	return 0, false
}

func extractCreated(row *goquery.Selection) string {
	elem := row.Find(`.nk-tb-col.tb-col-md .tb-lead[data-original-title]`).First()
	if elem.Length() > 0 {
		if title, ok := elem.Attr("data-original-title"); ok && strings.TrimSpace(title) != "" {
			return CleanText(title)
		}
		return CleanText(elem.Text())
	}
	return CleanText(row.Find(".nk-tb-col.tb-col-md .tb-lead").First().Text())
}

func extractStatus(row *goquery.Selection) string {
	if badge := row.Find(".nk-tb-col.tb-col-xl .badge").First(); badge.Length() > 0 {
		return CleanText(badge.Text())
	}

	dot := row.Find(".nk-tb-col.tb-col-xl .dot").First()
	if dot.Length() == 0 {
		return ""
	}
	class, _ := dot.Attr("class")
	switch {
	case strings.Contains(class, "bg-success"):
		return "Aprovado"
	case strings.Contains(class, "bg-danger"):
		return "Cancelado"
	case strings.Contains(class, "bg-warning"):
		return "Pendente"
	}
	return ""
}

func extractDetailURL(row *goquery.Selection, baseURL string) string {
	for _, selector := range detailLinkSelectors {
		href, ok := row.Find(selector).First().Attr("href")
		if !ok || href == "" {
			continue
		}
		switch {
		case strings.HasPrefix(href, "http"):
			return href
		case strings.HasPrefix(href, "/"):
			return strings.TrimRight(baseURL, "/") + href
		default:
			return strings.TrimRight(baseURL, "/") + "/" + href
		}
	}
	return ""
}

// hasNextPage reports whether an enabled next-page control is present.
func hasNextPage(doc *goquery.Document) bool {
	for _, selector := range nextPageSelectors {
		link := doc.Find(selector).First()
		if link.Length() == 0 {
			continue
		}
		if parentClass, _ := link.Parent().Attr("class"); strings.Contains(parentClass, "disabled") {
			return false
		}
		if class, _ := link.Attr("class"); strings.Contains(class, "disabled") {
			return false
		}
		return true
	}
	return false
}
