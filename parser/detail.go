package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/omtx/go-extract-orders/models"
)

// Minimal containers that identify a detail (invoice) page.
var detailContainers = []string{
	".invoice-wrap",
	".invoice",
	"#invoice",
	".invoice-contact-info",
}

// ExtractDetail parses an order detail page. Each field runs through an
// ordered list of strategies, structured selectors first and free-text
// patterns last; a field whose strategies all miss is an empty string.
// Only a page with no recognizable invoice container fails outright.
func ExtractDetail(html string) (models.OrderDetail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.OrderDetail{}, DetailParseError{Reason: "invalid html: " + err.Error()}
	}

	found := false
	for _, selector := range detailContainers {
		if doc.Find(selector).Length() > 0 {
			found = true
			break
		}
	}
	if !found {
		return models.OrderDetail{}, DetailParseError{Reason: "no invoice container matched"}
	}

	text := doc.Text()
	detail := models.OrderDetail{
		DateTime:     extractDetailDateTime(doc, text),
		Email:        extractDetailEmail(doc, text),
		Phone:        extractDetailPhone(doc, text),
		CPF:          ExtractCPF(text),
		BirthDate:    extractLabeledDate(doc, text, "Nascimento"),
		PurchaseDate: extractPurchaseDate(doc, text),
		PaymentID:    extractPaymentID(doc),
		SubTotal:     extractBillAmount(doc, "Subtotal"),
		Discounts:    extractBillAmount(doc, "Desconto"),
		Total:        extractBillAmount(doc, "Total"),
	}
	return detail, nil
}

func selectorText(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		if elem := doc.Find(selector).First(); elem.Length() > 0 {
			if text := CleanText(elem.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

func extractDetailDateTime(doc *goquery.Document, text string) string {
	if t := selectorText(doc, `[data-field="data_hora"]`, ".data-hora", ".pedido-data"); t != "" {
		if stamp := ExtractDateTime(t); stamp != "" {
			return stamp
		}
		if date := ExtractDate(t); date != "" {
			return date
		}
	}
	if stamp := ExtractDateTime(text); stamp != "" {
		return stamp
	}
	return ExtractDate(text)
}

func extractDetailEmail(doc *goquery.Document, text string) string {
	candidates := []string{
		".invoice-contact-info ul.list-plain li:first-child span",
		".invoice-contact-info li:first-child span",
	}
	if t := selectorText(doc, candidates...); t != "" {
		if email := ExtractEmail(t); email != "" {
			return email
		}
	}
	return ExtractEmail(text)
}

func extractDetailPhone(doc *goquery.Document, text string) string {
	if phone := ExtractPhone(text); phone != "" {
		return phone
	}
	return selectorText(doc, ".telefone", `[data-field="telefone"]`)
}

// extractLabeledDate finds the first element carrying label and pulls a
// date out of it, falling back to a labeled scan of the page text.
func extractLabeledDate(doc *goquery.Document, text, label string) string {
	date := ""
	doc.Find("li, tr, .invoice-desc span, dd").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := CleanText(s.Text())
		if !strings.Contains(t, label) {
			return true
		}
		if d := ExtractDate(t); d != "" {
			date = d
			return false
		}
		return true
	})
	if date != "" {
		return date
	}

	// Labeled fragment in the raw text, date within the next few tokens.
	if idx := strings.Index(text, label); idx >= 0 {
		window := text[idx:]
		if len(window) > 80 {
			window = window[:80]
		}
		return ExtractDate(window)
	}
	return ""
}

func extractPurchaseDate(doc *goquery.Document, text string) string {
	if t := selectorText(doc, `[data-field="data_compra"]`, ".data-compra"); t != "" {
		if d := ExtractDate(t); d != "" {
			return d
		}
	}
	if d := extractLabeledDate(doc, text, "Compra"); d != "" {
		return d
	}
	return ExtractDate(text)
}

func extractPaymentID(doc *goquery.Document) string {
	if t := selectorText(doc, `[data-field="pagamento_id"]`, ".pagamento-id"); t != "" {
		return t
	}

	id := ""
	doc.Find("li, tr, dd, span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := CleanText(s.Text())
		if !strings.Contains(t, "Pagamento") {
			return true
		}
		fields := strings.Fields(t)
		last := fields[len(fields)-1]
		if last != "Pagamento" && !strings.HasSuffix(last, ":") {
			id = last
			return false
		}
		return true
	})
	return id
}

// extractBillAmount reads the invoice totals table: the row whose label
// starts with label yields its first monetary amount.
func extractBillAmount(doc *goquery.Document, label string) string {
	amount := ""
	doc.Find(".invoice-bills tr, table tr, li").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := CleanText(s.Text())
		if !strings.HasPrefix(t, label) {
			return true
		}
		if money := ExtractMoney(t); money != "" {
			amount = money
			return false
		}
		return true
	})
	return amount
}
