// Package models defines the data structures exchanged between the
// extraction engine and its callers.
package models

// OrderSummary is one row of the vendor's order listing. IDs are
// vendor-assigned and monotonically increasing, but not gap-free.
type OrderSummary struct {
	ID             int
	Created        string
	Status         string
	Lottery        string
	LotteryTickets string
	Customer       string
	Phone          string
	TicketCount    string
	Value          string
	DetailURL      string
}

// OrderDetail holds the enrichment scraped from an order's detail page.
// Every field is a plain string that defaults to "" when extraction
// misses, so merged output keeps a stable shape.
type OrderDetail struct {
	DateTime     string
	Email        string
	Phone        string
	CPF          string
	BirthDate    string
	PurchaseDate string
	PaymentID    string
	SubTotal     string
	Discounts    string
	Total        string
}

// Order is the externally returned unit: a listing row merged with its
// detail page. JSON names follow the vendor panel's vocabulary so the
// payload stays drop-in compatible with downstream consumers.
type Order struct {
	ID             int    `json:"id"`
	Created        string `json:"criado"`
	Status         string `json:"status"`
	Lottery        string `json:"sorteio"`
	LotteryTickets string `json:"bilhetes_totais_sorteio"`
	Customer       string `json:"cliente"`
	Phone          string `json:"telefone"`
	TicketCount    string `json:"qtd_bilhetes"`
	Value          string `json:"valor"`
	DetailURL      string `json:"detalhes_url"`

	DetailDateTime     string `json:"detalhe_data_hora"`
	DetailEmail        string `json:"detalhe_email"`
	DetailPhone        string `json:"detalhe_telefone"`
	DetailCPF          string `json:"detalhe_cpf"`
	DetailBirthDate    string `json:"detalhe_nascimento"`
	DetailPurchaseDate string `json:"detalhe_data_compra"`
	DetailPaymentID    string `json:"detalhe_pagamento_id"`
	DetailSubTotal     string `json:"detalhe_subtotal"`
	DetailDiscounts    string `json:"detalhe_descontos"`
	DetailTotal        string `json:"detalhe_total"`
}

// Merge combines a listing row with its detail enrichment. A zero-value
// detail produces an order whose detalhe_* fields are all empty strings,
// never absent keys.
func Merge(s OrderSummary, d OrderDetail) Order {
	return Order{
		ID:             s.ID,
		Created:        s.Created,
		Status:         s.Status,
		Lottery:        s.Lottery,
		LotteryTickets: s.LotteryTickets,
		Customer:       s.Customer,
		Phone:          s.Phone,
		TicketCount:    s.TicketCount,
		Value:          s.Value,
		DetailURL:      s.DetailURL,

		DetailDateTime:     d.DateTime,
		DetailEmail:        d.Email,
		DetailPhone:        d.Phone,
		DetailCPF:          d.CPF,
		DetailBirthDate:    d.BirthDate,
		DetailPurchaseDate: d.PurchaseDate,
		DetailPaymentID:    d.PaymentID,
		DetailSubTotal:     d.SubTotal,
		DetailDiscounts:    d.Discounts,
		DetailTotal:        d.Total,
	}
}

// PaginationMeta is attached to a result only when the caller supplied a
// limit. LastIDProcessed is the smallest id in the batch: the listing is
// descending, so the next probe continues with after_id=LastIDProcessed.
type PaginationMeta struct {
	LastIDProcessed int  `json:"last_id_processed"`
	HasMore         bool `json:"has_more"`
	Limit           int  `json:"limit"`
	LastIDRequested *int `json:"last_id_requested,omitempty"`
}

// ExtractionResult is the payload returned by a full or incremental run.
type ExtractionResult struct {
	Total       int             `json:"total"`
	GeneratedAt string          `json:"gerado_em"`
	Orders      []Order         `json:"pedidos"`
	Pagination  *PaginationMeta `json:"pagination,omitempty"`

	// Run metadata, reported to callers but kept out of the exported
	// vendor-shaped payload.
	RunID          string `json:"-"`
	Backend        string `json:"-"`
	CursorAdvanced bool   `json:"-"`
	DetailFailures int    `json:"-"`
	SkippedRows    int    `json:"-"`
	PagesFetched   int    `json:"-"`
	ExportFile     string `json:"-"`
}
