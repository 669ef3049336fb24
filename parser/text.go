package parser

import (
	"regexp"
	"strings"
)

var (
	reEmail    = regexp.MustCompile(`[\w.\-+]+@[\w.\-]+\.\w+`)
	reCPF      = regexp.MustCompile(`\d{3}\.\d{3}\.\d{3}-\d{2}`)
	rePhone    = regexp.MustCompile(`\+?\d{2}[\s.\-]?\d{4,5}[\s.\-]?\d{4}`)
	reDate     = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
	reDateTime = regexp.MustCompile(`\d{2}/\d{2}/\d{4}\s+\d{2}:\d{2}(?::\d{2})?`)
	reMoney    = regexp.MustCompile(`R\$\s*[\d.,]+`)
	reOrderID  = regexp.MustCompile(`#?(\d+)`)
)

// CleanText collapses runs of whitespace into single spaces.
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ExtractEmail returns the first email address in text, or "".
func ExtractEmail(text string) string {
	return reEmail.FindString(text)
}

// ExtractCPF returns the first formatted CPF in text, or "".
func ExtractCPF(text string) string {
	return reCPF.FindString(text)
}

// ExtractPhone returns the first phone-shaped token in text, or "".
func ExtractPhone(text string) string {
	return rePhone.FindString(text)
}

// ExtractDate returns the first dd/mm/yyyy date in text, or "".
func ExtractDate(text string) string {
	return reDate.FindString(text)
}

// ExtractDateTime returns the first dd/mm/yyyy hh:mm[:ss] stamp in text,
// or "".
func ExtractDateTime(text string) string {
	return reDateTime.FindString(text)
}

// ExtractMoney returns the first R$ amount in text, or "".
func ExtractMoney(text string) string {
	return reMoney.FindString(text)
}
