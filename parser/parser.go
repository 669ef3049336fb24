// Package parser turns vendor panel HTML into order records. All
// operations are pure: same HTML in, same records out.
package parser

import "fmt"

// ListingParseError reports a listing page whose row container could not
// be located at all. A single unparseable row is skipped and counted
// instead of raising this.
type ListingParseError struct {
	Reason string
}

func (e ListingParseError) Error() string {
	return fmt.Sprintf("listing parse: %s", e.Reason)
}

// DetailParseError reports a page that does not resemble an order detail
// page at all. Individual missing fields degrade to empty strings and do
// not raise this.
type DetailParseError struct {
	Reason string
}

func (e DetailParseError) Error() string {
	return fmt.Sprintf("detail parse: %s", e.Reason)
}
