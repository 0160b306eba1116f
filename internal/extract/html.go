package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors for the two page fragments handed to the generator. Everything
// outside them is navigation chrome and ads.
const (
	postSelector         = ".post"
	listingTableSelector = ".main_table"
)

// IsolatePost returns the outer HTML of the first ".post" element, the
// fragment holding one audiobook's details.
func IsolatePost(body string) (string, error) {
	return isolate(body, postSelector)
}

// IsolateListingTable returns the outer HTML of the first ".main_table"
// element, the table of newly listed audiobooks.
func IsolateListingTable(body string) (string, error) {
	return isolate(body, listingTableSelector)
}

func isolate(body, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("no %q element in page", selector)
	}
	fragment, err := goquery.OuterHtml(sel)
	if err != nil {
		return "", fmt.Errorf("render %q fragment: %w", selector, err)
	}
	return fragment, nil
}
