package fetch

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/harvestlab/topic-harvester/internal/harvest"
)

// contentSelector matches the elements whose text makes up a page's content.
// Matches come back in document order.
const contentSelector = "p, h1, h2, h3, h4, h5, h6"

// TextExtractor distills fetched HTML into a page result.
type TextExtractor struct{}

var _ harvest.Extractor = (*TextExtractor)(nil)

// NewTextExtractor builds a TextExtractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Extract parses body as HTML and pulls out the title plus the space-joined
// text of every paragraph and heading. A page with no title or no matching
// elements yields empty strings, not an error.
func (e *TextExtractor) Extract(url string, body []byte) (harvest.PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return harvest.PageResult{}, fmt.Errorf("parse document: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
			title = strings.TrimSpace(og)
		}
	}

	var parts []string
	doc.Find(contentSelector).Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			parts = append(parts, text)
		}
	})

	return harvest.PageResult{
		URL:     url,
		Title:   title,
		Content: strings.Join(parts, " "),
	}, nil
}
