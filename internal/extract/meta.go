package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageMeta is the best-effort notification metadata scraped from a listing
// detail page.
type PageMeta struct {
	Title       string
	Description string
	ImageURL    string
}

// ExtractPageMeta pulls title, description and a preview image from a
// rendered detail page. Every field is optional; missing markup just leaves
// it empty.
func ExtractPageMeta(html string) PageMeta {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageMeta{}
	}

	meta := PageMeta{}

	// Visible headline first, <title> and og:title as fallbacks.
	if h1 := CollapseWhitespace(doc.Find("h1").First().Text()); h1 != "" {
		meta.Title = h1
	} else if title := CollapseWhitespace(doc.Find("title").First().Text()); title != "" {
		meta.Title = title
	} else if og, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		meta.Title = CollapseWhitespace(og)
	}

	if desc, ok := doc.Find("meta[name='description']").Attr("content"); ok {
		meta.Description = CollapseWhitespace(desc)
	} else if og, ok := doc.Find("meta[property='og:description']").Attr("content"); ok {
		meta.Description = CollapseWhitespace(og)
	}

	if img, ok := doc.Find("meta[property='og:image']").Attr("content"); ok {
		meta.ImageURL = strings.TrimSpace(img)
	}

	return meta
}
