// Package extract turns rendered listing-site HTML into structured facts:
// candidate listing URLs, publication-age evidence, and page metadata for
// notifications. It never touches the network; callers hand it the HTML a
// browser already rendered.
package extract

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/listing-radar/internal/entity"
	"github.com/user/listing-radar/pkg/utils"
)

// linkStrategies are the anchor-collection passes, tried in order until one
// yields at least one match. The scoped pass relies on the site's result-list
// containers; when the markup shifts and that silently returns nothing, the
// whole-document pass takes over with the same allow-pattern.
var linkStrategies = []struct {
	name     string
	selector string
}{
	{"result-containers", "main a[href], [class*='posting'] a[href], [data-qa*='posting'] a[href], article a[href]"},
	{"whole-document", "a[href]"},
}

// LinkExtractor discovers candidate listing URLs on a rendered search page.
// The allow-pattern is authoritative: pagination, social-share and
// javascript: anchors are excluded by failing to match it, not by a
// blocklist.
type LinkExtractor struct {
	pattern *regexp.Regexp
}

// NewLinkExtractor compiles the listing-URL path pattern.
func NewLinkExtractor(pattern string) (*LinkExtractor, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("compile listing pattern: %w", err)
	}
	return &LinkExtractor{pattern: re}, nil
}

// Extract returns up to limit candidates in document order, deduplicated by
// canonical URL (first occurrence wins). Document order is the ranking
// signal: the search URLs request descending publish order, so earlier
// anchors are the fresher listings.
func (e *LinkExtractor) Extract(pageURL, html string, limit int) ([]entity.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	for _, strategy := range linkStrategies {
		candidates := e.collect(doc, pageURL, strategy.selector, limit)
		if len(candidates) > 0 {
			slog.Debug("Link extraction strategy succeeded",
				"strategy", strategy.name, "candidates", len(candidates))
			return candidates, nil
		}
	}
	return nil, nil
}

func (e *LinkExtractor) collect(doc *goquery.Document, pageURL, selector string, limit int) []entity.Candidate {
	var candidates []entity.Candidate
	seen := make(map[string]struct{})

	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}

		normalized, err := utils.NormalizeHref(pageURL, href)
		if err != nil {
			// Malformed or non-http href; skip silently.
			return true
		}
		if !e.matches(normalized) {
			return true
		}
		if _, dup := seen[normalized]; dup {
			return true
		}
		seen[normalized] = struct{}{}

		candidates = append(candidates, entity.Candidate{
			URL:       normalized,
			TitleHint: CollapseWhitespace(sel.Text()),
		})
		return limit <= 0 || len(candidates) < limit
	})

	return candidates
}

// matches applies the allow-pattern to the URL path, so that host names or
// query leftovers can never satisfy a path-shape pattern.
func (e *LinkExtractor) matches(normalized string) bool {
	u, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	return e.pattern.MatchString(u.Path)
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// CollapseWhitespace squashes runs of whitespace to single spaces and trims,
// matching how anchor text renders on screen.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
