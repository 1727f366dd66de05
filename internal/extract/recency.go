package extract

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/listing-radar/internal/entity"
	"github.com/user/listing-radar/internal/repository"
)

// metadataSelectors are the machine-readable timestamp sources, tried in
// priority order. The first parseable value wins and produces Exact
// evidence.
var metadataSelectors = []struct {
	selector string
	attr     string // empty means use text content
}{
	{"meta[itemprop='datePublished']", "content"},
	{"time[itemprop='datePublished']", "datetime"},
	{"meta[property='article:published_time']", "content"},
	{"meta[property='og:updated_time']", "content"},
}

// timestampLayouts cover the ISO-8601 shapes the site has been observed to
// emit, from full RFC3339 down to a bare date.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// relativeTimeRules is the ordered relative-time table: each visible-text
// pattern maps to an hours interpretation. Earlier rules take precedence.
// The coarser patterns ("ayer", "hace N días") are surfaced too; whether
// day-granularity evidence is admissible is the policy's call, not ours.
var relativeTimeRules = []struct {
	re    *regexp.Regexp
	hours func(groups []string) float64
}{
	{regexp.MustCompile(`(?i)publicado\s+hoy|\bhoy\b`), func([]string) float64 { return 0 }},
	{regexp.MustCompile(`(?i)hace\s+(\d+)\s*min`), func(g []string) float64 { return mustFloat(g[1]) / 60 }},
	{regexp.MustCompile(`(?i)hace\s+(\d+)\s*horas?`), func(g []string) float64 { return mustFloat(g[1]) }},
	{regexp.MustCompile(`(?i)\bayer\b`), func([]string) float64 { return 24 }},
	{regexp.MustCompile(`(?i)hace\s+(\d+)\s*d[ií]as?`), func(g []string) float64 { return mustFloat(g[1]) * 24 }},
}

// RecencyClassifier infers how many hours ago a listing was published by
// trying evidence sources in priority order: structured metadata first,
// then visible relative-time text, else Indeterminate.
type RecencyClassifier struct {
	now func() time.Time
}

// NewRecencyClassifier builds a classifier using the wall clock.
func NewRecencyClassifier() *RecencyClassifier {
	return &RecencyClassifier{now: time.Now}
}

// NewRecencyClassifierAt builds a classifier with a fixed clock, for tests.
func NewRecencyClassifierAt(now func() time.Time) *RecencyClassifier {
	return &RecencyClassifier{now: now}
}

// Classify fetches the detail page and classifies it. Fetch failures
// degrade to Indeterminate instead of propagating; a page we could not
// load simply has no usable signal.
func (c *RecencyClassifier) Classify(ctx context.Context, fetcher repository.PageFetcher, url string) entity.RecencyEvidence {
	html, err := fetcher.Fetch(ctx, url)
	if err != nil {
		slog.Warn("Detail page fetch failed, treating as indeterminate", "url", url, "error", err)
		return entity.Indeterminate()
	}
	return c.ClassifyHTML(html)
}

// ClassifyHTML classifies an already-rendered detail page.
func (c *RecencyClassifier) ClassifyHTML(html string) entity.RecencyEvidence {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return entity.Indeterminate()
	}

	if ev, ok := c.fromMetadata(doc); ok {
		return ev
	}
	if ev, ok := c.fromVisibleText(doc); ok {
		return ev
	}
	return entity.Indeterminate()
}

func (c *RecencyClassifier) fromMetadata(doc *goquery.Document) (entity.RecencyEvidence, bool) {
	for _, src := range metadataSelectors {
		var raw string
		doc.Find(src.selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if src.attr != "" {
				raw, _ = sel.Attr(src.attr)
			} else {
				raw = strings.TrimSpace(sel.Text())
			}
			return raw == ""
		})
		if raw == "" {
			continue
		}
		if ts, ok := parseTimestamp(raw); ok {
			hours := c.now().UTC().Sub(ts).Hours()
			return entity.Exact(hours), true
		}
		// Unparseable value in this source; fall through to the next one.
	}
	return entity.RecencyEvidence{}, false
}

func (c *RecencyClassifier) fromVisibleText(doc *goquery.Document) (entity.RecencyEvidence, bool) {
	text := CollapseWhitespace(doc.Find("body").Text())
	if text == "" {
		return entity.RecencyEvidence{}, false
	}
	for _, rule := range relativeTimeRules {
		if groups := rule.re.FindStringSubmatch(text); groups != nil {
			return entity.Approximate(rule.hours(groups)), true
		}
	}
	return entity.RecencyEvidence{}, false
}

// parseTimestamp accepts ISO-8601-like values, tolerating a trailing Z and
// a missing zone (treated as UTC, matching the site's own convention).
func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func mustFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
