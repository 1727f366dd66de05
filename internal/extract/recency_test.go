package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/listing-radar/internal/entity"
)

// fixedNow pins the classifier clock so hour arithmetic is exact.
var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func classifierAt(t *testing.T) *RecencyClassifier {
	t.Helper()
	return NewRecencyClassifierAt(func() time.Time { return fixedNow })
}

func detailPage(head, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html><html><head>%s</head><body>%s</body></html>`, head, body)
}

func TestClassifyHTML_ExactFromDatePublished(t *testing.T) {
	c := classifierAt(t)

	html := detailPage(
		`<meta itemprop="datePublished" content="2025-03-10T06:00:00Z">`,
		`<h1>Depto</h1>`,
	)
	ev := c.ClassifyHTML(html)

	assert.Equal(t, entity.EvidenceExact, ev.Kind)
	assert.InDelta(t, 6.0, ev.HoursAgo, 1e-9)
}

func TestClassifyHTML_ExactFromOgUpdatedTime(t *testing.T) {
	c := classifierAt(t)

	html := detailPage(
		`<meta property="og:updated_time" content="2025-03-10T09:00:00Z">`,
		``,
	)
	ev := c.ClassifyHTML(html)

	assert.Equal(t, entity.EvidenceExact, ev.Kind)
	assert.InDelta(t, 3.0, ev.HoursAgo, 1e-9)
}

func TestClassifyHTML_ExactBeatsRelativeText(t *testing.T) {
	c := classifierAt(t)

	// Conflicting signals: machine-readable timestamp says 6h, visible text
	// says 1h. The machine-readable value must win.
	html := detailPage(
		`<meta itemprop="datePublished" content="2025-03-10T06:00:00Z">`,
		`<span>Publicado hace 1 hora</span>`,
	)
	ev := c.ClassifyHTML(html)

	assert.Equal(t, entity.EvidenceExact, ev.Kind)
	assert.InDelta(t, 6.0, ev.HoursAgo, 1e-9)
}

func TestClassifyHTML_FutureTimestampClampedToZero(t *testing.T) {
	c := classifierAt(t)

	html := detailPage(
		`<meta itemprop="datePublished" content="2025-03-10T13:30:00Z">`,
		``,
	)
	ev := c.ClassifyHTML(html)

	assert.Equal(t, entity.EvidenceExact, ev.Kind)
	assert.Zero(t, ev.HoursAgo)
}

func TestClassifyHTML_RelativeTimeTable(t *testing.T) {
	c := classifierAt(t)

	tests := []struct {
		name  string
		body  string
		hours float64
	}{
		{"publicado hoy", `<span>Publicado hoy</span>`, 0},
		{"bare hoy", `<div>Aviso publicado: hoy</div>`, 0},
		{"minutes", `<span>hace 45 min</span>`, 0.75},
		{"minutos spelled out", `<span>hace 30 minutos</span>`, 0.5},
		{"single hour", `<span>hace 1 hora</span>`, 1},
		{"hours", `<span>hace 3 horas</span>`, 3},
		{"ayer", `<span>Publicado ayer</span>`, 24},
		{"days", `<span>hace 5 días</span>`, 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := c.ClassifyHTML(detailPage("", tt.body))
			require.Equal(t, entity.EvidenceApproximate, ev.Kind)
			assert.InDelta(t, tt.hours, ev.HoursAgo, 1e-9)
		})
	}
}

func TestClassifyHTML_TodayBeatsCoarserText(t *testing.T) {
	c := classifierAt(t)

	// "hoy" appears alongside an "hace N días" mention elsewhere on the
	// page; the table order makes "hoy" win.
	ev := c.ClassifyHTML(detailPage("", `<span>Publicado hoy</span><span>hace 3 días bajó el precio</span>`))
	require.Equal(t, entity.EvidenceApproximate, ev.Kind)
	assert.Zero(t, ev.HoursAgo)
}

func TestClassifyHTML_Indeterminate(t *testing.T) {
	c := classifierAt(t)

	ev := c.ClassifyHTML(detailPage("", `<h1>Depto 2 amb</h1><p>Luminoso, con balcón.</p>`))
	assert.Equal(t, entity.EvidenceIndeterminate, ev.Kind)
}

func TestClassifyHTML_UnparseableMetadataFallsThrough(t *testing.T) {
	c := classifierAt(t)

	html := detailPage(
		`<meta itemprop="datePublished" content="ayer a la tarde">`,
		`<span>hace 2 horas</span>`,
	)
	ev := c.ClassifyHTML(html)

	assert.Equal(t, entity.EvidenceApproximate, ev.Kind)
	assert.InDelta(t, 2.0, ev.HoursAgo, 1e-9)
}

type stubFetcher struct {
	html string
	err  error
}

func (s stubFetcher) Fetch(context.Context, string) (string, error) {
	return s.html, s.err
}

func TestClassify_FetchFailureDegradesToIndeterminate(t *testing.T) {
	c := classifierAt(t)

	ev := c.Classify(context.Background(), stubFetcher{err: errors.New("net::ERR_TIMED_OUT")}, "https://example.com/x")
	assert.Equal(t, entity.EvidenceIndeterminate, ev.Kind)
}

func TestClassify_FetchSuccess(t *testing.T) {
	c := classifierAt(t)

	html := detailPage(`<meta itemprop="datePublished" content="2025-03-10T11:00:00Z">`, "")
	ev := c.Classify(context.Background(), stubFetcher{html: html}, "https://example.com/x")
	assert.Equal(t, entity.EvidenceExact, ev.Kind)
	assert.InDelta(t, 1.0, ev.HoursAgo, 1e-9)
}
