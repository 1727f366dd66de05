package usecase

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/listing-radar/internal/entity"
	"github.com/user/listing-radar/internal/extract"
	"github.com/user/listing-radar/pkg/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

const testPattern = `/propiedades/.+-\d+\.html`

const testSearchURL = "https://www.zonaprop.com.ar/departamentos-alquiler-palermo.html"

// searchPage links two listings; detail pages carry "publicado hoy" and a
// stale machine-readable timestamp respectively.
const searchPage = `<html><body><main>
<article><a href="/propiedades/depto-fresco-1001.html">Depto fresco</a></article>
<article><a href="/propiedades/depto-viejo-1002.html">Depto viejo</a></article>
</main></body></html>`

const freshDetail = `<html><head><title>Depto fresco</title></head>
<body><h1>Depto fresco</h1><span>Publicado hoy</span></body></html>`

const staleDetail = `<html><head>
<meta itemprop="datePublished" content="2020-01-01T00:00:00Z">
</head><body><h1>Depto viejo</h1></body></html>`

const (
	freshURL = "https://www.zonaprop.com.ar/propiedades/depto-fresco-1001.html"
	staleURL = "https://www.zonaprop.com.ar/propiedades/depto-viejo-1002.html"
)

type fakeFetcher struct {
	pages   map[string]string
	errs    map[string]error
	fetches []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.fetches = append(f.fetches, url)
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	html, ok := f.pages[url]
	if !ok {
		return "", errors.New("unexpected fetch: " + url)
	}
	return html, nil
}

type fakeSeen struct {
	entries map[string]time.Time
	flushes int
}

func newFakeSeen() *fakeSeen {
	return &fakeSeen{entries: make(map[string]time.Time)}
}

func (s *fakeSeen) Contains(_ context.Context, url string) (bool, error) {
	_, ok := s.entries[url]
	return ok, nil
}

func (s *fakeSeen) Add(_ context.Context, url string, at time.Time) error {
	s.entries[url] = at
	return nil
}

func (s *fakeSeen) Flush(context.Context) error {
	s.flushes++
	return nil
}

func (s *fakeSeen) Len(context.Context) (int64, error) {
	return int64(len(s.entries)), nil
}

type fakeNotifier struct {
	delivered []*entity.NotificationPayload
	failFor   map[string]error
	onDeliver func()
}

func (n *fakeNotifier) Deliver(_ context.Context, p *entity.NotificationPayload) error {
	if n.onDeliver != nil {
		n.onDeliver()
	}
	if err, ok := n.failFor[p.URL]; ok {
		return err
	}
	n.delivered = append(n.delivered, p)
	return nil
}

type fakeArchive struct {
	saved []*entity.Listing
}

func (a *fakeArchive) Save(_ context.Context, l *entity.Listing) error {
	a.saved = append(a.saved, l)
	return nil
}

func (a *fakeArchive) FindByURL(context.Context, string) (*entity.Listing, error) {
	return nil, nil
}

type harness struct {
	radar    Radar
	fetcher  *fakeFetcher
	seen     *fakeSeen
	notifier *fakeNotifier
	archive  *fakeArchive
}

func newHarness(t *testing.T, mutate func(*RadarConfig)) *harness {
	t.Helper()

	extractor, err := extract.NewLinkExtractor(testPattern)
	require.NoError(t, err)

	cfg := RadarConfig{
		Searches:           []entity.SearchSpec{{Name: "Palermo", URL: testSearchURL}},
		MaxAgeHours:        24,
		Mode:               ModeSoft,
		TopNPerSearch:      12,
		MaxNotifyPerSearch: 12,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{
		fetcher: &fakeFetcher{
			pages: map[string]string{
				testSearchURL: searchPage,
				freshURL:      freshDetail,
				staleURL:      staleDetail,
			},
			errs: map[string]error{},
		},
		seen:     newFakeSeen(),
		notifier: &fakeNotifier{failFor: map[string]error{}},
		archive:  &fakeArchive{},
	}
	h.radar = NewRadar(cfg, h.fetcher, extractor, extract.NewRecencyClassifier(),
		h.seen, h.notifier, h.archive)
	return h
}

func TestRunOnce_FreshAdmittedStaleRejected(t *testing.T) {
	h := newHarness(t, nil)

	summary, err := h.radar.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Candidates)
	assert.Equal(t, 1, summary.Admitted)
	assert.Equal(t, 1, summary.Notified)
	require.Len(t, h.notifier.delivered, 1)
	assert.Equal(t, freshURL, h.notifier.delivered[0].URL)
	assert.Equal(t, "Depto fresco", h.notifier.delivered[0].Title)

	// Only the delivered listing lands in seen store and archive.
	seen, _ := h.seen.Contains(context.Background(), freshURL)
	assert.True(t, seen)
	seen, _ = h.seen.Contains(context.Background(), staleURL)
	assert.False(t, seen)
	require.Len(t, h.archive.saved, 1)
	assert.Equal(t, "approximate", h.archive.saved[0].EvidenceKind)
}

func TestRunOnce_Idempotent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first, err := h.radar.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, first.Notified)

	second, err := h.radar.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Notified, "second run with unchanged page must notify nothing")
	assert.Equal(t, 1, second.AlreadySeen)
	require.Len(t, h.notifier.delivered, 1)
}

func TestRunOnce_DeliveryFailureRetriedNextRun(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.notifier.failFor[freshURL] = errors.New("429 Too Many Requests")

	first, err := h.radar.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, first.Notified)
	assert.Equal(t, 1, first.DeliveryFailures)

	seen, _ := h.seen.Contains(ctx, freshURL)
	assert.False(t, seen, "failed delivery must not be marked seen")

	// Transport recovers; next run delivers the same candidate.
	delete(h.notifier.failFor, freshURL)
	second, err := h.radar.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Notified)
}

func TestRunOnce_WarmupSeedsWithoutNotifying(t *testing.T) {
	h := newHarness(t, func(c *RadarConfig) { c.Warmup = true })
	ctx := context.Background()

	summary, err := h.radar.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Notified)
	assert.Empty(t, h.notifier.delivered)

	for _, url := range []string{freshURL, staleURL} {
		seen, _ := h.seen.Contains(ctx, url)
		assert.True(t, seen, url)
	}
	// Detail pages are never fetched during warm-up.
	assert.Equal(t, []string{testSearchURL}, h.fetcher.fetches)
}

func TestRunOnce_ForceBypassesSeenButNotPolicy(t *testing.T) {
	h := newHarness(t, func(c *RadarConfig) { c.Force = true })
	ctx := context.Background()

	require.NoError(t, h.seen.Add(ctx, freshURL, time.Now()))
	require.NoError(t, h.seen.Add(ctx, staleURL, time.Now()))

	summary, err := h.radar.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Notified, "force re-delivers seen listings")
	assert.Equal(t, 1, summary.Admitted, "stale listing still rejected by policy")
}

func TestRunOnce_PerSearchNotificationCap(t *testing.T) {
	h := newHarness(t, func(c *RadarConfig) { c.MaxNotifyPerSearch = 0 })

	summary, err := h.radar.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Notified)
	assert.Empty(t, h.notifier.delivered)
}

func TestRunOnce_SearchFailureDoesNotAbortOthers(t *testing.T) {
	const brokenURL = "https://www.zonaprop.com.ar/busqueda-rota.html"
	h := newHarness(t, func(c *RadarConfig) {
		c.Searches = []entity.SearchSpec{
			{Name: "Rota", URL: brokenURL},
			{Name: "Palermo", URL: testSearchURL},
		}
	})
	h.fetcher.errs[brokenURL] = errors.New("net::ERR_NAME_NOT_RESOLVED")

	summary, err := h.radar.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Searches)
	assert.Equal(t, 1, summary.SearchFailures)
	assert.Equal(t, 1, summary.Notified, "second search must still run")
}

func TestRunOnce_DetailFetchFailureSoftAdmits(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.errs[freshURL] = errors.New("timeout")

	summary, err := h.radar.RunOnce(context.Background())
	require.NoError(t, err)
	// Soft mode: an unreachable detail page is indeterminate, admitted with
	// the anchor text as the only metadata.
	assert.Equal(t, 1, summary.Notified)
	assert.Equal(t, "Depto fresco", h.notifier.delivered[0].Title)
}

func TestRunOnce_StrictModeRejectsIndeterminate(t *testing.T) {
	h := newHarness(t, func(c *RadarConfig) { c.Mode = ModeStrictToday })
	h.fetcher.errs[freshURL] = errors.New("timeout")

	summary, err := h.radar.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Notified)
}

func TestRunOnce_PerFetchDelayThrottlesEveryFetch(t *testing.T) {
	const delay = 15 * time.Millisecond
	h := newHarness(t, func(c *RadarConfig) { c.PerFetchDelay = delay })

	start := time.Now()
	_, err := h.radar.RunOnce(context.Background())
	require.NoError(t, err)

	// One search-page fetch plus two detail fetches, each throttled.
	require.Len(t, h.fetcher.fetches, 3)
	assert.GreaterOrEqual(t, time.Since(start), 3*delay,
		"delay must apply after detail fetches, not only the search page")
}

func TestRunning_ReflectsInFlightPass(t *testing.T) {
	h := newHarness(t, nil)
	assert.False(t, h.radar.Running())

	var duringDelivery bool
	h.notifier.onDeliver = func() { duringDelivery = h.radar.Running() }

	_, err := h.radar.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, duringDelivery, "Running must report true while the pass executes")
	assert.False(t, h.radar.Running())
}

func TestRunOnce_SummaryExposed(t *testing.T) {
	h := newHarness(t, nil)
	assert.Nil(t, h.radar.LastSummary())

	_, err := h.radar.RunOnce(context.Background())
	require.NoError(t, err)

	last := h.radar.LastSummary()
	require.NotNil(t, last)
	assert.Equal(t, 1, last.Notified)
	assert.False(t, last.FinishedAt.IsZero())
}
