package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/user/listing-radar/internal/entity"
	"github.com/user/listing-radar/internal/extract"
	"github.com/user/listing-radar/internal/repository"
	"github.com/user/listing-radar/pkg/metrics"
)

// RadarConfig carries the run-level policy knobs for the orchestrator.
type RadarConfig struct {
	Searches           []entity.SearchSpec
	MaxAgeHours        float64
	Mode               string // ModeSoft or ModeStrictToday
	TopNPerSearch      int
	MaxNotifyPerSearch int
	PerLinkDelay       time.Duration
	PerFetchDelay      time.Duration
	// Warmup seeds the seen store from every discovered candidate without
	// sending anything, to avoid a notification storm on first deployment.
	Warmup bool
	// Force bypasses the seen-store filter (but not the admission policy)
	// for manual re-runs.
	Force bool
}

// RunSummary aggregates what one pass over all searches did.
type RunSummary struct {
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	Searches         int       `json:"searches"`
	SearchFailures   int       `json:"search_failures"`
	Candidates       int       `json:"candidates"`
	AlreadySeen      int       `json:"already_seen"`
	Admitted         int       `json:"admitted"`
	Notified         int       `json:"notified"`
	DeliveryFailures int       `json:"delivery_failures"`
}

// Radar defines the interface for driving the whole pipeline.
type Radar interface {
	// RunOnce performs one sequential pass over all configured searches.
	// Per-search and per-candidate failures are absorbed; the returned
	// error is reserved for run-level problems.
	RunOnce(ctx context.Context) (*RunSummary, error)
	// LastSummary returns the most recent run's summary, or nil before the
	// first run completes.
	LastSummary() *RunSummary
	// Running reports whether a pass is currently in flight.
	Running() bool
}

type radarUseCase struct {
	cfg        RadarConfig
	fetcher    repository.PageFetcher
	extractor  *extract.LinkExtractor
	classifier *extract.RecencyClassifier
	seen       repository.SeenRepository
	notifier   repository.NotifierRepository
	archive    repository.ListingArchive // nil disables archiving
	now        func() time.Time

	mu      sync.Mutex
	last    *RunSummary
	running bool
}

// NewRadar wires the pipeline components into an orchestrator.
func NewRadar(
	cfg RadarConfig,
	fetcher repository.PageFetcher,
	extractor *extract.LinkExtractor,
	classifier *extract.RecencyClassifier,
	seen repository.SeenRepository,
	notifier repository.NotifierRepository,
	archive repository.ListingArchive,
) Radar {
	return &radarUseCase{
		cfg:        cfg,
		fetcher:    fetcher,
		extractor:  extractor,
		classifier: classifier,
		seen:       seen,
		notifier:   notifier,
		archive:    archive,
		now:        time.Now,
	}
}

func (uc *radarUseCase) LastSummary() *RunSummary {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.last
}

func (uc *radarUseCase) Running() bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.running
}

// RunOnce proceeds sequentially: the browsing collaborator is a shared,
// stateful resource and the target site is rate-sensitive, so fetches are
// serialized and throttled rather than parallelized.
func (uc *radarUseCase) RunOnce(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{StartedAt: uc.now()}
	uc.mu.Lock()
	uc.running = true
	uc.mu.Unlock()
	defer func() {
		summary.FinishedAt = uc.now()
		uc.mu.Lock()
		uc.running = false
		uc.last = summary
		uc.mu.Unlock()
	}()

	for _, search := range uc.cfg.Searches {
		if ctx.Err() != nil {
			slog.Warn("Run interrupted, stopping before next search", "search", search.Label())
			break
		}
		summary.Searches++
		if err := uc.processSearch(ctx, search, summary); err != nil {
			// A failure in one search must never abort the remaining ones.
			summary.SearchFailures++
			metrics.SearchesTotal.WithLabelValues("failure").Inc()
			slog.Error("Search failed, moving on", "search", search.Label(), "error", err)
			continue
		}
		metrics.SearchesTotal.WithLabelValues("success").Inc()
	}

	slog.Info("Run finished",
		"searches", summary.Searches,
		"candidates", summary.Candidates,
		"already_seen", summary.AlreadySeen,
		"admitted", summary.Admitted,
		"notified", summary.Notified,
		"delivery_failures", summary.DeliveryFailures,
	)
	return summary, nil
}

func (uc *radarUseCase) processSearch(ctx context.Context, search entity.SearchSpec, summary *RunSummary) error {
	slog.Info("Fetching search page", "search", search.Label(), "url", search.URL)

	start := time.Now()
	html, err := uc.fetcher.Fetch(ctx, search.URL)
	metrics.PageFetchDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}
	uc.sleep(ctx, uc.cfg.PerFetchDelay)

	candidates, err := uc.extractor.Extract(search.URL, html, uc.cfg.TopNPerSearch)
	if err != nil {
		return err
	}
	summary.Candidates += len(candidates)
	metrics.CandidatesDiscovered.Add(float64(len(candidates)))
	slog.Info("Candidates extracted", "search", search.Label(), "count", len(candidates))

	notified := 0
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return nil
		}
		if notified >= uc.cfg.MaxNotifyPerSearch {
			slog.Info("Per-search notification cap reached", "search", search.Label(), "cap", uc.cfg.MaxNotifyPerSearch)
			break
		}

		if !uc.cfg.Force {
			seen, err := uc.seen.Contains(ctx, candidate.URL)
			if err != nil {
				// A broken read degrades like a missing store: risk one
				// duplicate rather than drop a listing.
				slog.Warn("Seen-store lookup failed, treating as unseen", "url", candidate.URL, "error", err)
			} else if seen {
				summary.AlreadySeen++
				continue
			}
		}

		if uc.cfg.Warmup {
			uc.markSeen(ctx, candidate.URL)
			continue
		}

		if uc.processCandidate(ctx, search, candidate, summary) {
			notified++
		}
		uc.sleep(ctx, uc.cfg.PerLinkDelay)
	}

	if uc.cfg.Warmup {
		if err := uc.seen.Flush(ctx); err != nil {
			slog.Error("Failed to flush seen store after warm-up", "error", err)
		}
	}
	return nil
}

// processCandidate classifies, admits and delivers one candidate. It
// reports whether a notification went out; all errors are absorbed here.
func (uc *radarUseCase) processCandidate(ctx context.Context, search entity.SearchSpec, candidate entity.Candidate, summary *RunSummary) bool {
	start := time.Now()
	html, fetchErr := uc.fetcher.Fetch(ctx, candidate.URL)
	metrics.PageFetchDuration.WithLabelValues("detail").Observe(time.Since(start).Seconds())
	uc.sleep(ctx, uc.cfg.PerFetchDelay)

	var evidence entity.RecencyEvidence
	var meta extract.PageMeta
	if fetchErr != nil {
		slog.Warn("Detail page fetch failed", "url", candidate.URL, "error", fetchErr)
		evidence = entity.Indeterminate()
	} else {
		evidence = uc.classifier.ClassifyHTML(html)
		meta = extract.ExtractPageMeta(html)
	}
	metrics.ClassificationsTotal.WithLabelValues(evidence.Kind.String()).Inc()

	decision := Admit(evidence, uc.cfg.MaxAgeHours, uc.cfg.Mode)
	metrics.AdmissionsTotal.WithLabelValues(admitLabel(decision.Admit), decision.Mode).Inc()
	slog.Debug("Candidate classified",
		"url", candidate.URL,
		"evidence", evidence.Kind.String(),
		"hours_ago", evidence.HoursAgo,
		"admit", decision.Admit,
		"mode", decision.Mode,
	)
	if !decision.Admit {
		return false
	}
	summary.Admitted++

	payload := uc.buildPayload(candidate, meta)
	if err := uc.notifier.Deliver(ctx, payload); err != nil {
		// Not marked seen: the candidate gets retried on the next run.
		summary.DeliveryFailures++
		slog.Error("Delivery failed, will retry next run", "url", candidate.URL, "error", err)
		return false
	}
	summary.Notified++
	slog.Info("Listing notified", "url", candidate.URL, "search", search.Label())

	uc.markSeen(ctx, candidate.URL)
	uc.archiveListing(ctx, search, payload, evidence)
	return true
}

// markSeen records and immediately flushes, trading a small
// write-amplification cost for crash-safety between deliveries.
func (uc *radarUseCase) markSeen(ctx context.Context, url string) {
	if err := uc.seen.Add(ctx, url, uc.now()); err != nil {
		slog.Error("Failed to mark URL as seen", "url", url, "error", err)
		return
	}
	if err := uc.seen.Flush(ctx); err != nil {
		slog.Error("Failed to flush seen store", "error", err)
	}
	if n, err := uc.seen.Len(ctx); err == nil {
		metrics.SeenStoreSize.Set(float64(n))
	}
}

func (uc *radarUseCase) buildPayload(candidate entity.Candidate, meta extract.PageMeta) *entity.NotificationPayload {
	title := meta.Title
	if title == "" {
		title = candidate.TitleHint
	}
	return &entity.NotificationPayload{
		URL:         candidate.URL,
		Title:       title,
		Description: meta.Description,
		ImageURL:    meta.ImageURL,
	}
}

func (uc *radarUseCase) archiveListing(ctx context.Context, search entity.SearchSpec, payload *entity.NotificationPayload, evidence entity.RecencyEvidence) {
	if uc.archive == nil {
		return
	}
	listing := &entity.Listing{
		URL:          payload.URL,
		Title:        payload.Title,
		Description:  payload.Description,
		ImageURL:     payload.ImageURL,
		SearchName:   search.Label(),
		EvidenceKind: evidence.Kind.String(),
		NotifiedAt:   uc.now(),
	}
	if evidence.Kind != entity.EvidenceIndeterminate {
		hours := evidence.HoursAgo
		listing.AgeHours = &hours
	}
	if err := uc.archive.Save(ctx, listing); err != nil {
		slog.Warn("Failed to archive listing", "url", payload.URL, "error", err)
	}
}

func (uc *radarUseCase) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func admitLabel(admit bool) string {
	if admit {
		return "admit"
	}
	return "reject"
}
