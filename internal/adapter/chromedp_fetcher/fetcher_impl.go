package chromedp_fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/user/listing-radar/internal/repository"
)

const userAgent = `Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36`

// ChromedpFetcher implements repository.PageFetcher with a single headless
// Chrome instance. Fetches are serialized: the target site is
// rate-sensitive and one throttled tab is deliberate, not a limitation.
type ChromedpFetcher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
	settle      time.Duration
	mu          sync.Mutex
}

// NewChromedpFetcher launches the Chrome allocator. settle is the extra wait
// after load for client-side rendering to fill the DOM in.
func NewChromedpFetcher(pageLoadTimeout, settle time.Duration) (*ChromedpFetcher, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromedpFetcher{
		allocCtx:    allocCtx,
		allocCancel: cancel,
		timeout:     pageLoadTimeout,
		settle:      settle,
	}, nil
}

// Fetch navigates to a URL, waits for the page to render, and returns the
// resulting HTML. Every operation is bounded by the page-load timeout.
func (f *ChromedpFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	taskCtx, cancelTab := chromedp.NewContext(f.allocCtx)
	defer cancelTab()

	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, f.timeout)
	defer cancelTimeout()

	// Propagate caller cancellation (SIGINT) into the browser task.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var status documentStatus
	chromedp.ListenTarget(taskCtx, status.record)

	var html string
	start := time.Now()
	err := chromedp.Run(taskCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(f.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s after %s", repository.ErrFetchTimeout, url, f.timeout)
		}
		return "", fmt.Errorf("%w: %s: %v", repository.ErrNavigationFailed, url, err)
	}

	if status.restricted() {
		return "", fmt.Errorf("%w: received status code %d", repository.ErrContentRestricted, status.load())
	}

	slog.Debug("Page fetched", "url", url, "status", status.load(), "duration_ms", elapsed.Milliseconds())
	return html, nil
}

// documentStatus captures the main document's response status. The network
// listener dispatches events on the browser's event goroutine, which keeps
// running past the point where Run returns, so both sides go through an
// atomic.
type documentStatus struct {
	code atomic.Int64
}

// record keeps the first document response and ignores subresources.
func (s *documentStatus) record(ev interface{}) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		if resp.Type == network.ResourceTypeDocument {
			s.code.CompareAndSwap(0, resp.Response.Status)
		}
	}
}

func (s *documentStatus) load() int64 {
	return s.code.Load()
}

// restricted reports whether the site answered with an auth wall or an
// anti-bot status instead of the listing.
func (s *documentStatus) restricted() bool {
	code := s.load()
	return code == 401 || code == 403 || code == 429
}

// Close shuts the browser down.
func (f *ChromedpFetcher) Close() {
	f.allocCancel()
}
