package repository

import (
	"context"
	"errors"
)

var (
	// ErrFetchTimeout indicates the page did not finish loading within the
	// configured page-load timeout.
	ErrFetchTimeout = errors.New("page fetch timed out")
	// ErrNavigationFailed indicates the browser could not navigate to the URL.
	ErrNavigationFailed = errors.New("page navigation failed")
	// ErrContentRestricted indicates the site answered with an auth wall or
	// an anti-bot status code instead of the listing.
	ErrContentRestricted = errors.New("content is restricted or requires authentication")
)

// PageFetcher defines the contract for the headless-browser collaborator:
// navigate to a URL, let it render, and return the resulting HTML.
// Implementations must bound every operation with a timeout.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}
