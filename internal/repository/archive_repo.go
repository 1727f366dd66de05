package repository

import (
	"context"

	"github.com/user/listing-radar/internal/entity"
)

// ListingArchive defines the interface for the optional delivered-listing
// archive. Archiving is best-effort: failures are logged by the caller
// and never block the pipeline.
type ListingArchive interface {
	// Save stores a delivered listing. If the URL already exists, the row
	// is updated.
	Save(ctx context.Context, listing *entity.Listing) error
	// FindByURL retrieves an archived listing, or nil when absent.
	FindByURL(ctx context.Context, url string) (*entity.Listing, error)
}
