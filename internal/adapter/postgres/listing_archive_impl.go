package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/listing-radar/internal/entity"
)

// ListingArchiveImpl provides a concrete implementation of the
// ListingArchive interface using PostgreSQL.
type ListingArchiveImpl struct {
	db *pgxpool.Pool
}

// NewListingArchive creates a new instance of ListingArchiveImpl.
func NewListingArchive(db *pgxpool.Pool) *ListingArchiveImpl {
	return &ListingArchiveImpl{db: db}
}

// Save stores or updates a delivered listing.
func (r *ListingArchiveImpl) Save(ctx context.Context, listing *entity.Listing) error {
	query := `
		INSERT INTO listings (url, title, description, image_url, search_name, evidence_kind, age_hours, notified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (url) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			image_url = EXCLUDED.image_url,
			search_name = EXCLUDED.search_name,
			evidence_kind = EXCLUDED.evidence_kind,
			age_hours = EXCLUDED.age_hours;
	`
	_, err := r.db.Exec(ctx, query,
		listing.URL,
		listing.Title,
		listing.Description,
		listing.ImageURL,
		listing.SearchName,
		listing.EvidenceKind,
		listing.AgeHours,
		listing.NotifiedAt,
	)
	return err
}

// FindByURL retrieves an archived listing, or nil when absent.
func (r *ListingArchiveImpl) FindByURL(ctx context.Context, url string) (*entity.Listing, error) {
	query := `
		SELECT id, url, title, description, image_url, search_name, evidence_kind, age_hours, notified_at
		FROM listings
		WHERE url = $1;
	`
	row := r.db.QueryRow(ctx, query, url)

	var listing entity.Listing
	err := row.Scan(
		&listing.ID,
		&listing.URL,
		&listing.Title,
		&listing.Description,
		&listing.ImageURL,
		&listing.SearchName,
		&listing.EvidenceKind,
		&listing.AgeHours,
		&listing.NotifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &listing, nil
}
