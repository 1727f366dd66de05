package entity

import "time"

// SeenEntry records a URL that was already notified about. Created when
// a listing is successfully delivered; never mutated afterwards.
type SeenEntry struct {
	URL             string    `json:"url"`
	FirstNotifiedAt time.Time `json:"first_notified_at"`
}

// NotificationPayload is the content delivered for one listing. All
// fields but URL are best-effort.
type NotificationPayload struct {
	URL         string
	Title       string
	Description string
	ImageURL    string
}

// Listing mirrors the `listings` PostgreSQL table: one row per listing
// that was actually delivered, kept as a browsable archive.
type Listing struct {
	ID           int64
	URL          string
	Title        string
	Description  string
	ImageURL     string
	SearchName   string
	EvidenceKind string
	AgeHours     *float64 // nil when evidence was indeterminate
	NotifiedAt   time.Time
}
