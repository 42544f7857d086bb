package models

import "time"

// URL represents a shortened URL and its associated metadata.
type URL struct {
	// ID is the unique identifier for the shortened URL record.
	ID int64
	// ShortCode is the short code associated with the original URL.
	// It is immutable once assigned.
	ShortCode string
	// OriginalURL is the original, full-length URL that the short code points to.
	OriginalURL string
	// CreatedByID references the user who created the URL, if any. It is a
	// weak reference: the URL outlives its creator.
	CreatedByID *int64
	// Hits tracks the number of times the shortened URL has been resolved.
	Hits int64
	// CreatedAt is the timestamp indicating when the shortened URL was created.
	CreatedAt time.Time
	// LastAccessedAt is the timestamp of the most recent tracked resolution,
	// nil until the first hit.
	LastAccessedAt *time.Time
	// ExpiresAt is the optional expiry timestamp. A URL is expired once
	// ExpiresAt is no longer after the current time.
	ExpiresAt *time.Time
}

// Expired reports whether the URL is expired at the given instant.
func (u *URL) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && !u.ExpiresAt.After(now)
}
