package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/skarpovich/url-management/internal/database"
	"github.com/skarpovich/url-management/internal/models"
)

type urlRecord struct {
	ID             int64         `db:"id"`
	ShortCode      string        `db:"short_code"`
	OriginalURL    string        `db:"original_url"`
	CreatedBy      sql.NullInt64 `db:"created_by"`
	Hits           int64         `db:"hits"`
	CreatedAt      time.Time     `db:"created_at"`
	LastAccessedAt sql.NullTime  `db:"last_accessed_at"`
	ExpiresAt      sql.NullTime  `db:"expires_at"`
}

func (r *urlRecord) ToURL() *models.URL {
	url := &models.URL{
		ID:          r.ID,
		ShortCode:   r.ShortCode,
		OriginalURL: r.OriginalURL,
		Hits:        r.Hits,
		CreatedAt:   r.CreatedAt,
	}
	if r.CreatedBy.Valid {
		url.CreatedByID = &r.CreatedBy.Int64
	}
	if r.LastAccessedAt.Valid {
		url.LastAccessedAt = &r.LastAccessedAt.Time
	}
	if r.ExpiresAt.Valid {
		url.ExpiresAt = &r.ExpiresAt.Time
	}
	return url
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{
		db: db,
	}
}

// Create inserts a new URL record. The unique index on short_code is the
// authoritative uniqueness guard under concurrent creation: a duplicate
// insert surfaces as database.ErrShortCodeExists.
func (r *URLRepository) Create(ctx context.Context, shortCode, originalURL string, createdBy *int64, expiresAt *time.Time) (*models.URL, error) {
	const op = "database.postgres.URLRepository.Create"

	rec := new(urlRecord)
	query := `INSERT INTO urls(short_code, original_url, created_by, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, shortCode, originalURL, createdBy, expiresAt)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to create url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// GetByShortCode retrieves a URL record without touching its hit counter.
// Expired records are still returned; expiry policy is the caller's concern.
func (r *URLRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetByShortCode"

	rec := new(urlRecord)
	query := `SELECT * FROM urls
		WHERE short_code = $1`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// ResolveAndTrack atomically increments the hit counter and stamps the
// last-access time for a live URL, returning the updated record. The
// increment happens in a single statement so concurrent resolutions of the
// same code never lose updates. Missing and expired codes both report
// database.ErrURLNotFound, and expired rows are left unmodified.
func (r *URLRepository) ResolveAndTrack(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.ResolveAndTrack"

	rec := new(urlRecord)
	query := `UPDATE urls
		SET hits = hits + 1, last_accessed_at = now()
		WHERE short_code = $1 AND (expires_at IS NULL OR expires_at > now())
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to track url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// Delete removes a URL record by its identifier.
func (r *URLRepository) Delete(ctx context.Context, id int64) error {
	const op = "database.postgres.URLRepository.Delete"

	query := `DELETE FROM urls
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s: failed to delete url record: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
	}

	return nil
}

// DeleteExpired removes every record whose expiry is at or before now and
// returns the number of deleted records. Re-running on a clean store
// returns 0.
func (r *URLRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "database.postgres.URLRepository.DeleteExpired"

	query := `DELETE FROM urls
		WHERE expires_at IS NOT NULL AND expires_at <= $1`

	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to delete expired url records: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}

	return rows, nil
}

// ListByUser returns the URLs created by the given user, newest first.
func (r *URLRepository) ListByUser(ctx context.Context, userID int64) ([]*models.URL, error) {
	const op = "database.postgres.URLRepository.ListByUser"

	var recs []urlRecord
	query := `SELECT * FROM urls
		WHERE created_by = $1
		ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &recs, query, userID); err != nil {
		return nil, fmt.Errorf("%s: failed to list url records: %w", op, err)
	}

	urls := make([]*models.URL, 0, len(recs))
	for i := range recs {
		urls = append(urls, recs[i].ToURL())
	}

	return urls, nil
}

// ListPopular returns up to limit URLs ordered by hit count, highest first.
func (r *URLRepository) ListPopular(ctx context.Context, limit int) ([]*models.URL, error) {
	const op = "database.postgres.URLRepository.ListPopular"

	var recs []urlRecord
	query := `SELECT * FROM urls
		ORDER BY hits DESC
		LIMIT $1`

	if err := r.db.SelectContext(ctx, &recs, query, limit); err != nil {
		return nil, fmt.Errorf("%s: failed to list url records: %w", op, err)
	}

	urls := make([]*models.URL, 0, len(recs))
	for i := range recs {
		urls = append(urls, recs[i].ToURL())
	}

	return urls, nil
}
