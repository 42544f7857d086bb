package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/skarpovich/url-management/internal/database"
	"github.com/skarpovich/url-management/internal/models"
	"github.com/stretchr/testify/assert"
)

var (
	errUnknown      = errors.New("unknown error")
	errAffectedRows = errors.New("affected rows error")
)

var urlColumns = []string{"id", "short_code", "original_url", "created_by", "hits", "created_at", "last_accessed_at", "expires_at"}

func setupURLRepository(t testing.TB) (*URLRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}

	db := sqlx.NewDb(mockDB, "sqlmock")
	repo := NewURLRepository(db)

	t.Cleanup(func() {
		mockDB.Close()
		db.Close()
	})

	return repo, mock
}

func TestURLRepository_Create(t *testing.T) {
	t.Run("short code exists", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectQuery(`INSERT INTO urls`).
			WithArgs("code1", "https://example.com", nil, nil).
			WillReturnError(&pgconn.PgError{Code: uniqueViolationErrCode})

		url, err := repo.Create(context.TODO(), "code1", "https://example.com", nil, nil)

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrShortCodeExists)
		assert.Nil(t, url)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectQuery(`INSERT INTO urls`).
			WithArgs("code1", "https://example.com", nil, nil).
			WillReturnError(errUnknown)

		url, err := repo.Create(context.TODO(), "code1", "https://example.com", nil, nil)

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, url)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		rows := sqlmock.NewRows(urlColumns).
			AddRow(1, "code1", "https://example.com", nil, 0, time.Time{}, nil, nil)

		mock.ExpectQuery(`INSERT INTO urls`).
			WithArgs("code1", "https://example.com", nil, nil).
			WillReturnRows(rows)

		wantURL := models.URL{
			ID:          1,
			ShortCode:   "code1",
			OriginalURL: "https://example.com",
		}

		url, err := repo.Create(context.TODO(), "code1", "https://example.com", nil, nil)

		assert.NoError(t, err)
		assert.NotNil(t, url)
		assert.Equal(t, wantURL, *url)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success with owner and expiry", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		userID := int64(7)
		expiresAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		rows := sqlmock.NewRows(urlColumns).
			AddRow(2, "code2", "https://example.com", userID, 0, time.Time{}, nil, expiresAt)

		mock.ExpectQuery(`INSERT INTO urls`).
			WithArgs("code2", "https://example.com", &userID, &expiresAt).
			WillReturnRows(rows)

		url, err := repo.Create(context.TODO(), "code2", "https://example.com", &userID, &expiresAt)

		assert.NoError(t, err)
		assert.NotNil(t, url)
		assert.Equal(t, userID, *url.CreatedByID)
		assert.Equal(t, expiresAt, *url.ExpiresAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestURLRepository_GetByShortCode(t *testing.T) {
	t.Run("url not found", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectQuery(`SELECT (.+) FROM urls`).
			WithArgs("code2").
			WillReturnError(sql.ErrNoRows)

		url, err := repo.GetByShortCode(context.TODO(), "code2")

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrURLNotFound)
		assert.Nil(t, url)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectQuery(`SELECT (.+) FROM urls`).
			WithArgs("code1").
			WillReturnError(errUnknown)

		url, err := repo.GetByShortCode(context.TODO(), "code1")

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, url)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		rows := sqlmock.NewRows(urlColumns).
			AddRow(1, "code1", "https://example.com", nil, 3, time.Time{}, nil, nil)

		mock.ExpectQuery(`SELECT (.+) FROM urls`).
			WithArgs("code1").
			WillReturnRows(rows)

		wantURL := models.URL{
			ID:          1,
			ShortCode:   "code1",
			OriginalURL: "https://example.com",
			Hits:        3,
		}

		url, err := repo.GetByShortCode(context.TODO(), "code1")

		assert.NoError(t, err)
		assert.NotNil(t, url)
		assert.Equal(t, wantURL, *url)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestURLRepository_ResolveAndTrack(t *testing.T) {
	t.Run("url not found", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectQuery(`UPDATE urls`).
			WithArgs("code2").
			WillReturnError(sql.ErrNoRows)

		url, err := repo.ResolveAndTrack(context.TODO(), "code2")

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrURLNotFound)
		assert.Nil(t, url)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectQuery(`UPDATE urls`).
			WithArgs("code1").
			WillReturnError(errUnknown)

		url, err := repo.ResolveAndTrack(context.TODO(), "code1")

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, url)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		accessedAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

		rows := sqlmock.NewRows(urlColumns).
			AddRow(1, "code1", "https://example.com", nil, 4, time.Time{}, accessedAt, nil)

		mock.ExpectQuery(`UPDATE urls`).
			WithArgs("code1").
			WillReturnRows(rows)

		url, err := repo.ResolveAndTrack(context.TODO(), "code1")

		assert.NoError(t, err)
		assert.NotNil(t, url)
		assert.Equal(t, int64(4), url.Hits)
		assert.Equal(t, accessedAt, *url.LastAccessedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestURLRepository_Delete(t *testing.T) {
	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectExec(`DELETE FROM urls`).
			WithArgs(int64(1)).
			WillReturnError(errUnknown)

		err := repo.Delete(context.TODO(), 1)

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rows affected error", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectExec(`DELETE FROM urls`).
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewErrorResult(errAffectedRows))

		err := repo.Delete(context.TODO(), 1)

		assert.Error(t, err)
		assert.ErrorIs(t, err, errAffectedRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("url not found", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectExec(`DELETE FROM urls`).
			WithArgs(int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(context.TODO(), 2)

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrURLNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectExec(`DELETE FROM urls`).
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Delete(context.TODO(), 1)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestURLRepository_DeleteExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectExec(`DELETE FROM urls`).
			WithArgs(now).
			WillReturnError(errUnknown)

		count, err := repo.DeleteExpired(context.TODO(), now)

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Zero(t, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing expired", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectExec(`DELETE FROM urls`).
			WithArgs(now).
			WillReturnResult(sqlmock.NewResult(0, 0))

		count, err := repo.DeleteExpired(context.TODO(), now)

		assert.NoError(t, err)
		assert.Zero(t, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectExec(`DELETE FROM urls`).
			WithArgs(now).
			WillReturnResult(sqlmock.NewResult(0, 3))

		count, err := repo.DeleteExpired(context.TODO(), now)

		assert.NoError(t, err)
		assert.Equal(t, int64(3), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestURLRepository_ListByUser(t *testing.T) {
	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectQuery(`SELECT (.+) FROM urls`).
			WithArgs(int64(7)).
			WillReturnError(errUnknown)

		urls, err := repo.ListByUser(context.TODO(), 7)

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, urls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		rows := sqlmock.NewRows(urlColumns).
			AddRow(2, "code2", "https://example.org", int64(7), 0, time.Time{}, nil, nil).
			AddRow(1, "code1", "https://example.com", int64(7), 5, time.Time{}, nil, nil)

		mock.ExpectQuery(`SELECT (.+) FROM urls`).
			WithArgs(int64(7)).
			WillReturnRows(rows)

		urls, err := repo.ListByUser(context.TODO(), 7)

		assert.NoError(t, err)
		assert.Len(t, urls, 2)
		assert.Equal(t, "code2", urls[0].ShortCode)
		assert.Equal(t, "code1", urls[1].ShortCode)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestURLRepository_ListPopular(t *testing.T) {
	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectQuery(`SELECT (.+) FROM urls`).
			WithArgs(10).
			WillReturnError(errUnknown)

		urls, err := repo.ListPopular(context.TODO(), 10)

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, urls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		rows := sqlmock.NewRows(urlColumns).
			AddRow(1, "code1", "https://example.com", nil, 9, time.Time{}, nil, nil).
			AddRow(2, "code2", "https://example.org", nil, 4, time.Time{}, nil, nil)

		mock.ExpectQuery(`SELECT (.+) FROM urls`).
			WithArgs(2).
			WillReturnRows(rows)

		urls, err := repo.ListPopular(context.TODO(), 2)

		assert.NoError(t, err)
		assert.Len(t, urls, 2)
		assert.Equal(t, int64(9), urls[0].Hits)
		assert.Equal(t, int64(4), urls[1].Hits)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
