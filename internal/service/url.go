package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/skarpovich/url-management/internal/database"
	"github.com/skarpovich/url-management/internal/models"
	"github.com/skarpovich/url-management/internal/shortcode"
)

const (
	maxOriginalURLLength = 2048
	maxShortenAttempts   = 10

	customCodeMinLength = 3
	customCodeMaxLength = 20
)

var (
	// ErrMaxRetriesExceeded is returned when the maximum number of attempts to generate a unique short code is exceeded.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")

	// ErrInvalidURL is returned when the original URL is empty, too long or not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid original url")

	// ErrInvalidShortCode is returned when a custom short code has the wrong length or contains characters outside the alphabet.
	ErrInvalidShortCode = errors.New("invalid short code")
)

// URLRepository defines the interface for working with URLs at the business logic layer.
type URLRepository interface {
	// Create inserts a new shortened URL into the repository.
	// Returns the created URL model or an error if the operation fails.
	Create(ctx context.Context, shortCode, originalURL string, createdBy *int64, expiresAt *time.Time) (*models.URL, error)

	// GetByShortCode retrieves a URL by its short code without touching its hit counter.
	GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error)

	// ResolveAndTrack atomically increments the hit counter of a live URL
	// and returns the updated model. Missing and expired codes report
	// database.ErrURLNotFound.
	ResolveAndTrack(ctx context.Context, shortCode string) (*models.URL, error)

	// Delete removes a URL by its identifier.
	Delete(ctx context.Context, id int64) error

	// DeleteExpired removes every URL expired as of now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// ListByUser returns the URLs created by the given user, newest first.
	ListByUser(ctx context.Context, userID int64) ([]*models.URL, error)

	// ListPopular returns up to limit URLs ordered by hit count.
	ListPopular(ctx context.Context, limit int) ([]*models.URL, error)
}

// URLService provides methods to manage URL shortening operations.
// The service uses a URLRepository interface to interact with the underlying database.
type URLService struct {
	repo            URLRepository
	shortCodeLength int
}

// NewURLService creates a new instance of URLService with the provided repository and short code length.
// A non-positive length falls back to the default.
func NewURLService(repo URLRepository, shortCodeLength int) *URLService {
	if shortCodeLength <= 0 {
		shortCodeLength = shortcode.DefaultLength
	}

	return &URLService{
		repo:            repo,
		shortCodeLength: shortCodeLength,
	}
}

func validateOriginalURL(originalURL string) error {
	if originalURL == "" || len(originalURL) > maxOriginalURLLength {
		return ErrInvalidURL
	}

	parsed, err := url.Parse(originalURL)
	if err != nil {
		return ErrInvalidURL
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ErrInvalidURL
	}

	return nil
}

// ShortenURL generates a short code for the provided original URL and stores it in the repository.
// It attempts to generate a unique short code up to a maximum number of retries,
// relying on the repository's uniqueness guarantee to detect collisions.
func (s *URLService) ShortenURL(ctx context.Context, originalURL string, createdBy *int64, expiresAt *time.Time) (*models.URL, error) {
	const op = "service.URLService.ShortenURL"

	if err := validateOriginalURL(originalURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := 0; i < maxShortenAttempts; i++ {
		code, err := shortcode.Generate(s.shortCodeLength)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		url, err := s.repo.Create(ctx, code, originalURL, createdBy, expiresAt)
		if err != nil {
			if errors.Is(err, database.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		return url, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// ShortenURLWithCode stores the original URL under a caller-chosen short code.
// The code must be 3-20 characters from the short code alphabet. A taken code
// reports database.ErrShortCodeExists without retrying.
func (s *URLService) ShortenURLWithCode(ctx context.Context, shortCode, originalURL string, createdBy *int64, expiresAt *time.Time) (*models.URL, error) {
	const op = "service.URLService.ShortenURLWithCode"

	if err := validateOriginalURL(originalURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(shortCode) < customCodeMinLength || len(shortCode) > customCodeMaxLength || !shortcode.IsValid(shortCode) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidShortCode)
	}

	url, err := s.repo.Create(ctx, shortCode, originalURL, createdBy, expiresAt)
	if err != nil {
		if errors.Is(err, database.ErrShortCodeExists) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
	}

	return url, nil
}

// ResolveShortCode retrieves the original URL associated with the provided
// short code, counting the access. Expired codes behave like missing ones.
func (s *URLService) ResolveShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "service.URLService.ResolveShortCode"

	url, err := s.repo.ResolveAndTrack(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	return url, nil
}

// URLDetails retrieves the URL associated with the provided short code
// without counting an access. Expired codes report database.ErrURLNotFound.
func (s *URLService) URLDetails(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "service.URLService.URLDetails"

	url, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url details: %w", op, err)
	}
	if url.Expired(time.Now()) {
		return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
	}

	return url, nil
}

// DeleteURL removes the URL with the given identifier.
func (s *URLService) DeleteURL(ctx context.Context, id int64) error {
	const op = "service.URLService.DeleteURL"

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("%s: failed to delete url: %w", op, err)
	}

	return nil
}

// DeleteExpiredURLs removes every URL whose expiry has passed and returns the
// number of removed records. Safe to run repeatedly.
func (s *URLService) DeleteExpiredURLs(ctx context.Context) (int64, error) {
	const op = "service.URLService.DeleteExpiredURLs"

	count, err := s.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("%s: failed to delete expired urls: %w", op, err)
	}

	return count, nil
}

// UserURLs returns the URLs created by the given user.
func (s *URLService) UserURLs(ctx context.Context, userID int64) ([]*models.URL, error) {
	const op = "service.URLService.UserURLs"

	urls, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list user urls: %w", op, err)
	}

	return urls, nil
}

// PopularURLs returns up to limit URLs ordered by hit count.
func (s *URLService) PopularURLs(ctx context.Context, limit int) ([]*models.URL, error) {
	const op = "service.URLService.PopularURLs"

	urls, err := s.repo.ListPopular(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list popular urls: %w", op, err)
	}

	return urls, nil
}
