package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/skarpovich/url-management/internal/models"
	"github.com/skarpovich/url-management/internal/token"
)

// URLService defines the interface for the core URL shortening business logic.
type URLService interface {
	// ShortenURL creates a shortened version of the provided original URL
	// under a generated short code.
	ShortenURL(ctx context.Context, originalURL string, createdBy *int64, expiresAt *time.Time) (*models.URL, error)

	// ShortenURLWithCode creates a shortened version of the provided original
	// URL under a caller-chosen short code.
	ShortenURLWithCode(ctx context.Context, shortCode, originalURL string, createdBy *int64, expiresAt *time.Time) (*models.URL, error)

	// ResolveShortCode retrieves the original URL for a given short code,
	// counting the access.
	ResolveShortCode(ctx context.Context, shortCode string) (*models.URL, error)

	// URLDetails retrieves the URL for a given short code without counting
	// an access.
	URLDetails(ctx context.Context, shortCode string) (*models.URL, error)

	// DeleteURL removes the URL with the given identifier.
	DeleteURL(ctx context.Context, id int64) error

	// DeleteExpiredURLs removes every expired URL and returns the count.
	DeleteExpiredURLs(ctx context.Context) (int64, error)

	// UserURLs returns the URLs created by the given user.
	UserURLs(ctx context.Context, userID int64) ([]*models.URL, error)

	// PopularURLs returns up to limit URLs ordered by hit count.
	PopularURLs(ctx context.Context, limit int) ([]*models.URL, error)
}

// UserService defines the interface for registration and authentication.
type UserService interface {
	// Register creates a new user from the given credentials.
	Register(ctx context.Context, username, email, password string) (*models.User, error)

	// Authenticate checks a username and password pair.
	Authenticate(ctx context.Context, username, password string) (*models.User, error)

	// UserByID retrieves a user by its identifier.
	UserByID(ctx context.Context, id int64) (*models.User, error)

	// UserByUsername retrieves a user by username.
	UserByUsername(ctx context.Context, username string) (*models.User, error)
}

// TokenIssuer mints bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(subject string) (string, error)
}

// getValidate initializes a new validator instance for validating incoming request payloads.
// It customizes tag name extraction from struct fields to match JSON tags.
func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// RouterOptions carries the route-level switches that vary by deployment.
type RouterOptions struct {
	// ProtectRedirect requires a valid bearer token on the redirect route.
	ProtectRedirect bool
}

// NewRouter initializes and returns a new HTTP router with all routes and middleware configured.
func NewRouter(logger *httplog.Logger, urlSvc URLService, userSvc UserService, tokens *token.Manager, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept", "Authorization"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(Authenticator(tokens, userSvc))

	validate := getValidate()

	r.Get("/ping", handlePing)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(userSvc, validate))
			r.Post("/login", handleLogin(userSvc, tokens, validate))
		})

		r.Route("/urls", func(r chi.Router) {
			// Static segments before {shortCode} so chi matches them first.
			r.Get("/popular", handlePopularURLs(urlSvc))
			r.Get("/{shortCode}", handleURLDetails(urlSvc))

			r.Group(func(r chi.Router) {
				r.Use(RequireAuth)

				r.Post("/", handleCreateURL(urlSvc, userSvc, validate))
				r.Post("/custom", handleCreateCustomURL(urlSvc, userSvc, validate))
				r.Delete("/expired", handleSweepExpired(urlSvc))
				r.Delete("/{id:[0-9]+}", handleDeleteURL(urlSvc))
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(RequireAuth)

			r.Get("/{userID:[0-9]+}/urls", handleUserURLs(urlSvc, userSvc))
		})
	})

	if opts.ProtectRedirect {
		r.Group(func(r chi.Router) {
			r.Use(RequireAuth)

			r.Get("/{shortCode}", handleRedirect(urlSvc))
		})
	} else {
		r.Get("/{shortCode}", handleRedirect(urlSvc))
	}

	return r
}
