package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/skarpovich/url-management/internal/database"
	"github.com/skarpovich/url-management/internal/models"
	"github.com/skarpovich/url-management/internal/service"
	"github.com/skarpovich/url-management/pkg/response"
)

const defaultPopularLimit = 10

// handlePing handles health check requests to ensure the server is running.
func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

// createURLRequest represents the request payload for shortening a URL.
type createURLRequest struct {
	OriginalURL string     `json:"original_url" validate:"required,url,max=2048"`
	UserID      *int64     `json:"user_id,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// createCustomURLRequest additionally carries the caller-chosen short code.
type createCustomURLRequest struct {
	OriginalURL string     `json:"original_url" validate:"required,url,max=2048"`
	CustomCode  string     `json:"custom_code" validate:"required,alphanum,min=3,max=20"`
	UserID      *int64     `json:"user_id,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// urlResponse represents the response payload for a shortened URL operation.
type urlResponse struct {
	ID             int64      `json:"id"`
	ShortCode      string     `json:"short_code"`
	ShortURL       string     `json:"short_url"`
	OriginalURL    string     `json:"original_url"`
	CreatedBy      *int64     `json:"created_by,omitempty"`
	Hits           int64      `json:"hits"`
	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// toURLResponse converts a URL model from the business layer into a response payload.
// The short URL is derived from the incoming request's host.
func toURLResponse(r *http.Request, url *models.URL) urlResponse {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	return urlResponse{
		ID:             url.ID,
		ShortCode:      url.ShortCode,
		ShortURL:       fmt.Sprintf("%s://%s/%s", scheme, r.Host, url.ShortCode),
		OriginalURL:    url.OriginalURL,
		CreatedBy:      url.CreatedByID,
		Hits:           url.Hits,
		CreatedAt:      url.CreatedAt,
		LastAccessedAt: url.LastAccessedAt,
		ExpiresAt:      url.ExpiresAt,
	}
}

// resolveOwner picks the URL owner for a create request: an explicit user_id
// wins over the request principal. An unknown explicit user_id is a client
// error, not a server one.
func resolveOwner(r *http.Request, userSvc UserService, userID *int64) (*int64, error) {
	if userID != nil {
		if _, err := userSvc.UserByID(r.Context(), *userID); err != nil {
			return nil, err
		}

		return userID, nil
	}

	if principal, ok := PrincipalFromContext(r.Context()); ok {
		return &principal.ID, nil
	}

	return nil, nil
}

// handleCreateURL handles POST requests to shorten a URL with a generated code.
func handleCreateURL(urlSvc URLService, userSvc UserService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleCreateURL"
	const successMsg = "The URL has been shortened successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req createURLRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		owner, err := resolveOwner(r, userSvc, req.UserID)
		if err != nil {
			if errors.Is(err, database.ErrUserNotFound) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("The specified user does not exist."))
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		url, err := urlSvc.ShortenURL(r.Context(), req.OriginalURL, owner, req.ExpiresAt)
		if err != nil {
			if errors.Is(err, service.ErrInvalidURL) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("The provided URL is not valid."))
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(r, url)))
	}
}

// handleCreateCustomURL handles POST requests to shorten a URL under a
// caller-chosen short code.
func handleCreateCustomURL(urlSvc URLService, userSvc UserService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleCreateCustomURL"
	const successMsg = "The URL has been shortened successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req createCustomURLRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		owner, err := resolveOwner(r, userSvc, req.UserID)
		if err != nil {
			if errors.Is(err, database.ErrUserNotFound) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("The specified user does not exist."))
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		url, err := urlSvc.ShortenURLWithCode(r.Context(), req.CustomCode, req.OriginalURL, owner, req.ExpiresAt)
		if err != nil {
			switch {
			case errors.Is(err, database.ErrShortCodeExists):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("The short code is already taken."))
			case errors.Is(err, service.ErrInvalidShortCode):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("The short code is not valid."))
			case errors.Is(err, service.ErrInvalidURL):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("The provided URL is not valid."))
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(r, url)))
	}
}

// handleRedirect handles GET requests to resolve a short code, counting the
// access and redirecting to the original URL. Expired codes behave like
// missing ones.
func handleRedirect(urlSvc URLService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		url, err := urlSvc.ResolveShortCode(r.Context(), shortCode)
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		http.Redirect(w, r, url.OriginalURL, http.StatusFound)
	}
}

// handleURLDetails handles GET requests to inspect a shortened URL without
// counting an access.
func handleURLDetails(urlSvc URLService) http.HandlerFunc {
	const op = "api.http.handleURLDetails"
	const successMsg = "The URL details retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		url, err := urlSvc.URLDetails(r.Context(), shortCode)
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(r, url)))
	}
}

// handleDeleteURL handles DELETE requests to remove a shortened URL by id.
func handleDeleteURL(urlSvc URLService) http.HandlerFunc {
	const op = "api.http.handleDeleteURL"

	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := urlSvc.DeleteURL(r.Context(), id); err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// handleSweepExpired handles DELETE requests to remove every expired URL.
// The sweep is safe to run repeatedly.
func handleSweepExpired(urlSvc URLService) http.HandlerFunc {
	const op = "api.http.handleSweepExpired"
	const successMsg = "Expired URLs removed successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		count, err := urlSvc.DeleteExpiredURLs(r.Context())
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, map[string]any{"count": count}))
	}
}

// handleUserURLs handles GET requests to list the URLs created by a user.
func handleUserURLs(urlSvc URLService, userSvc UserService) http.HandlerFunc {
	const op = "api.http.handleUserURLs"
	const successMsg = "The user URLs retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if _, err := userSvc.UserByID(r.Context(), userID); err != nil {
			if errors.Is(err, database.ErrUserNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		urls, err := urlSvc.UserURLs(r.Context(), userID)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		data := make([]urlResponse, 0, len(urls))
		for _, url := range urls {
			data = append(data, toURLResponse(r, url))
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, data))
	}
}

// handlePopularURLs handles GET requests to list the most visited URLs.
func handlePopularURLs(urlSvc URLService) http.HandlerFunc {
	const op = "api.http.handlePopularURLs"
	const successMsg = "The popular URLs retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultPopularLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.BadRequestResponse)
				return
			}
			limit = parsed
		}

		urls, err := urlSvc.PopularURLs(r.Context(), limit)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		data := make([]urlResponse, 0, len(urls))
		for _, url := range urls {
			data = append(data, toURLResponse(r, url))
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, data))
	}
}

// registerRequest represents the request payload for registering a user.
type registerRequest struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=150"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// userResponse represents the response payload for a registered user.
type userResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// handleRegister handles POST requests to register a new user.
func handleRegister(userSvc UserService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleRegister"
	const successMsg = "The user has been registered successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		user, err := userSvc.Register(r.Context(), req.Username, req.Email, req.Password)
		if err != nil {
			if errors.Is(err, database.ErrUserExists) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("The username or email is already taken."))
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, userResponse{
			ID:        user.ID,
			Username:  user.Username,
			Email:     user.Email,
			CreatedAt: user.CreatedAt,
		}))
	}
}

// loginRequest represents the request payload for authenticating a user.
type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// handleLogin handles POST requests to exchange credentials for a bearer token.
// Unknown usernames and wrong passwords get the same answer.
func handleLogin(userSvc UserService, tokens TokenIssuer, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleLogin"

	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		user, err := userSvc.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, service.ErrInvalidCredentials) {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "Incorrect username or password"})
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		tokenStr, err := tokens.Issue(user.Username)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"token": tokenStr})
	}
}
