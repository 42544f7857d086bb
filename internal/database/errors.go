package database

import "errors"

var (
	// ErrShortCodeExists is returned when an attempt is made to create
	// a new shortened URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when an attempt is made to retrieve
	// a URL using a short code that doesn't exist. Expired URLs are
	// reported the same way by tracked lookups.
	ErrURLNotFound = errors.New("url not found")
	// ErrUserExists is returned when an attempt is made to create a user
	// with a username or email that is already taken.
	ErrUserExists = errors.New("user exists")
	// ErrUserNotFound is returned when no user matches the given
	// identifier, username or email.
	ErrUserNotFound = errors.New("user not found")
)
