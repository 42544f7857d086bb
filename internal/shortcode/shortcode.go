// Package shortcode generates and validates the Base62 codes used as
// redirect path segments.
package shortcode

import (
	"errors"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the 62-symbol set short codes are drawn from.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// DefaultLength yields 62^7, roughly 3.5e12 distinct codes.
const DefaultLength = 7

// ErrInvalidLength is returned when a non-positive code length is requested.
var ErrInvalidLength = errors.New("short code length must be positive")

// Generate returns a code of the given length with every character drawn
// independently and uniformly from Alphabet, using a cryptographically
// strong random source.
func Generate(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}

	return gonanoid.Generate(Alphabet, length)
}

// IsValid reports whether code is non-empty and contains only characters
// from Alphabet.
func IsValid(code string) bool {
	if code == "" {
		return false
	}

	for _, r := range code {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}

	return true
}
