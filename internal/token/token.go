// Package token issues and verifies the signed, self-contained assertions
// used for stateless authentication. Validity is decided purely by
// signature and embedded expiry; there is no server-side revocation state.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minSecretLength is the minimum signing key size in bytes (256 bits for HS256).
const minSecretLength = 32

var (
	// ErrEmptySecret is returned when no signing secret is configured.
	ErrEmptySecret = errors.New("signing secret is not configured")
	// ErrWeakSecret is returned when the signing secret is shorter than 256 bits.
	ErrWeakSecret = fmt.Errorf("signing secret must be at least %d bytes", minSecretLength)
	// ErrInvalidTTL is returned when the token lifetime is not positive.
	ErrInvalidTTL = errors.New("token ttl must be positive")

	errUnsupportedAlgorithm = errors.New("unexpected signing algorithm")
)

// Kind classifies the outcome of parsing or verifying a token. Failures are
// distinguished internally for logging even though they collapse to the same
// 401 contract externally.
type Kind int

const (
	KindValid Kind = iota
	KindExpired
	KindMalformed
	KindUnsupportedAlgorithm
	KindBadSignature
	KindEmpty
	KindSubjectMismatch
)

func (k Kind) String() string {
	switch k {
	case KindValid:
		return "valid"
	case KindExpired:
		return "expired"
	case KindMalformed:
		return "malformed"
	case KindUnsupportedAlgorithm:
		return "unsupported algorithm"
	case KindBadSignature:
		return "bad signature"
	case KindEmpty:
		return "empty"
	case KindSubjectMismatch:
		return "subject mismatch"
	default:
		return "unknown"
	}
}

// Result is the typed outcome of Verify. A failed verification is a regular
// value, not an error: callers branch on Valid and Kind.
type Result struct {
	Valid   bool
	Subject string
	Kind    Kind
}

// Manager signs and verifies assertions with a process-wide symmetric key.
// The key is fixed at construction and never mutated, so a Manager is safe
// for concurrent use.
type Manager struct {
	key    []byte
	issuer string
	ttl    time.Duration
}

// NewManager validates the signing configuration and returns a Manager.
// A missing or undersized secret is a configuration fault the caller should
// treat as fatal at startup.
func NewManager(secret, issuer string, ttl time.Duration) (*Manager, error) {
	const op = "token.NewManager"

	if secret == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptySecret)
	}
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("%s: %w", op, ErrWeakSecret)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidTTL)
	}

	return &Manager{
		key:    []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}, nil
}

// Issue builds a compact HS256-signed assertion for the given subject with
// issued-at now and expiry now+ttl. Repeated calls yield distinct tokens.
func (m *Manager) Issue(subject string) (string, error) {
	const op = "token.Manager.Issue"

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("%s: failed to sign token: %w", op, err)
	}

	return signed, nil
}

// Verify checks signature, structure and expiry of the assertion and, when
// expectedSubject is non-empty, that the embedded subject matches it.
func (m *Manager) Verify(tokenStr, expectedSubject string) Result {
	claims, kind := m.parse(tokenStr)
	if kind != KindValid {
		return Result{Kind: kind}
	}

	if expectedSubject != "" && claims.Subject != expectedSubject {
		return Result{Subject: claims.Subject, Kind: KindSubjectMismatch}
	}

	return Result{Valid: true, Subject: claims.Subject, Kind: KindValid}
}

// ExtractSubject parses the assertion and returns the embedded subject.
// The signature and expiry are still checked; a non-KindValid result means
// no trustworthy subject could be extracted. Extraction alone never
// authorizes a request: callers must follow up with Verify against the
// loaded principal.
func (m *Manager) ExtractSubject(tokenStr string) (string, Kind) {
	claims, kind := m.parse(tokenStr)
	if kind != KindValid {
		return "", kind
	}

	return claims.Subject, KindValid
}

// IsExpired reports whether the assertion's expiry has passed. It fails
// closed: a token whose expiry cannot be determined counts as expired.
func (m *Manager) IsExpired(tokenStr string) bool {
	claims, kind := m.parse(tokenStr)
	switch kind {
	case KindValid:
	case KindExpired:
		return true
	default:
		return true
	}

	if claims.ExpiresAt == nil {
		return true
	}

	return !claims.ExpiresAt.After(time.Now())
}

func (m *Manager) parse(tokenStr string) (*jwt.RegisteredClaims, Kind) {
	if tokenStr == "" {
		return nil, KindEmpty
	}

	claims := new(jwt.RegisteredClaims)
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %s", errUnsupportedAlgorithm, t.Method.Alg())
		}
		return m.key, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	return claims, KindValid
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, errUnsupportedAlgorithm):
		return KindUnsupportedAlgorithm
	case errors.Is(err, jwt.ErrTokenExpired):
		return KindExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return KindBadSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return KindMalformed
	default:
		return KindMalformed
	}
}
