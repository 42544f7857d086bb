package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/skarpovich/url-management/internal/database"
	"github.com/skarpovich/url-management/internal/models"
	"github.com/skarpovich/url-management/internal/token"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type AuthTestSuite struct {
	suite.Suite
	logger      *httplog.Logger
	tokens      *token.Manager
	urlSvcMock  *MockURLService
	userSvcMock *MockUserService
	server      *httptest.Server
	e           *httpexpect.Expect
}

func (suite *AuthTestSuite) SetupSuite() {
	suite.logger = httplog.NewLogger("", httplog.Options{Writer: io.Discard})

	tokens, err := token.NewManager(testSecret, "url-management", time.Hour)
	if err != nil {
		suite.T().Fatal(err)
	}
	suite.tokens = tokens
}

func (suite *AuthTestSuite) SetupSubTest() {
	suite.urlSvcMock = new(MockURLService)
	suite.userSvcMock = new(MockUserService)
	router := NewRouter(suite.logger, suite.urlSvcMock, suite.userSvcMock, suite.tokens, RouterOptions{})
	suite.server = httptest.NewServer(router)
	suite.e = httpexpect.Default(suite.T(), suite.server.URL)
}

func (suite *AuthTestSuite) TearDownSubTest() {
	suite.urlSvcMock.AssertExpectations(suite.T())
	suite.userSvcMock.AssertExpectations(suite.T())
	suite.server.Close()
}

// signRaw builds tokens outside the manager to exercise rejection paths.
func (suite *AuthTestSuite) signRaw(method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	tokenStr, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		suite.T().Fatal(err)
	}
	return tokenStr
}

func (suite *AuthTestSuite) TestAuthenticator() {
	const path = "/api/urls"

	suite.Run("expired token short-circuits before the service", func() {
		tokenStr := suite.signRaw(jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
			Subject:   "john",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		})

		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+tokenStr).
			WithJSON(map[string]string{"original_url": "https://example.com"}).
			Expect().
			Status(http.StatusUnauthorized).
			JSON().Object().
			HasValue("error", "JWT token has expired").
			HasValue("status", http.StatusUnauthorized)

		suite.urlSvcMock.AssertNotCalled(suite.T(), "ShortenURL")
		suite.userSvcMock.AssertNotCalled(suite.T(), "UserByUsername")
	})

	suite.Run("malformed token", func() {
		suite.e.POST(path).
			WithHeader("Authorization", "Bearer not.a.token").
			WithJSON(map[string]string{"original_url": "https://example.com"}).
			Expect().
			Status(http.StatusUnauthorized).
			JSON().Object().
			HasValue("error", "JWT token is malformed")
	})

	suite.Run("bad signature", func() {
		tokenStr := suite.signRaw(jwt.SigningMethodHS256, []byte("another-secret-key-of-32-bytes!!"), jwt.RegisteredClaims{
			Subject:   "john",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})

		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+tokenStr).
			WithJSON(map[string]string{"original_url": "https://example.com"}).
			Expect().
			Status(http.StatusUnauthorized).
			JSON().Object().
			HasValue("error", "JWT signature validation failed")
	})

	suite.Run("unsupported algorithm", func() {
		tokenStr := suite.signRaw(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.RegisteredClaims{
			Subject:   "john",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})

		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+tokenStr).
			WithJSON(map[string]string{"original_url": "https://example.com"}).
			Expect().
			Status(http.StatusUnauthorized).
			JSON().Object().
			HasValue("error", "JWT token is unsupported")
	})

	suite.Run("unknown subject", func() {
		tokenStr, err := suite.tokens.Issue("ghost")
		if err != nil {
			suite.T().Fatal(err)
		}

		suite.userSvcMock.On("UserByUsername", mock.Anything, "ghost").
			Return(nil, database.ErrUserNotFound).
			Once()

		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+tokenStr).
			WithJSON(map[string]string{"original_url": "https://example.com"}).
			Expect().
			Status(http.StatusUnauthorized).
			JSON().Object().
			HasValue("error", "User not found")
	})

	suite.Run("principal lookup failure", func() {
		tokenStr, err := suite.tokens.Issue("john")
		if err != nil {
			suite.T().Fatal(err)
		}

		suite.userSvcMock.On("UserByUsername", mock.Anything, "john").
			Return(nil, errUnknown).
			Once()

		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+tokenStr).
			WithJSON(map[string]string{"original_url": "https://example.com"}).
			Expect().
			Status(http.StatusInternalServerError).
			JSON().Object().
			HasValue("error", "Internal server error").
			HasValue("status", http.StatusInternalServerError)
	})

	suite.Run("valid token reaches the handler", func() {
		tokenStr, err := suite.tokens.Issue("john")
		if err != nil {
			suite.T().Fatal(err)
		}

		userID := int64(1)

		suite.userSvcMock.On("UserByUsername", mock.Anything, "john").
			Return(&models.User{ID: userID, Username: "john"}, nil).
			Once()
		suite.urlSvcMock.On("ShortenURL", mock.Anything, "https://example.com", &userID, (*time.Time)(nil)).
			Return(&models.URL{ID: 1, ShortCode: "Ab3dEf9", OriginalURL: "https://example.com", CreatedByID: &userID}, nil).
			Once()

		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+tokenStr).
			WithJSON(map[string]string{"original_url": "https://example.com"}).
			Expect().
			Status(http.StatusCreated)
	})

	suite.Run("missing header passes through on open routes", func() {
		suite.urlSvcMock.On("URLDetails", mock.Anything, "Ab3dEf9").
			Return(&models.URL{ID: 1, ShortCode: "Ab3dEf9", OriginalURL: "https://example.com"}, nil).
			Once()

		suite.e.GET("/api/urls/Ab3dEf9").
			Expect().
			Status(http.StatusOK)

		suite.userSvcMock.AssertNotCalled(suite.T(), "UserByUsername")
	})
}

func (suite *AuthTestSuite) TestProtectedRedirect() {
	suite.Run("redirect requires auth when protected", func() {
		router := NewRouter(suite.logger, suite.urlSvcMock, suite.userSvcMock, suite.tokens, RouterOptions{ProtectRedirect: true})
		server := httptest.NewServer(router)
		defer server.Close()

		e := httpexpect.Default(suite.T(), server.URL)

		e.GET("/Ab3dEf9").
			Expect().
			Status(http.StatusUnauthorized)

		suite.urlSvcMock.AssertNotCalled(suite.T(), "ResolveShortCode")
	})
}

func TestAuthTestSuite(t *testing.T) {
	suite.Run(t, new(AuthTestSuite))
}
