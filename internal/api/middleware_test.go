package api

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ddanshin/task-manager/internal/auth"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthTestServer(t *testing.T) (*auth.TokenIssuer, echo.MiddlewareFunc) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	issuer := auth.NewTokenIssuer(key, auth.DefaultTokenTTL)
	verifier := auth.NewTokenVerifier(&key.PublicKey)

	return issuer, AuthMiddleware(verifier)
}

func runProtected(mw echo.MiddlewareFunc, headers map[string]string) (*httptest.ResponseRecorder, string) {
	e := echo.New()

	var identity string
	handler := mw(func(c echo.Context) error {
		identity = Identity(c)
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()

	_ = handler(e.NewContext(req, rec))

	return rec, identity
}

func authMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, mw := newAuthTestServer(t)

	rec, _ := runProtected(mw, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token is missing", authMessage(t, rec))
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	_, mw := newAuthTestServer(t)

	rec, _ := runProtected(mw, map[string]string{
		echo.HeaderAuthorization: "Bearer not-a-token",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token is invalid", authMessage(t, rec))
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	issuer := auth.NewTokenIssuer(key, -time.Hour)
	mw := AuthMiddleware(auth.NewTokenVerifier(&key.PublicKey))

	token, err := issuer.Issue("alice")
	require.NoError(t, err)

	rec, _ := runProtected(mw, map[string]string{
		echo.HeaderAuthorization: "Bearer " + token,
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token has expired", authMessage(t, rec))
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	issuer, mw := newAuthTestServer(t)

	token, err := issuer.Issue("alice")
	require.NoError(t, err)

	rec, identity := runProtected(mw, map[string]string{
		echo.HeaderAuthorization: "Bearer " + token,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", identity)
}

func TestAuthMiddleware_XUserHeader(t *testing.T) {
	issuer, mw := newAuthTestServer(t)

	token, err := issuer.Issue("alice")
	require.NoError(t, err)

	tests := []struct {
		name         string
		xUser        string
		expectedCode int
	}{
		{name: "matching header accepted", xUser: "alice", expectedCode: http.StatusOK},
		{name: "forged header rejected", xUser: "bob", expectedCode: http.StatusUnauthorized},
		{name: "absent header accepted", xUser: "", expectedCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{
				echo.HeaderAuthorization: "Bearer " + token,
			}
			if tt.xUser != "" {
				headers[HeaderXUser] = tt.xUser
			}

			rec, identity := runProtected(mw, headers)

			assert.Equal(t, tt.expectedCode, rec.Code)
			if tt.expectedCode == http.StatusOK {
				// Identity always comes from the token, never the header.
				assert.Equal(t, "alice", identity)
			} else {
				assert.Equal(t, "Token is invalid", authMessage(t, rec))
			}
		})
	}
}
