package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestIssueAndVerify(t *testing.T) {
	key := newTestKey(t)
	issuer := NewTokenIssuer(key, time.Hour)
	verifier := NewTokenVerifier(&key.PublicKey)

	tests := []struct {
		name    string
		subject string
	}{
		{name: "success: simple username", subject: "alice"},
		{name: "success: username with digits", subject: "bob42"},
		{name: "success: username with punctuation", subject: "john.doe_77"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokenString, err := issuer.Issue(tt.subject)
			require.NoError(t, err)
			require.NotEmpty(t, tokenString)

			subject, err := verifier.Verify(tokenString)
			require.NoError(t, err)
			assert.Equal(t, tt.subject, subject)
		})
	}
}

func TestVerify_BearerPrefix(t *testing.T) {
	key := newTestKey(t)
	issuer := NewTokenIssuer(key, time.Hour)
	verifier := NewTokenVerifier(&key.PublicKey)

	tokenString, err := issuer.Issue("alice")
	require.NoError(t, err)

	subject, err := verifier.Verify("Bearer " + tokenString)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestVerify_Failures(t *testing.T) {
	key := newTestKey(t)
	otherKey := newTestKey(t)
	verifier := NewTokenVerifier(&key.PublicKey)

	signWith := func(key *rsa.PrivateKey, claims jwt.RegisteredClaims) string {
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		s, err := token.SignedString(key)
		require.NoError(t, err)
		return s
	}

	now := time.Now()

	expiredToken := signWith(key, jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    Issuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
	})

	wrongIssuerToken := signWith(key, jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "other-service",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})

	wrongKeyToken := signWith(otherKey, jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    Issuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})

	noSubjectToken := signWith(key, jwt.RegisteredClaims{
		Issuer:    Issuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})

	hmacToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    Issuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	tests := []struct {
		name              string
		tokenString       string
		expectedErrorType error
	}{
		{
			name:              "failure: expired token",
			tokenString:       expiredToken,
			expectedErrorType: ErrExpiredToken,
		},
		{
			name:              "failure: issuer mismatch",
			tokenString:       wrongIssuerToken,
			expectedErrorType: ErrInvalidToken,
		},
		{
			name:              "failure: signed with unknown key",
			tokenString:       wrongKeyToken,
			expectedErrorType: ErrInvalidToken,
		},
		{
			name:              "failure: missing subject",
			tokenString:       noSubjectToken,
			expectedErrorType: ErrInvalidToken,
		},
		{
			name:              "failure: malformed token",
			tokenString:       "not-a-valid-jwt-token",
			expectedErrorType: ErrInvalidToken,
		},
		{
			name:              "failure: HMAC-signed token",
			tokenString:       hmacToken,
			expectedErrorType: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, err := verifier.Verify(tt.tokenString)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expectedErrorType)
			assert.Empty(t, subject)
		})
	}
}

// A token that expires exactly now is already expired: the boundary is
// now >= exp.
func TestVerify_ExpiryBoundary(t *testing.T) {
	key := newTestKey(t)
	verifier := NewTokenVerifier(&key.PublicKey)

	claims := jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    Issuer,
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(time.Now()),
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)

	_, err = verifier.Verify(tokenString)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestIssue_DefaultTTL(t *testing.T) {
	key := newTestKey(t)
	issuer := NewTokenIssuer(key, 0)

	tokenString, err := issuer.Issue("alice")
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(tokenString, claims)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(DefaultTokenTTL), claims.ExpiresAt.Time, 5*time.Second)
	assert.Equal(t, Issuer, claims.Issuer)
}
