package auth

import (
	"crypto/rsa"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Issuer is the iss claim stamped on every token and required on verification.
const Issuer = "task-manager"

// DefaultTokenTTL bounds token validity; there is no revocation, a leaked
// token stays valid until it expires.
const DefaultTokenTTL = 24 * time.Hour

// TokenIssuer mints signed identity tokens. Tokens are RS256-signed so that
// downstream services verify them with the public key alone, without a shared
// secret or a call back to the issuer.
type TokenIssuer struct {
	key    *rsa.PrivateKey
	issuer string
	ttl    time.Duration
}

func NewTokenIssuer(key *rsa.PrivateKey, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{
		key:    key,
		issuer: Issuer,
		ttl:    ttl,
	}
}

func (i *TokenIssuer) Issue(subject string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "1"

	return token.SignedString(i.key)
}

// TokenVerifier validates presented tokens and extracts the claimed identity.
type TokenVerifier struct {
	key    *rsa.PublicKey
	issuer string
}

func NewTokenVerifier(key *rsa.PublicKey) *TokenVerifier {
	return &TokenVerifier{
		key:    key,
		issuer: Issuer,
	}
}

// Verify checks signature, issuer and expiry of rawToken, in that order, and
// returns the subject claim. An optional "Bearer " prefix is stripped first.
// A token is expired iff now >= exp.
func (v *TokenVerifier) Verify(rawToken string) (string, error) {
	rawToken = strings.TrimPrefix(rawToken, "Bearer ")

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			alg, _ := token.Header["alg"].(string)
			return nil, errors.Wrap(ErrInvalidSigningMethod, alg)
		}
		return v.key, nil
	}, jwt.WithIssuer(v.issuer))

	if err != nil {
		// Malformed structure, bad signature or wrong issuer is reported
		// before expiry.
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid),
			errors.Is(err, jwt.ErrTokenMalformed),
			errors.Is(err, jwt.ErrTokenInvalidIssuer),
			errors.Is(err, ErrInvalidSigningMethod):
			return "", errors.Wrap(ErrInvalidToken, err.Error())
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", ErrExpiredToken
		default:
			return "", errors.Wrap(ErrInvalidToken, err.Error())
		}
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	if claims.ExpiresAt == nil || !time.Now().Before(claims.ExpiresAt.Time) {
		return "", ErrExpiredToken
	}

	if claims.Subject == "" {
		return "", errors.Wrap(ErrInvalidToken, "empty subject")
	}

	return claims.Subject, nil
}
