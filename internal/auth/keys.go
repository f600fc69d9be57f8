package auth

import (
	"crypto/rsa"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// LoadPrivateKey reads a PEM-encoded RSA private key from path. Only the
// token issuer needs it; verifying services load the public key alone.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read private key")
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}

	return key, nil
}

func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read public key")
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse public key")
	}

	return key, nil
}
