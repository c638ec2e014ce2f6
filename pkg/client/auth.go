package client

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// tokenLifetime is short since a token is created per request.
const tokenLifetime = 5 * time.Second

// ErrUnsupportedKey is returned for keys other than RSA and EC P-256/384/521.
var ErrUnsupportedKey = errors.New("unsupported private key")

// ParseAPIKey decodes a PEM encoded RSA or EC private key.
func ParseAPIKey(data []byte) (crypto.Signer, error) {
	key, err := jwk.ParseKey(data, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PEM file: %w", err)
	}
	var raw any
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode PEM file: %w", err)
	}
	switch k := raw.(type) {
	case *rsa.PrivateKey:
		return k, nil
	case *ecdsa.PrivateKey:
		return k, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, raw)
	}
}

// createTokenGenerator creates API tokens for the node, signed with the configured key.
func createTokenGenerator(cfg Config) AuthorizationTokenGenerator {
	return func() (string, error) {
		key, alg, err := jwkKey(cfg.APIKey)
		if err != nil {
			return "", err
		}

		issuedAt := time.Now()
		token, err := jwt.NewBuilder().
			Issuer(cfg.APIUser).
			Subject(cfg.APIUser).
			Audience([]string{cfg.APIAudience}).
			IssuedAt(issuedAt).
			NotBefore(issuedAt).
			Expiration(issuedAt.Add(tokenLifetime)).
			JwtID(uuid.NewString()).
			Build()
		if err != nil {
			return "", err
		}

		signed, err := jwt.Sign(token, jwt.WithKey(alg, key))
		if err != nil {
			return "", err
		}
		return string(signed), nil
	}
}

func jwkKey(signer crypto.Signer) (jwk.Key, jwa.SignatureAlgorithm, error) {
	var alg jwa.SignatureAlgorithm
	switch k := signer.(type) {
	case *rsa.PrivateKey:
		alg = jwa.PS512
	case *ecdsa.PrivateKey:
		var err error
		if alg, err = ecAlg(k.PublicKey); err != nil {
			return nil, "", err
		}
	default:
		return nil, "", fmt.Errorf("%w: %T", ErrUnsupportedKey, signer)
	}

	key, err := jwk.FromRaw(signer)
	if err != nil {
		return nil, "", err
	}
	if err := key.Set(jwk.AlgorithmKey, alg); err != nil {
		return nil, "", err
	}
	if err := jwk.AssignKeyID(key); err != nil {
		return nil, "", err
	}
	return key, alg, nil
}

func ecAlg(key ecdsa.PublicKey) (jwa.SignatureAlgorithm, error) {
	switch key.Params().BitSize {
	case 256:
		return jwa.ES256, nil
	case 384:
		return jwa.ES384, nil
	case 521:
		return jwa.ES512, nil
	default:
		return "", fmt.Errorf("%w: EC curve of %d bits", ErrUnsupportedKey, key.Params().BitSize)
	}
}
