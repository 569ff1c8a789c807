// Package keys holds the asymmetric key pair used by the protocol issuer.
//
// A KeySet is generated once at process start and shared read-only by the
// issuer (signing) and the scoped bearer verifier. Only the public half is
// published, as a JWKS.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
)

// RSABits is the modulus size of generated signing keys.
const RSABits = 2048

// KeySet is an RSA signing key with its key ID.
type KeySet struct {
	private *rsa.PrivateKey
	keyID   string
}

// Generate creates a fresh RSA-2048 key pair with a random key ID.
func Generate() (*KeySet, error) {
	key, err := rsa.GenerateKey(rand.Reader, RSABits)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return &KeySet{private: key, keyID: uuid.NewString()}, nil
}

// KeyID is the kid header value of every token signed with this key.
func (k *KeySet) KeyID() string { return k.keyID }

// Algorithm is the JWS algorithm used with this key.
func (k *KeySet) Algorithm() jose.SignatureAlgorithm { return jose.RS256 }

// PrivateKey returns the signing key.
func (k *KeySet) PrivateKey() *rsa.PrivateKey { return k.private }

// PublicKey returns the verification key.
func (k *KeySet) PublicKey() *rsa.PublicKey { return &k.private.PublicKey }

// JWKS returns the public verification set.
func (k *KeySet) JWKS() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       k.PublicKey(),
		KeyID:     k.keyID,
		Algorithm: string(k.Algorithm()),
		Use:       "sig",
	}}}
}

// JWKSJSON returns the JSON encoding of JWKS.
func (k *KeySet) JWKSJSON() (json.RawMessage, error) {
	raw, err := json.Marshal(k.JWKS())
	if err != nil {
		return nil, fmt.Errorf("marshal jwks: %w", err)
	}
	return raw, nil
}
