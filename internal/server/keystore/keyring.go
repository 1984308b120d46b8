// Package keystore loads the keys used to sign and verify tokens. A
// keyring holds every key that may still verify in-flight tokens and names
// the one that signs new ones; the key id travels in each token header.
package keystore

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Supported signing algorithms.
const (
	AlgorithmHS256 = "HS256"
	AlgorithmEdDSA = "EdDSA"
)

const minHMACSecretLength = 8

var (
	ErrUnknownKey       = errors.New("unknown signing key id")
	ErrInvalidKeyring   = errors.New("invalid keyring")
	ErrUnsupportedAlg   = errors.New("unsupported signing algorithm")
	ErrInvalidPublicKey = errors.New("invalid ed25519 key")
)

// Keyring is a set of keys sharing one algorithm. For HS256 a key is the
// shared secret, for EdDSA it is an ed25519 private key (seed, raw or
// PKCS#8 PEM).
type Keyring struct {
	Algorithm string
	ActiveKID string
	Keys      map[string][]byte
}

// document is the on-disk JSON form. Values are base64, or PEM text for
// EdDSA keys.
type document struct {
	Algorithm string            `json:"algorithm"`
	ActiveKID string            `json:"active_kid"`
	Keys      map[string]string `json:"keys"`
}

// Parse decodes and validates a JSON keyring document.
func Parse(data []byte) (*Keyring, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyring, err)
	}

	kr := &Keyring{
		Algorithm: doc.Algorithm,
		ActiveKID: doc.ActiveKID,
		Keys:      make(map[string][]byte, len(doc.Keys)),
	}
	if kr.Algorithm == "" {
		kr.Algorithm = AlgorithmHS256
	}

	for kid, v := range doc.Keys {
		if strings.HasPrefix(strings.TrimSpace(v), "-----BEGIN") {
			kr.Keys[kid] = []byte(v)
			continue
		}
		b, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q is not base64", ErrInvalidKeyring, kid)
		}
		kr.Keys[kid] = b
	}

	if err := kr.Validate(); err != nil {
		return nil, err
	}
	return kr, nil
}

// Validate checks that the keyring can sign and that every key is usable.
func (k *Keyring) Validate() error {
	if k.Algorithm != AlgorithmHS256 && k.Algorithm != AlgorithmEdDSA {
		return fmt.Errorf("%w: %q", ErrUnsupportedAlg, k.Algorithm)
	}
	if len(k.Keys) == 0 {
		return fmt.Errorf("%w: no keys", ErrInvalidKeyring)
	}
	if _, ok := k.Keys[k.ActiveKID]; !ok {
		return fmt.Errorf("%w: active key %q not in keyring", ErrInvalidKeyring, k.ActiveKID)
	}

	for _, kid := range k.KIDs() {
		if kid == "" {
			return fmt.Errorf("%w: empty key id", ErrInvalidKeyring)
		}
		key := k.Keys[kid]
		switch k.Algorithm {
		case AlgorithmHS256:
			if len(key) < minHMACSecretLength {
				return fmt.Errorf("%w: secret %q shorter than %d bytes", ErrInvalidKeyring, kid, minHMACSecretLength)
			}
		case AlgorithmEdDSA:
			if _, err := ed25519Key(key); err != nil {
				return fmt.Errorf("%w: key %q: %v", ErrInvalidKeyring, kid, err)
			}
		}
	}
	return nil
}

// KIDs returns the key ids in sorted order.
func (k *Keyring) KIDs() []string {
	ids := make([]string, 0, len(k.Keys))
	for kid := range k.Keys {
		ids = append(ids, kid)
	}
	sort.Strings(ids)
	return ids
}

// SigningKey returns the active key id and the key material to sign with:
// []byte for HS256, ed25519.PrivateKey for EdDSA.
func (k *Keyring) SigningKey() (string, any, error) {
	key, ok := k.Keys[k.ActiveKID]
	if !ok {
		return "", nil, ErrUnknownKey
	}
	if k.Algorithm == AlgorithmEdDSA {
		priv, err := ed25519Key(key)
		if err != nil {
			return "", nil, err
		}
		return k.ActiveKID, priv, nil
	}
	return k.ActiveKID, key, nil
}

// VerificationKey returns the key that checks signatures made with kid:
// []byte for HS256, ed25519.PublicKey for EdDSA.
func (k *Keyring) VerificationKey(kid string) (any, error) {
	key, ok := k.Keys[kid]
	if !ok {
		return nil, ErrUnknownKey
	}
	if k.Algorithm == AlgorithmEdDSA {
		priv, err := ed25519Key(key)
		if err != nil {
			return nil, err
		}
		return priv.Public(), nil
	}
	return key, nil
}

func ed25519Key(b []byte) (ed25519.PrivateKey, error) {
	if block, _ := pem.Decode(b); block != nil {
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		priv, ok := parsed.(ed25519.PrivateKey)
		if !ok {
			return nil, ErrInvalidPublicKey
		}
		return priv, nil
	}

	switch len(b) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(b), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(b), nil
	default:
		return nil, ErrInvalidPublicKey
	}
}
