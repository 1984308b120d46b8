// Package passwords turns plaintext passwords into self-describing one-way
// hashes and back into yes/no answers. Hash strings embed the algorithm,
// its cost parameters and the salt, so verification never needs outside
// state and algorithms can change without invalidating stored hashes.
package passwords

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnknownHashFormat is returned when no configured hasher recognises a
// stored hash.
var ErrUnknownHashFormat = errors.New("unknown password hash format")

// Hasher is one hashing algorithm.
type Hasher interface {
	// Hash returns an encoded hash with a fresh random salt.
	Hash(plain string) (string, error)
	// Verify compares plain against encoded in constant time.
	Verify(plain, encoded string) (bool, error)
	// Identifies reports whether encoded was produced by this algorithm.
	Identifies(encoded string) bool
	// NeedsUpgrade reports whether encoded uses weaker parameters than the
	// hasher is configured with.
	NeedsUpgrade(encoded string) bool
}

// Algorithm names accepted in configuration.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// Bcrypt hashes with golang.org/x/crypto/bcrypt. Inputs longer than 72
// bytes are rejected by the library, Policy keeps them out earlier.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher. Costs outside bcrypt's range are an error.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}
	return &Bcrypt{cost: cost}, nil
}

func (b *Bcrypt) Hash(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b *Bcrypt) Verify(plain, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

func (b *Bcrypt) Identifies(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

func (b *Bcrypt) NeedsUpgrade(encoded string) bool {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return true
	}
	return cost < b.cost
}
