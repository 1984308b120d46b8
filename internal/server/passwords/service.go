package passwords

import (
	"context"
	"fmt"
)

// dummyPassword is hashed once at startup; VerifyDummy compares against it
// so that a login for an unknown account costs as much as a real one.
const dummyPassword = "credkeeper-dummy-password"

// Config selects the primary algorithm and its parameters.
type Config struct {
	Algorithm  string
	BcryptCost int
	Argon2     Argon2Config
	Workers    int
}

// Service hashes with a primary algorithm and verifies against any
// configured one, so stored hashes survive an algorithm switch.
type Service struct {
	primary Hasher
	hashers []Hasher
	pool    *Pool
	dummy   string
}

// NewService builds a service from configuration. Both bcrypt and argon2id
// are always available for verification; cfg.Algorithm picks the one used
// for new hashes.
func NewService(cfg Config) (*Service, error) {
	bc, err := NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	argonCfg := cfg.Argon2
	if argonCfg == (Argon2Config{}) {
		argonCfg = DefaultArgon2Config()
	}
	ar, err := NewArgon2(argonCfg)
	if err != nil {
		return nil, err
	}

	var primary, secondary Hasher
	switch cfg.Algorithm {
	case "", AlgorithmBcrypt:
		primary, secondary = bc, ar
	case AlgorithmArgon2id:
		primary, secondary = ar, bc
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", cfg.Algorithm)
	}

	return NewServiceWith(NewPool(cfg.Workers), primary, secondary)
}

// NewServiceWith wires explicit hashers. The first one is primary.
func NewServiceWith(pool *Pool, primary Hasher, others ...Hasher) (*Service, error) {
	dummy, err := primary.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("error preparing dummy hash: %w", err)
	}

	return &Service{
		primary: primary,
		hashers: append([]Hasher{primary}, others...),
		pool:    pool,
		dummy:   dummy,
	}, nil
}

// Hash encodes plain with the primary algorithm.
func (s *Service) Hash(ctx context.Context, plain string) (string, error) {
	var encoded string
	err := s.pool.Run(ctx, func() error {
		var err error
		encoded, err = s.primary.Hash(plain)
		return err
	})
	return encoded, err
}

// Verify reports whether plain matches encoded. A hash that no configured
// algorithm recognises yields ErrUnknownHashFormat.
func (s *Service) Verify(ctx context.Context, plain, encoded string) (bool, error) {
	h := s.hasherFor(encoded)
	if h == nil {
		return false, ErrUnknownHashFormat
	}

	var ok bool
	err := s.pool.Run(ctx, func() error {
		var err error
		ok, err = h.Verify(plain, encoded)
		return err
	})
	return ok, err
}

// VerifyDummy burns the same amount of work as Verify. The result is
// discarded, callers treat the login as failed regardless.
func (s *Service) VerifyDummy(ctx context.Context, plain string) {
	_, _ = s.Verify(ctx, plain, s.dummy)
}

// NeedsRehash reports whether encoded should be replaced by a fresh hash
// from the primary algorithm.
func (s *Service) NeedsRehash(encoded string) bool {
	if !s.primary.Identifies(encoded) {
		return true
	}
	return s.primary.NeedsUpgrade(encoded)
}

func (s *Service) hasherFor(encoded string) Hasher {
	for _, h := range s.hashers {
		if h.Identifies(encoded) {
			return h
		}
	}
	return nil
}
