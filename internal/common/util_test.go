package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWipeByteArray(t *testing.T) {
	buf := []byte("Secure!23")
	WipeByteArray(buf)
	assert.Equal(t, make([]byte, 9), buf)

	WipeByteArray(nil)
}

func TestSentinelsAreDistinct(t *testing.T) {
	all := []error{
		ErrorNotFound, ErrorUnauthorized, ErrValidation, ErrConflict,
		ErrInvalidCredentials, ErrAccountDisabled, ErrInvalidToken, ErrTokenExpired,
	}
	for i, a := range all {
		for j, b := range all {
			if i != j && errors.Is(a, b) {
				t.Fatalf("%v must not match %v", a, b)
			}
		}
	}
}
