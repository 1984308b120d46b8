package passwords

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Policy messages. They are returned to clients verbatim.
const (
	MsgTooShort         = "This password is too short. It must contain at least %d characters."
	MsgTooLong          = "This password is too long. It must contain at most %d characters."
	MsgTooManyBytes     = "This password is too long. It must fit in %d bytes of UTF-8."
	MsgTooCommon        = "This password is too common."
	MsgEntirelyNumeric  = "This password is entirely numeric."
	MsgTooSimilar       = "The password is too similar to the %s."
	MsgNeedsMixedCase   = "This password must contain both uppercase and lowercase letters."
	MsgNeedsDigit       = "This password must contain at least one digit."
	MsgNeedsSymbol      = "This password must contain at least one symbol."
	similarityThreshold = 0.7
)

// Policy describes what a new password must satisfy before it is hashed.
// MinLength and MaxLength count characters; MaxBytes caps the encoded size
// handed to the hasher, which for bcrypt is 72.
type Policy struct {
	MinLength        int
	MaxLength        int
	MaxBytes         int
	RequireMixedCase bool
	RequireDigit     bool
	RequireSymbol    bool
	RejectNumeric    bool
	RejectCommon     bool
	RejectSimilar    bool
}

// DefaultPolicy mirrors the stock validators of the service this one
// replaces: length, common, numeric and similarity checks, no character
// class requirements.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:     8,
		MaxLength:     72,
		MaxBytes:      72,
		RejectNumeric: true,
		RejectCommon:  true,
		RejectSimilar: true,
	}
}

// Attribute is a user attribute the password must not resemble.
type Attribute struct {
	Name  string
	Value string
}

// Check returns every rule the password breaks, in a stable order. An empty
// result means the password is acceptable.
func (p Policy) Check(password string, attrs ...Attribute) []string {
	var msgs []string

	chars := utf8.RuneCountInString(password)
	if p.MinLength > 0 && chars < p.MinLength {
		msgs = append(msgs, fmt.Sprintf(MsgTooShort, p.MinLength))
	}
	switch {
	case p.MaxLength > 0 && chars > p.MaxLength:
		msgs = append(msgs, fmt.Sprintf(MsgTooLong, p.MaxLength))
	case p.MaxBytes > 0 && len(password) > p.MaxBytes:
		msgs = append(msgs, fmt.Sprintf(MsgTooManyBytes, p.MaxBytes))
	}

	if p.RejectSimilar {
		for _, a := range attrs {
			if similar(password, a.Value) {
				msgs = append(msgs, fmt.Sprintf(MsgTooSimilar, a.Name))
				break
			}
		}
	}

	if p.RejectCommon && isCommon(password) {
		msgs = append(msgs, MsgTooCommon)
	}
	if p.RejectNumeric && password != "" && isNumeric(password) {
		msgs = append(msgs, MsgEntirelyNumeric)
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r):
			symbol = true
		}
	}
	if p.RequireMixedCase && !(upper && lower) {
		msgs = append(msgs, MsgNeedsMixedCase)
	}
	if p.RequireDigit && !digit {
		msgs = append(msgs, MsgNeedsDigit)
	}
	if p.RequireSymbol && !symbol {
		msgs = append(msgs, MsgNeedsSymbol)
	}

	return msgs
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// similar compares the password with an attribute value and with each
// part of it split on non-word characters, so "alice.smith@x.com" is also
// checked as "alice", "smith", "x" and "com".
func similar(password, value string) bool {
	password = strings.ToLower(password)
	value = strings.ToLower(value)
	if value == "" || password == "" {
		return false
	}

	parts := strings.FieldsFunc(value, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	parts = append(parts, value)

	for _, part := range parts {
		if len(part) < 3 {
			continue
		}
		if matchRatio(password, part) >= similarityThreshold {
			return true
		}
	}
	return false
}

// matchRatio is 2*M/T where M is the length of the longest common
// subsequence and T the combined length, the same scale difflib uses.
func matchRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra)+len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			switch {
			case ra[i-1] == rb[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}

	return 2 * float64(prev[len(rb)]) / float64(len(ra)+len(rb))
}
