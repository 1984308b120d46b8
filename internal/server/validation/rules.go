package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	UsernameMaxLength = 150
	EmailMaxLength    = 254
	NameMaxLength     = 30
)

const (
	MsgRequired        = "This field is required."
	MsgBlank           = "This field may not be blank."
	MsgInvalidEmail    = "Enter a valid email address."
	MsgInvalidUsername = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	MsgMaxLength       = "Ensure this field has no more than %d characters."
	MsgPasswordsDiffer = "Password fields didn't match."
	MsgUsernameTaken   = "A user with this username already exists."
	MsgEmailTaken      = "A user with this email already exists."
)

var usernameRe = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

// Username checks a username as submitted. Leading and trailing blanks are
// not trimmed; they make the value invalid.
func Username(v string) []string {
	switch {
	case v == "":
		return []string{MsgRequired}
	case utf8.RuneCountInString(v) > UsernameMaxLength:
		return []string{fmt.Sprintf(MsgMaxLength, UsernameMaxLength)}
	case !usernameRe.MatchString(v):
		return []string{MsgInvalidUsername}
	}
	return nil
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// Email checks an already normalized address. Display names and comments
// are rejected; only a bare addr-spec with a dotted domain is accepted.
func Email(v string) []string {
	if v == "" {
		return []string{MsgRequired}
	}
	if utf8.RuneCountInString(v) > EmailMaxLength {
		return []string{fmt.Sprintf(MsgMaxLength, EmailMaxLength)}
	}

	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v || addr.Name != "" {
		return []string{MsgInvalidEmail}
	}

	at := strings.LastIndexByte(v, '@')
	domain := v[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return []string{MsgInvalidEmail}
	}
	return nil
}

// Name checks an optional display name.
func Name(v string) []string {
	if utf8.RuneCountInString(v) > NameMaxLength {
		return []string{fmt.Sprintf(MsgMaxLength, NameMaxLength)}
	}
	return nil
}

// Required reports a blank value.
func Required(v string) []string {
	if v == "" {
		return []string{MsgRequired}
	}
	return nil
}
