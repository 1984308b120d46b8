package passwords

import "strings"

// commonPasswords is a short list of the most frequently leaked passwords.
var commonPasswords = map[string]struct{}{}

func init() {
	for _, p := range strings.Fields(`
		123456 123456789 12345678 12345 1234567 1234567890 111111 000000 123123 654321
		password password1 password123 passw0rd p@ssw0rd qwerty qwerty123 qwertyuiop
		abc123 abcd1234 iloveyou admin admin123 administrator welcome welcome1 letmein
		monkey dragon football baseball sunshine princess master shadow superman
		michael trustno1 whatever starwars hello123 freedom secret secret123 changeme
		login root toor test test123 guest default 1q2w3e4r 1qaz2wsx zaq12wsx
		asdfghjkl asdf1234 computer internet summer2024 winter2024 charlie jordan23
	`) {
		commonPasswords[p] = struct{}{}
	}
}

func isCommon(password string) bool {
	_, ok := commonPasswords[strings.ToLower(strings.TrimSpace(password))]
	return ok
}
