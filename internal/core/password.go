package core

import "strings"

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

const passwordSymbols = "@$!%*#?&"

// IsAcceptablePassword reports whether p is at least MinPasswordLength long,
// contains an ASCII letter and a digit, and uses only letters, digits and
// the symbols @$!%*#?&.
func IsAcceptablePassword(p string) bool {
	if len(p) < MinPasswordLength {
		return false
	}
	var letter, digit bool
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			letter = true
		case c >= '0' && c <= '9':
			digit = true
		case strings.IndexByte(passwordSymbols, c) >= 0:
		default:
			return false
		}
	}
	return letter && digit
}
