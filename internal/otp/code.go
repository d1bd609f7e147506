// Package otp generates and compares one-time codes.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"regexp"
)

const codeDigits = 6

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

// GenerateCode returns a uniformly random 6-digit numeric code (e.g. "042317").
// Leading zeros are allowed. Uses crypto/rand for randomness.
func GenerateCode() (string, error) {
	// Rejection sampling keeps each digit uniform over 0-9.
	s := make([]byte, codeDigits)
	buf := make([]byte, 1)
	for i := 0; i < codeDigits; {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		if buf[0] >= 250 {
			continue
		}
		s[i] = '0' + buf[0]%10
		i++
	}
	return string(s), nil
}

// ValidCode reports whether s is a well-formed 6-digit code.
func ValidCode(s string) bool {
	return codePattern.MatchString(s)
}

// Equal performs a constant-time, case-sensitive exact comparison of two codes.
func Equal(presented, stored string) bool {
	if presented == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}
