// Package clearly holds the domain types shared by the wishlist services:
// lists and their items, email subscriptions to a list, and the append-only
// event and batch records that drive the notification digests.
package clearly

import (
	"crypto/rand"
	"errors"
	"regexp"
)

var (
	ErrConflict = errors.New("resource already exists")
	ErrNotFound = errors.New("resource not found")
	ErrExpired  = errors.New("resource expired")

	// ErrRunInProgress is returned when a digest run is requested while another
	// one is still going.
	ErrRunInProgress = errors.New("digest run already in progress")
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewToken returns a random alphanumeric string of length n.
func NewToken(n int) string {
	// Largest multiple of the alphabet size that fits in a byte, to avoid modulo bias.
	const limit = 256 - 256%len(tokenAlphabet)

	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		rand.Read(buf)
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == n {
				break
			}
		}
	}

	return string(out)
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}
