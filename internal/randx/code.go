// Package randx generates random identifiers from the URL-safe
// alphabet.
package randx

import "crypto/rand"

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// Code returns a random string of length n over a 64-symbol URL-safe
// alphabet. Each byte of entropy maps to exactly one symbol, so the
// distribution is uniform. Panics if the system entropy source fails,
// which is not a recoverable condition.
func Code(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("randx: entropy source failed: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = alphabet[b&0x3f]
	}
	return string(buf)
}
