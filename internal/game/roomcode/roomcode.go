// Package roomcode generates the short, human-typeable codes players share
// to pair up. Codes are case-insensitive on input; generation uses an
// uppercase alphabet with visually ambiguous characters removed.
package roomcode

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Alphabet is the code character set: uppercase alphanumerics minus
// I, L, O, 0 and 1, which read ambiguously when shared aloud or on paper.
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// DefaultLength is the standard code length.
const DefaultLength = 6

// Generator produces room codes of a fixed length. Uniqueness against live
// rooms is the caller's responsibility; the generator only guarantees the
// format. Safe for concurrent use.
type Generator struct {
	length int
}

// New creates a Generator for codes of the given length. Non-positive
// lengths fall back to DefaultLength.
func New(length int) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	return &Generator{length: length}
}

// NewCode returns a fresh random code.
func (g *Generator) NewCode() (string, error) {
	b := make([]byte, g.length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	for i := range b {
		b[i] = Alphabet[int(b[i])%len(Alphabet)]
	}
	return string(b), nil
}

// Normalize maps client-supplied input onto the canonical code form:
// trimmed and uppercased. Lookups must go through Normalize so that codes
// stay case-insensitive on input.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
