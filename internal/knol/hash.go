// Package knol derives stable content identifiers for facts.
package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/curio/internal/domain"
)

// Normalize joins the identifying parts of a fact after cleaning each one.
// Parts are trimmed and lowercased and line endings are unified so that the
// same fact written by two different sources normalizes identically.
func Normalize(topic, title, blurb string) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	// Joined with a newline so "ab"+"c" and "a"+"bc" differ.
	return strings.Join([]string{normalizePart(topic), normalizePart(title), normalizePart(blurb)}, "\n")
}

// Hash returns the SHA-256 hex digest of the normalized parts.
func Hash(topic, title, blurb string) string {
	sum := sha256.Sum256([]byte(Normalize(topic, title, blurb)))
	return fmt.Sprintf("%x", sum)
}

// FactID derives the id of a fact that was not given one. Ids are shortened
// to 16 hex digits and prefixed so they never collide with numbered pools.
func FactID(topic, title, blurb string) domain.FactID {
	return domain.FactID("f-" + Hash(topic, title, blurb)[:16])
}
