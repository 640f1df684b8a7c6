package domain

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize trims s and converts it to Unicode NFC, so decomposed Hangul
// from some input methods compares equal to stored text.
func Normalize(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
