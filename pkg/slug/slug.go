package slug

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	maxStemRunes  = 80
	maxExtRunes   = 5
	fallbackStem  = "cover"
	separatorRune = '-'
)

// Filename reduces an uploaded file name to a safe storage name: directory
// parts are dropped, the stem keeps letters and digits of any script (so
// Hangul survives), every other run becomes a single hyphen, and the
// extension is lowercased ASCII.
//
// Examples:
//   - "../../etc/passwd" → "passwd"
//   - "코스모스 표지.JPG" → "코스모스-표지.jpg"
//   - "  .png" → "cover.png"
func Filename(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	base = norm.NFC.String(base)
	if base == "." || base == "/" {
		base = ""
	}

	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stem = Generate(stem)
	if r := []rune(stem); len(r) > maxStemRunes {
		stem = strings.TrimRight(string(r[:maxStemRunes]), string(separatorRune))
	}
	if stem == "" {
		stem = fallbackStem
	}

	return stem + cleanExt(ext)
}

// Generate lowercases s and collapses every run of characters that are not
// letters or digits into one hyphen, trimming hyphens at both ends.
func Generate(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteRune(separatorRune)
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

func cleanExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	var b strings.Builder
	for _, r := range ext {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return ""
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 || b.Len() > maxExtRunes {
		return ""
	}
	return "." + b.String()
}
