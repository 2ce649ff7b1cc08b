package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Slug makes s safe as a file name: accents are stripped, spaces become
// underscores and any other run of unsafe characters collapses to one "_".
func Slug(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}
	plain = strings.ReplaceAll(plain, " ", "_")
	return slugUnsafe.ReplaceAllString(plain, "_")
}
