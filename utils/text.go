// utils/text.go
package utils

import (
	"strings"

	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
	"golang.org/x/text/unicode/norm"
)

// NormalizeTitle trims and NFC-normalizes user-entered text.
func NormalizeTitle(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Slugify returns a URL-safe slug ("Étirements Matinaux" -> "etirements-matinaux").
func Slugify(s string) string {
	return slug.MakeLang(s, "fr")
}

// SearchKey folds accents and case: "Étirements Matinaux" -> "etirements matinaux".
func SearchKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(unidecode.Unidecode(NormalizeTitle(s))), " "))
}
