package upload

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	disallowedChars = regexp.MustCompile(`[^a-zA-Z0-9-]`)
	repeatedDashes  = regexp.MustCompile(`--+`)
)

// SanitizeFileName turns a user supplied file name into an object key safe name: accents are
// stripped, anything outside [A-Za-z0-9-] becomes a dash and the extension is kept.
func SanitizeFileName(fileName string) string {
	ext := filepath.Ext(fileName)
	name := strings.TrimSuffix(fileName, ext)
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn))), name)
	if err != nil {
		stripped = name
	}
	sanitized := disallowedChars.ReplaceAllString(stripped, "-")
	sanitized = repeatedDashes.ReplaceAllString(sanitized, "-")
	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		sanitized = "file"
	}
	ext = disallowedChars.ReplaceAllString(strings.TrimPrefix(ext, "."), "")
	if ext == "" {
		return sanitized
	}
	return sanitized + "." + strings.ToLower(ext)
}
