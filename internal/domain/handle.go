package domain

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	spaceRun  = regexp.MustCompile(`\s+`)
	nonWord   = regexp.MustCompile(`[^a-z0-9_-]+`)
	hyphenRun = regexp.MustCompile(`-{2,}`)
)

// Slugify turns a title into a URL handle: "Essence Mascara Lash Princess" -> "essence-mascara-lash-princess".
// Accents are folded before non-word characters are dropped.
func Slugify(s string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.ToLower(strings.TrimSpace(b.String()))
	out = spaceRun.ReplaceAllString(out, "-")
	out = nonWord.ReplaceAllString(out, "")
	return hyphenRun.ReplaceAllString(out, "-")
}
