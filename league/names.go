package league

import (
	"regexp"
	"strings"
	"unicode"
)

var suffixRe = regexp.MustCompile(`(?i)\s+(jr\.?|sr\.?|ii|iii|iv|v)$`)

// NormalizeName folds a player name for matching across sources: periods
// and generational suffixes are dropped, whitespace is collapsed and the
// result is title cased. "D.J. Moore" and "DJ Moore" both become
// "Dj Moore"; "Marvin Harrison Jr." becomes "Marvin Harrison".
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, ".", "")
	name = suffixRe.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")
	return titleCase(name)
}

// titleCase upper-cases every letter that follows a non-letter and
// lower-cases the rest, so "d'andre" becomes "D'Andre".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
