package visitor

import (
	"strings"
	"unicode"
)

// pathCase lower-cases s and joins its words with "/". Words break on
// any non alphanumeric rune and on camel case humps, so "v1/FooBar"
// becomes "v1/foo/bar" and "APIKeys" becomes "api/keys". Digits stay
// attached to the preceding word.
func pathCase(s string) string {
	return strings.Join(words(s), "/")
}

func words(s string) []string {
	var (
		out []string
		cur []rune
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(cur) > 0 {
			prev := cur[len(cur)-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return out
}
