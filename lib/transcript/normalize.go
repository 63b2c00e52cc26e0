package transcript

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var digitWords = [10]string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}

// Normalize folds a transcript to lowercase words without accents or
// punctuation. Digits are spelled out one by one so "739" matches "seven
// three nine".
func Normalize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var sb strings.Builder
	sb.Grow(len(folded))

	for _, r := range folded {
		switch {
		case r >= '0' && r <= '9':
			sb.WriteByte(' ')
			sb.WriteString(digitWords[r-'0'])
			sb.WriteByte(' ')
		case unicode.IsLetter(r):
			sb.WriteRune(unicode.ToLower(r))
		case r == '\'' || r == '’':
			// "don't" and "dont" are the same word.
		default:
			sb.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(sb.String()), " ")
}
