package extract

import (
	"strings"
	"unicode"
)

// DefaultTitle is used when nothing meaningful is left around a mention.
const DefaultTitle = "予定"

// Multi-rune particles are tried before single-rune ones.
var (
	boundaryWords = []string{"から", "まで", "より"}
	boundaryRunes = "はがをにでへとのもや、。,.・!?！？:："
)

// Title derives an event title from the line of text that contains
// snippet: the snippet is cut out and boundary particles, punctuation and
// whitespace are trimmed from both ends until stable. An empty result, or
// no line containing snippet, yields fallback (DefaultTitle when empty).
func Title(text, snippet, fallback string) string {
	if fallback == "" {
		fallback = DefaultTitle
	}
	if snippet == "" {
		return fallback
	}

	for _, line := range strings.Split(text, "\n") {
		i := strings.Index(line, snippet)
		if i < 0 {
			continue
		}
		rest := trimBoundaries(line[:i] + line[i+len(snippet):])
		if rest == "" {
			return fallback
		}
		return rest
	}
	return fallback
}

func trimBoundaries(s string) string {
	for {
		before := s
		s = strings.TrimFunc(s, func(r rune) bool {
			return unicode.IsSpace(r) || strings.ContainsRune(boundaryRunes, r)
		})
		for _, w := range boundaryWords {
			s = strings.TrimPrefix(s, w)
			s = strings.TrimSuffix(s, w)
		}
		if s == before {
			return s
		}
	}
}
