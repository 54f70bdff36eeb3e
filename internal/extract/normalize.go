package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// reHourTypo matches a trailing "{month}月{n}時" where the user meant 日.
// Anchored at the end so legitimate hour mentions elsewhere are untouched.
var reHourTypo = regexp.MustCompile(`(\d{1,2})月(\d{1,2})時$`)

// Normalize canonicalizes raw input before it reaches the grammar.
// Replacements are rune-for-rune: full-width digits become ASCII digits and
// a trailing "4月3時" becomes "4月3日".
func Normalize(raw string) string {
	s := strings.Map(narrowDigit, raw)
	return reHourTypo.ReplaceAllString(s, "${1}月${2}日")
}

func narrowDigit(r rune) rune {
	if r < '０' || r > '９' {
		return r
	}
	if n := width.LookupRune(r).Narrow(); n != 0 {
		return n
	}
	return r - '０' + '0'
}
