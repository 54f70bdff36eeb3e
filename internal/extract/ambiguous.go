package extract

import (
	"regexp"

	"memocal/internal/model"
)

// reDigitRun matches maximal ASCII digit runs; only runs of length 1–2
// qualify, so "2024" never yields "20" or "24".
var reDigitRun = regexp.MustCompile(`[0-9]+`)

const maxNumeralDigits = 2

// DetectAmbiguous returns the bare 1–2 digit numerals in text that do not
// overlap any mention and are not suppressed by the ledger. mentions must
// be the full set produced by the pass, suppressed ones included, so that
// the digits of an accepted "10時" never resurface on their own.
func DetectAmbiguous(text string, mentions []model.ParsedMention, ledger *Ledger) []model.AmbiguousNumeral {
	var out []model.AmbiguousNumeral
	for _, loc := range reDigitRun.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if end-start > maxNumeralDigits {
			continue
		}
		if overlapsMention(start, end, mentions) {
			continue
		}
		n := model.AmbiguousNumeral{Digits: text[start:end], Offset: start}
		if ledger != nil && ledger.NumeralSuppressed(n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func overlapsMention(start, end int, mentions []model.ParsedMention) bool {
	for _, m := range mentions {
		if start < m.End && end > m.Start {
			return true
		}
	}
	return false
}
