package extract

import (
	"regexp"

	"memocal/internal/model"
)

// SeparatorPattern is the contract for what may sit between two numerals of
// one group: any mix (including none) of whitespace, ASCII or ideographic
// commas, middle dots, ampersands, periods and the word "and". Anything else
// ends the group.
const SeparatorPattern = `^(?:[\s\x{3000},，、・･&＆.．]|and)*$`

var reSeparator = regexp.MustCompile(SeparatorPattern)

// IsSeparator reports whether s may join two numerals into one group.
func IsSeparator(s string) bool {
	return reSeparator.MatchString(s)
}

// GroupAdjacent folds document-ordered numerals into groups greedily.
func GroupAdjacent(text string, numerals []model.AmbiguousNumeral) []model.AmbiguousGroup {
	if len(numerals) == 0 {
		return nil
	}

	var (
		groups  []model.AmbiguousGroup
		current = []model.AmbiguousNumeral{numerals[0]}
	)
	for _, n := range numerals[1:] {
		last := current[len(current)-1]
		if n.Offset >= last.End() && IsSeparator(text[last.End():n.Offset]) {
			current = append(current, n)
			continue
		}
		groups = append(groups, closeGroup(text, current))
		current = []model.AmbiguousNumeral{n}
	}
	return append(groups, closeGroup(text, current))
}

func closeGroup(text string, members []model.AmbiguousNumeral) model.AmbiguousGroup {
	first, last := members[0], members[len(members)-1]
	return model.AmbiguousGroup{
		ID:          GroupID(members),
		Members:     members,
		ContextText: text[first.Offset:last.End()],
	}
}
