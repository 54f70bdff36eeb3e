package extract

import (
	"strconv"
	"strings"

	"memocal/internal/model"
)

// Identity keys are plain strings so the same text at the same offsets
// always yields the same key across passes.
//
//	mention        m:<offset>:<text>
//	group          g:<offset>-<offset>-...
//	group member   <group id>|<digits>@<offset>
//	numeral index  n:<digits>@<offset>

// MentionIdentity returns the ledger key of a mention.
func MentionIdentity(text string, offset int) string {
	return "m:" + strconv.Itoa(offset) + ":" + text
}

// GroupID derives a group's id from the offsets of all its members.
func GroupID(members []model.AmbiguousNumeral) string {
	var b strings.Builder
	b.WriteString("g:")
	for i, m := range members {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(strconv.Itoa(m.Offset))
	}
	return b.String()
}

// MemberIdentity returns the ledger key of one member of a group.
func MemberIdentity(groupID string, n model.AmbiguousNumeral) string {
	return groupID + "|" + n.Digits + "@" + strconv.Itoa(n.Offset)
}

// NumeralKey identifies a numeral independent of the group it landed in.
func NumeralKey(n model.AmbiguousNumeral) string {
	return "n:" + n.Digits + "@" + strconv.Itoa(n.Offset)
}

// numeralKeyOf recovers the numeral key embedded in a member identity.
func numeralKeyOf(identity string) (string, bool) {
	if !strings.HasPrefix(identity, "g:") {
		return "", false
	}
	i := strings.LastIndexByte(identity, '|')
	if i < 0 || i == len(identity)-1 {
		return "", false
	}
	return "n:" + identity[i+1:], true
}
