// Package suggest produces completions for the manual date input.
package suggest

import (
	"regexp"
	"strings"
	"time"

	"memocal/internal/extract"
)

// Suggestion is one completion offered under the date input.
type Suggestion struct {
	Label string `json:"label"`
	Value string `json:"value"`
	// Resolved marks the suggestion that echoes a successfully parsed date.
	Resolved bool `json:"resolved"`
}

// Result is the outcome of one Suggest call.
type Result struct {
	Suggestions []Suggestion `json:"suggestions"`
	Parsed      *time.Time   `json:"parsed,omitempty"`
}

// Resolver resolves a typed date. *extract.Engine satisfies it.
type Resolver interface {
	ResolveDate(raw string) (time.Time, error)
}

// Presets are shown while the input is empty.
var Presets = []Suggestion{
	{Label: "今日 19:00", Value: "今日 19:00"},
	{Label: "明日 10:00", Value: "明日 10:00"},
	{Label: "今週末", Value: "今週末"},
}

const resolvedLayout = "1月2日 15:04"

var reTrailingNumber = regexp.MustCompile(`^(.*?)(\d{1,2})$`)

// shortcuts maps partial readings to the relative day they complete to.
var shortcuts = []struct {
	inputs []string
	value  string
}{
	{[]string{"あ", "あした", "明日"}, "明日"},
	{[]string{"あさ", "あさって", "明後日"}, "明後日"},
	{[]string{"し", "しあさって", "明々後日"}, "明々後日"},
}

// Suggest returns completions for raw. Resolution failures are not errors
// here; they only mean no resolved suggestion is offered.
func Suggest(r Resolver, raw string) Result {
	if strings.TrimSpace(raw) == "" {
		return Result{Suggestions: append([]Suggestion(nil), Presets...)}
	}

	val := extract.Normalize(raw)
	res := Result{Suggestions: []Suggestion{}}

	if r != nil {
		if t, err := r.ResolveDate(raw); err == nil {
			res.Parsed = &t
			res.Suggestions = append(res.Suggestions, Suggestion{
				Label:    t.Format(resolvedLayout) + " に設定",
				Value:    raw,
				Resolved: true,
			})
		}
	}

	if m := reTrailingNumber.FindStringSubmatch(val); m != nil {
		res.Suggestions = append(res.Suggestions, unitCompletions(raw, m[1])...)
	}

	for _, sc := range shortcuts {
		for _, in := range sc.inputs {
			if val == in && !hasValue(res.Suggestions, sc.value) {
				res.Suggestions = append(res.Suggestions, Suggestion{Label: sc.value, Value: sc.value})
			}
		}
	}
	return res
}

// unitCompletions appends a unit to a trailing number. prefix is what
// precedes the number in the normalized input.
func unitCompletions(raw, prefix string) []Suggestion {
	var out []Suggestion
	add := func(unit string) {
		out = append(out, Suggestion{Label: raw + unit, Value: raw + unit})
	}

	if !strings.HasSuffix(prefix, "日") {
		add("日")
	}
	monthWithoutDay := strings.Contains(prefix, "月") && !strings.Contains(prefix, "日")
	if !strings.HasSuffix(prefix, "時") && !monthWithoutDay {
		add("時")
	}
	if !strings.Contains(prefix, "月") {
		add("月")
	}
	if strings.Contains(prefix, "時") && !strings.Contains(prefix, "分") {
		add("分")
	}
	return out
}

func hasValue(ss []Suggestion, v string) bool {
	for _, s := range ss {
		if s.Value == v {
			return true
		}
	}
	return false
}
