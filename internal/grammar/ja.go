package grammar

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
)

// Dates without an explicit time resolve at noon.
const impliedHour = 12

var (
	reJaDate = regexp.MustCompile(
		`(?P<rel>明々後日|明明後日|しあさって|明後日|あさって|明日|あした|今日|きょう|昨日|きのう)` +
			`|(?P<weekend>今週末|週末)` +
			`|(?P<wprefix>来週の?|今週の?|次の)?(?P<wday>[月火水木金土日])曜日?` +
			`|(?P<iso>\d{4}[/-]\d{1,2}[/-]\d{1,2})` +
			`|(?:(?P<y>\d{4})年)?(?:(?P<mo>\d{1,2})月)?(?P<d>\d{1,2})日` +
			`|(?P<sm>\d{1,2})/(?P<sd>\d{1,2})`)

	reJaTime = regexp.MustCompile(
		`(?P<ampm>午前|午後)?(?P<h>\d{1,2})時(?:(?P<mi>\d{1,2})分|(?P<half>半))?` +
			`|(?P<ch>\d{1,2}):(?P<cm>\d{2})`)

	// Between a date and a time only blanks and the possessive の may appear.
	reJaJoin = regexp.MustCompile(`^[ \t\x{3000}]*の?[ \t\x{3000}]*$`)

	relativeDays = map[string]int{
		"今日": 0, "きょう": 0,
		"明日": 1, "あした": 1,
		"明後日": 2, "あさって": 2,
		"明々後日": 3, "明明後日": 3, "しあさって": 3,
		"昨日": -1, "きのう": -1,
	}

	weekdays = map[string]time.Weekday{
		"日": time.Sunday, "月": time.Monday, "火": time.Tuesday, "水": time.Wednesday,
		"木": time.Thursday, "金": time.Friday, "土": time.Saturday,
	}
)

var errInvalidUTF8 = errors.New("grammar: input is not valid UTF-8")

// Japanese is a compact rule-based grammar for Japanese date and time
// expressions.
type Japanese struct{}

// NewJapanese returns the default Japanese grammar.
func NewJapanese() *Japanese {
	return &Japanese{}
}

type span struct {
	start, end int
	// date is midnight of the resolved day for date spans.
	date time.Time
	// hour/minute for time spans.
	hour, minute int
}

// Parse implements Grammar.
func (j *Japanese) Parse(text string, opts Options) ([]Match, error) {
	if !utf8.ValidString(text) {
		return nil, errInvalidUTF8
	}
	ref, loc := opts.resolve()
	today := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, loc)

	dates := scanDates(text, today)
	times := scanTimes(text)

	var out []Match
	used := make(map[int]bool, len(times))

	for _, d := range dates {
		m := Match{
			Text:  text[d.start:d.end],
			Index: d.start,
			Start: d.date.Add(impliedHour * time.Hour),
		}
		for i, t := range times {
			if used[i] || t.start < d.end {
				continue
			}
			if reJaJoin.MatchString(text[d.end:t.start]) {
				used[i] = true
				m.Text = text[d.start:t.end]
				m.Start = time.Date(d.date.Year(), d.date.Month(), d.date.Day(), t.hour, t.minute, 0, 0, loc)
			}
			break
		}
		out = append(out, m)
	}

	for i, t := range times {
		if used[i] || overlapsAny(t, dates) {
			continue
		}
		out = append(out, Match{
			Text:  text[t.start:t.end],
			Index: t.start,
			Start: time.Date(today.Year(), today.Month(), today.Day(), t.hour, t.minute, 0, 0, loc),
		})
	}

	sort.Slice(out, func(a, b int) bool { return out[a].Index < out[b].Index })
	return out, nil
}

func scanDates(text string, today time.Time) []span {
	var out []span
	for _, idx := range reJaDate.FindAllStringSubmatchIndex(text, -1) {
		if !digitBoundary(text, idx[0], idx[1]) {
			continue
		}
		g := func(name string) string { return group(text, reJaDate, idx, name) }

		var (
			date time.Time
			ok   bool
		)
		switch {
		case g("rel") != "":
			date, ok = today.AddDate(0, 0, relativeDays[g("rel")]), true
		case g("weekend") != "":
			date, ok = today.AddDate(0, 0, daysUntil(today.Weekday(), time.Saturday)), true
		case g("wday") != "":
			date, ok = resolveWeekday(today, weekdays[g("wday")], g("wprefix")), true
		case g("iso") != "":
			date, ok = resolveISO(g("iso"), today.Location())
		case g("d") != "":
			year, month := today.Year(), int(today.Month())
			if y := g("y"); y != "" {
				year, _ = strconv.Atoi(y)
			}
			if mo := g("mo"); mo != "" {
				month, _ = strconv.Atoi(mo)
			}
			day, _ := strconv.Atoi(g("d"))
			date, ok = validDate(year, month, day, today.Location())
		case g("sm") != "":
			month, _ := strconv.Atoi(g("sm"))
			day, _ := strconv.Atoi(g("sd"))
			date, ok = validDate(today.Year(), month, day, today.Location())
		}
		if !ok {
			continue
		}
		out = append(out, span{start: idx[0], end: idx[1], date: date})
	}
	return out
}

func scanTimes(text string) []span {
	var out []span
	for _, idx := range reJaTime.FindAllStringSubmatchIndex(text, -1) {
		if !digitBoundary(text, idx[0], idx[1]) {
			continue
		}
		g := func(name string) string { return group(text, reJaTime, idx, name) }

		var hour, minute int
		if h := g("h"); h != "" {
			hour, _ = strconv.Atoi(h)
			if mi := g("mi"); mi != "" {
				minute, _ = strconv.Atoi(mi)
			} else if g("half") != "" {
				minute = 30
			}
			switch g("ampm") {
			case "午後":
				if hour < 12 {
					hour += 12
				}
			case "午前":
				if hour == 12 {
					hour = 0
				}
			}
		} else {
			hour, _ = strconv.Atoi(g("ch"))
			minute, _ = strconv.Atoi(g("cm"))
		}
		if hour > 23 || minute > 59 {
			continue
		}
		out = append(out, span{start: idx[0], end: idx[1], hour: hour, minute: minute})
	}
	return out
}

func group(text string, re *regexp.Regexp, idx []int, name string) string {
	i := re.SubexpIndex(name)
	if i < 0 || idx[2*i] < 0 {
		return ""
	}
	return text[idx[2*i]:idx[2*i+1]]
}

// digitBoundary rejects matches glued to a longer digit run, so "123時"
// does not yield "23時".
func digitBoundary(text string, start, end int) bool {
	if start > 0 && isDigit(text[start-1]) && isDigit(text[start]) {
		return false
	}
	if end < len(text) && isDigit(text[end]) && isDigit(text[end-1]) {
		return false
	}
	return true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func overlapsAny(s span, others []span) bool {
	for _, o := range others {
		if s.start < o.end && s.end > o.start {
			return true
		}
	}
	return false
}

func daysUntil(from, to time.Weekday) int {
	return (int(to) - int(from) + 7) % 7
}

// resolveWeekday treats Monday as the first day of the week for 今週/来週.
func resolveWeekday(today time.Time, wd time.Weekday, prefix string) time.Time {
	mondayIdx := func(w time.Weekday) int { return (int(w) + 6) % 7 }
	switch {
	case strings.HasPrefix(prefix, "来週"):
		monday := today.AddDate(0, 0, -mondayIdx(today.Weekday())+7)
		return monday.AddDate(0, 0, mondayIdx(wd))
	case strings.HasPrefix(prefix, "今週"):
		monday := today.AddDate(0, 0, -mondayIdx(today.Weekday()))
		return monday.AddDate(0, 0, mondayIdx(wd))
	case prefix == "次の":
		n := daysUntil(today.Weekday(), wd)
		if n == 0 {
			n = 7
		}
		return today.AddDate(0, 0, n)
	}
	return today.AddDate(0, 0, daysUntil(today.Weekday(), wd))
}

func resolveISO(s string, loc *time.Location) (time.Time, bool) {
	if t, err := dateparse.ParseIn(s, loc); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), true
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '-' })
	if len(parts) != 3 {
		return time.Time{}, false
	}
	y, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	d, _ := strconv.Atoi(parts[2])
	return validDate(y, m, d, loc)
}

// validDate rejects components time.Date would silently normalize.
func validDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
