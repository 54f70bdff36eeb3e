package extract

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memocal/internal/grammar"
	"memocal/internal/model"
)

var jst = time.FixedZone("JST", 9*60*60)

// Saturday 2026-10-17 09:30 JST.
var now = time.Date(2026, time.October, 17, 9, 30, 0, 0, jst)

func testOptions() Options {
	return Options{
		Location: jst,
		Now:      func() time.Time { return now },
	}
}

func newJaEngine() *Engine {
	return NewEngine(grammar.NewJapanese(), nil, testOptions())
}

// stubGrammar returns fixed matches, or err.
type stubGrammar struct {
	matches []grammar.Match
	err     error
	calls   int
}

func (s *stubGrammar) Parse(string, grammar.Options) ([]grammar.Match, error) {
	s.calls++
	return s.matches, s.err
}

func TestPass_EmptyForPlainText(t *testing.T) {
	e := newJaEngine()
	for _, text := range []string{"", "   ", "買い物リスト", "牛乳とパンを買う\nメールを返す"} {
		res, err := e.Pass(text)
		require.NoError(t, err)
		assert.True(t, res.Empty(), text)
	}
}

func TestPass_TomorrowMeeting(t *testing.T) {
	e := newJaEngine()

	res, err := e.Pass("明日 10時 ミーティング")
	require.NoError(t, err)
	require.Len(t, res.Mentions, 1)
	assert.Empty(t, res.Groups)

	m := res.Mentions[0]
	assert.Equal(t, "明日 10時", m.Text)
	assert.Equal(t, time.Date(2026, 10, 18, 10, 0, 0, 0, jst), m.ResolvedStart)

	c := e.Synthesizer().FromMention(res.Text, m, nil)
	assert.Equal(t, time.Date(2026, 10, 18, 11, 0, 0, 0, jst), c.End)
	assert.Equal(t, "ミーティング", c.Title)
	assert.Equal(t, m.Identity, c.ID)
	assert.Empty(t, c.ReminderOffsets)
}

func TestPass_GroupedDays(t *testing.T) {
	e := newJaEngine()

	res, err := e.Pass("15, 16 遠足")
	require.NoError(t, err)
	assert.Empty(t, res.Mentions)
	require.Len(t, res.Groups, 1)

	g := res.Groups[0]
	assert.Equal(t, "15, 16", g.ContextText)
	require.Len(t, g.Members, 2)
	assert.Equal(t, "15", g.Members[0].Digits)
	assert.Equal(t, "16", g.Members[1].Digits)

	cs, err := e.Synthesizer().ResolveGroup(res.Text, g, model.FieldDay, nil)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	for i, day := range []int{15, 16} {
		assert.Equal(t, day, cs[i].Start.Day())
		assert.Equal(t, time.October, cs[i].Start.Month())
		assert.Equal(t, 2026, cs[i].Start.Year())
		assert.Equal(t, "遠足", cs[i].Title)
		assert.Equal(t, MemberIdentity(g.ID, g.Members[i]), cs[i].ID)
	}
}

func TestPass_FourDigitYearIsNotAmbiguous(t *testing.T) {
	res, err := newJaEngine().Pass("2024年の旅行")
	require.NoError(t, err)
	assert.Empty(t, res.Groups)
}

func TestPass_FullWidthAndTypo(t *testing.T) {
	res, err := newJaEngine().Pass("打ち合わせ ４月３時")
	require.NoError(t, err)
	require.Len(t, res.Mentions, 1)
	assert.Equal(t, "4月3日", res.Mentions[0].Text)
	assert.Empty(t, res.Groups)
}

func TestPass_NumeralsNeverOverlapMentions(t *testing.T) {
	texts := []string{
		"明日 10時 ミーティング 3 4",
		"5/3 と 7、8 と 12:30",
		"午後3時半に 1 2 3 集合 2026-12-24",
		"9時 朝会\n15 16 17 研修",
	}
	e := newJaEngine()
	for _, text := range texts {
		g := grammar.NewJapanese()
		all, err := NewAdapter(g, jst).Mentions(Normalize(text), now)
		require.NoError(t, err)

		res, err := e.Pass(text)
		require.NoError(t, err)
		for _, grp := range res.Groups {
			for _, n := range grp.Members {
				for _, m := range all {
					assert.False(t, n.Offset < m.End && n.End() > m.Start,
						"numeral %q@%d overlaps mention %q in %q", n.Digits, n.Offset, m.Text, text)
				}
			}
		}
	}
}

func TestPass_AcceptSuppressesMention(t *testing.T) {
	e := newJaEngine()
	text := "明日 10時 ミーティング"

	res, err := e.Pass(text)
	require.NoError(t, err)
	require.Len(t, res.Mentions, 1)
	id := res.Mentions[0].Identity

	e.Ledger().RecordAccepted(id)
	res, err = e.Pass(text)
	require.NoError(t, err)
	assert.Empty(t, res.Mentions)
	// The digits of an accepted mention do not resurface as numerals.
	assert.Empty(t, res.Groups)

	e.Ledger().RecordRemoved(id)
	res, err = e.Pass(text)
	require.NoError(t, err)
	require.Len(t, res.Mentions, 1)
	assert.Equal(t, id, res.Mentions[0].Identity)
}

func TestPass_GroupMembersSuppressedIndependently(t *testing.T) {
	e := newJaEngine()
	text := "15, 16 遠足"

	res, err := e.Pass(text)
	require.NoError(t, err)
	g := res.Groups[0]
	first := MemberIdentity(g.ID, g.Members[0])

	e.Ledger().RecordAccepted(first)
	res, err = e.Pass(text)
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	require.Len(t, res.Groups[0].Members, 1)
	assert.Equal(t, "16", res.Groups[0].Members[0].Digits)
	assert.Equal(t, "16", res.Groups[0].ContextText)

	e.Ledger().RecordRemoved(first)
	res, err = e.Pass(text)
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	assert.Len(t, res.Groups[0].Members, 2)
	assert.Equal(t, g.ID, res.Groups[0].ID)
}

func TestPass_DismissedGroup(t *testing.T) {
	e := newJaEngine()
	res, err := e.Pass("15, 16 遠足")
	require.NoError(t, err)

	e.Ledger().RecordDismissed(res.Groups[0].ID)
	res, err = e.Pass("15, 16 遠足")
	require.NoError(t, err)
	assert.Empty(t, res.Groups)
}

func TestPass_GrammarFaultLeavesLedger(t *testing.T) {
	g := &stubGrammar{err: errors.New("boom")}
	ledger := NewLedger()
	ledger.RecordAccepted("m:0:x")
	e := NewEngine(g, ledger, testOptions())

	_, err := e.Pass("明日")
	require.ErrorIs(t, err, ErrGrammar)
	assert.Equal(t, 1, ledger.Len())
	assert.True(t, ledger.IsSuppressed("m:0:x"))
}

func TestPass_SkipsGrammarForBlankText(t *testing.T) {
	g := &stubGrammar{}
	e := NewEngine(g, nil, testOptions())
	_, err := e.Pass("  \n ")
	require.NoError(t, err)
	assert.Zero(t, g.calls)
}

func TestAdapter_MentionRange(t *testing.T) {
	end := now.Add(3 * time.Hour)
	g := &stubGrammar{matches: []grammar.Match{{Text: "今日", Index: 6, Start: now, End: &end}}}
	e := NewEngine(g, nil, testOptions())

	res, err := e.Pass("会議今日 いっぱい")
	require.NoError(t, err)
	require.Len(t, res.Mentions, 1)
	m := res.Mentions[0]
	assert.Equal(t, 6, m.Start)
	assert.Equal(t, 12, m.End)
	assert.Equal(t, "m:6:今日", m.Identity)

	c := e.Synthesizer().FromMention(res.Text, m, []model.Reminder{model.Remind1Hour, model.RemindCustom})
	assert.Equal(t, end, c.End)
	assert.Equal(t, []time.Duration{time.Hour}, c.ReminderOffsets)
	assert.Equal(t, []model.Reminder{model.Remind1Hour, model.RemindCustom}, c.Reminders)
}

func TestResolveDate(t *testing.T) {
	e := newJaEngine()

	got, err := e.ResolveDate("明日１０時")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 18, 10, 0, 0, 0, jst), got)

	_, err = e.ResolveDate("そのうち")
	assert.ErrorIs(t, err, ErrUnrecognizedDate)
}

func TestResult_Lookup(t *testing.T) {
	res, err := newJaEngine().Pass("明日 集合 3 4")
	require.NoError(t, err)

	m, ok := res.Mention(res.Mentions[0].Identity)
	assert.True(t, ok)
	assert.Equal(t, "明日", m.Text)

	g, ok := res.Group(res.Groups[0].ID)
	assert.True(t, ok)
	assert.Equal(t, "3 4", g.ContextText)

	_, ok = res.Group("g:999")
	assert.False(t, ok)
}

func TestPass_DeterministicIdentities(t *testing.T) {
	e := newJaEngine()
	text := "5/3 旅行 と 7, 8 の件"
	a, err := e.Pass(text)
	require.NoError(t, err)
	b, err := e.Pass(text)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a.Groups[0].ID, "g:"))
}
