package extract

import (
	"errors"
	"fmt"
	"time"

	"memocal/internal/grammar"
	"memocal/internal/model"
)

// ErrGrammar wraps any fault raised by the temporal grammar. It scopes to a
// single pass; ledger state is never touched when it occurs.
var ErrGrammar = errors.New("extract: temporal grammar failed")

// Adapter converts raw grammar output into ParsedMentions.
type Adapter struct {
	grammar grammar.Grammar
	loc     *time.Location
}

// NewAdapter wraps g. A nil loc means time.Local.
func NewAdapter(g grammar.Grammar, loc *time.Location) *Adapter {
	if loc == nil {
		loc = time.Local
	}
	return &Adapter{grammar: g, loc: loc}
}

// Mentions parses normalized text relative to now. Matches keep the
// grammar's document order; spans are trusted to be disjoint.
func (a *Adapter) Mentions(text string, now time.Time) ([]model.ParsedMention, error) {
	matches, err := a.grammar.Parse(text, grammar.Options{Reference: now, Location: a.loc})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGrammar, err)
	}

	out := make([]model.ParsedMention, 0, len(matches))
	for _, m := range matches {
		out = append(out, model.ParsedMention{
			Text:          m.Text,
			Start:         m.Index,
			End:           m.Index + len(m.Text),
			ResolvedStart: m.Start,
			ResolvedEnd:   m.End,
			Identity:      MentionIdentity(m.Text, m.Index),
		})
	}
	return out, nil
}
