// Package extract finds temporal mentions and ambiguous numerals in free
// text and synthesizes event candidates from them.
//
// One extraction pass runs:
//
//	raw text -> Normalize -> Adapter (grammar) -> DetectAmbiguous
//	         -> GroupAdjacent -> Ledger filtering -> Result
//
// Accepted or dismissed matches are kept out of later passes by the Ledger
// until the corresponding candidate is removed.
package extract

import (
	"errors"
	"strings"
	"time"

	"memocal/internal/grammar"
	"memocal/internal/model"
)

// ErrUnrecognizedDate is the validation failure of the manual entry path:
// the typed date does not resolve to anything.
var ErrUnrecognizedDate = errors.New("extract: date not recognized")

// Result is what one pass surfaces to the presentation layer.
type Result struct {
	// Text is the normalized text; all offsets point into it.
	Text     string                 `json:"text"`
	Mentions []model.ParsedMention  `json:"mentions"`
	Groups   []model.AmbiguousGroup `json:"groups"`
}

// Empty reports whether the pass found nothing to surface.
func (r Result) Empty() bool {
	return len(r.Mentions) == 0 && len(r.Groups) == 0
}

// Mention looks up a surfaced mention by identity.
func (r Result) Mention(identity string) (model.ParsedMention, bool) {
	for _, m := range r.Mentions {
		if m.Identity == identity {
			return m, true
		}
	}
	return model.ParsedMention{}, false
}

// Group looks up a surfaced group by id.
func (r Result) Group(id string) (model.AmbiguousGroup, bool) {
	for _, g := range r.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return model.AmbiguousGroup{}, false
}

// Filter re-applies ledger suppression without re-parsing. Groups lose
// suppressed members; groups left without members, or whose own id is
// suppressed, are dropped.
func (r Result) Filter(ledger *Ledger) Result {
	out := Result{
		Text:     r.Text,
		Mentions: []model.ParsedMention{},
		Groups:   []model.AmbiguousGroup{},
	}
	for _, m := range r.Mentions {
		if !ledger.IsSuppressed(m.Identity) {
			out.Mentions = append(out.Mentions, m)
		}
	}
	for _, g := range r.Groups {
		if ledger.IsSuppressed(g.ID) {
			continue
		}
		var kept []model.AmbiguousNumeral
		for _, n := range g.Members {
			if !ledger.IsSuppressed(MemberIdentity(g.ID, n)) && !ledger.NumeralSuppressed(n) {
				kept = append(kept, n)
			}
		}
		if len(kept) == 0 {
			continue
		}
		if len(kept) < len(g.Members) {
			g = model.AmbiguousGroup{ID: g.ID, Members: kept, ContextText: g.ContextText}
		}
		out.Groups = append(out.Groups, g)
	}
	return out
}

// Engine runs extraction passes against a shared ledger. It holds no other
// state; callers serialize access.
type Engine struct {
	adapter *Adapter
	ledger  *Ledger
	synth   *Synthesizer
}

// NewEngine wires g and ledger together. A nil ledger gets a fresh one.
func NewEngine(g grammar.Grammar, ledger *Ledger, opts Options) *Engine {
	opts = opts.withDefaults()
	if ledger == nil {
		ledger = NewLedger()
	}
	return &Engine{
		adapter: NewAdapter(g, opts.Location),
		ledger:  ledger,
		synth:   NewSynthesizer(opts),
	}
}

// Ledger returns the engine's dedup ledger.
func (e *Engine) Ledger() *Ledger {
	return e.ledger
}

// Synthesizer returns the engine's synthesizer.
func (e *Engine) Synthesizer() *Synthesizer {
	return e.synth
}

// Pass runs one extraction over raw. Text without dates or bare numbers
// yields an empty Result and no error. A grammar fault returns ErrGrammar
// and leaves the ledger untouched.
func (e *Engine) Pass(raw string) (Result, error) {
	text := Normalize(raw)
	res := Result{Text: text}
	if strings.TrimSpace(text) == "" {
		return res.Filter(e.ledger), nil
	}

	mentions, err := e.adapter.Mentions(text, e.synth.Now())
	if err != nil {
		return Result{}, err
	}

	numerals := DetectAmbiguous(text, mentions, e.ledger)
	res.Mentions = mentions
	res.Groups = GroupAdjacent(text, numerals)
	return res.Filter(e.ledger), nil
}

// ResolveDate parses a manually typed date and returns the start of its
// first mention.
func (e *Engine) ResolveDate(raw string) (time.Time, error) {
	text := Normalize(raw)
	mentions, err := e.adapter.Mentions(text, e.synth.Now())
	if err != nil {
		return time.Time{}, err
	}
	if len(mentions) == 0 {
		return time.Time{}, ErrUnrecognizedDate
	}
	return mentions[0].ResolvedStart, nil
}
