// Package grammar defines the temporal grammar contract consumed by the
// extraction engine and ships a default Japanese implementation.
package grammar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Match is one raw grammar hit. Index is the byte offset of Text in the
// parsed input. End is set only when the expression denotes a range.
type Match struct {
	Text  string
	Index int
	Start time.Time
	End   *time.Time
}

// Options carries the reference instant relative expressions resolve
// against ("明日" is Reference + 1 day) and the wall-clock location.
type Options struct {
	Reference time.Time
	Location  *time.Location
}

// Grammar returns non-overlapping matches in document order.
type Grammar interface {
	Parse(text string, opts Options) ([]Match, error)
}

// ErrUnsupportedLocale is returned by New for locales without a grammar.
var ErrUnsupportedLocale = errors.New("grammar: unsupported locale")

// New returns the grammar registered for locale.
func New(locale string) (Grammar, error) {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "ja", "ja-jp", "ja_jp":
		return NewJapanese(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedLocale, locale)
}

func (o Options) resolve() (time.Time, *time.Location) {
	loc := o.Location
	if loc == nil {
		if !o.Reference.IsZero() {
			loc = o.Reference.Location()
		} else {
			loc = time.Local
		}
	}
	ref := o.Reference
	if ref.IsZero() {
		ref = time.Now()
	}
	return ref.In(loc), loc
}
