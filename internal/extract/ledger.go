package extract

import (
	gocache "github.com/patrickmn/go-cache"

	"memocal/internal/model"
)

// EntryKind tells why an identity is in the ledger.
type EntryKind string

const (
	EntryAccepted  EntryKind = "accepted"
	EntryDismissed EntryKind = "dismissed"
)

// Ledger is the session-scoped dedup record: identities that already have a
// candidate or were dismissed. Entries never expire; they leave only
// through RecordRemoved. A member identity also indexes its numeral key so
// the detector can skip the digits before grouping.
type Ledger struct {
	entries *gocache.Cache
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: gocache.New(gocache.NoExpiration, 0)}
}

// IsSuppressed reports whether identity must not be surfaced again.
func (l *Ledger) IsSuppressed(identity string) bool {
	_, ok := l.entries.Get(identity)
	return ok
}

// Kind returns the entry kind recorded for identity.
func (l *Ledger) Kind(identity string) (EntryKind, bool) {
	v, ok := l.entries.Get(identity)
	if !ok {
		return "", false
	}
	kind, ok := v.(EntryKind)
	return kind, ok
}

// NumeralSuppressed reports whether n was resolved standalone or as part of
// an earlier group.
func (l *Ledger) NumeralSuppressed(n model.AmbiguousNumeral) bool {
	_, ok := l.entries.Get(NumeralKey(n))
	return ok
}

// RecordAccepted marks identity as turned into a candidate.
func (l *Ledger) RecordAccepted(identity string) {
	l.record(identity, EntryAccepted)
}

// RecordDismissed marks identity as explicitly dismissed by the user.
func (l *Ledger) RecordDismissed(identity string) {
	l.record(identity, EntryDismissed)
}

// RecordRemoved forgets identity so re-extraction may resurface it.
func (l *Ledger) RecordRemoved(identity string) {
	l.entries.Delete(identity)
	if key, ok := numeralKeyOf(identity); ok {
		if owner, found := l.entries.Get(key); found && owner == identity {
			l.entries.Delete(key)
		}
	}
}

// Len returns the number of suppressed identities, numeral index excluded.
func (l *Ledger) Len() int {
	n := 0
	for _, v := range l.entries.Items() {
		if _, ok := v.Object.(EntryKind); ok {
			n++
		}
	}
	return n
}

// Reset clears the ledger, ending the session's memory of past matches.
func (l *Ledger) Reset() {
	l.entries.Flush()
}

func (l *Ledger) record(identity string, kind EntryKind) {
	l.entries.Set(identity, kind, gocache.NoExpiration)
	if key, ok := numeralKeyOf(identity); ok {
		l.entries.Set(key, identity, gocache.NoExpiration)
	}
}
