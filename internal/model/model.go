package model

import "time"

// ParsedMention is one date/time expression recognized by the temporal
// grammar. Offsets are byte offsets into the normalized text; End is
// exclusive. Produced fresh on every extraction pass.
type ParsedMention struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`

	ResolvedStart time.Time  `json:"resolved_start"`
	ResolvedEnd   *time.Time `json:"resolved_end,omitempty"`

	// Identity is the ledger key for this mention (see extract.MentionIdentity).
	Identity string `json:"identity"`
}

// AmbiguousNumeral is a bare 1–2 digit number not covered by any mention.
type AmbiguousNumeral struct {
	Digits string `json:"digits"`
	Offset int    `json:"offset"`
}

// End returns the exclusive end offset of the numeral.
func (n AmbiguousNumeral) End() int {
	return n.Offset + len(n.Digits)
}

// AmbiguousGroup is a run of ambiguous numerals separated only by light
// punctuation. Members are sorted by offset.
type AmbiguousGroup struct {
	ID          string             `json:"id"`
	Members     []AmbiguousNumeral `json:"members"`
	ContextText string             `json:"context_text"`
}

// EventCandidate is a fully resolved event synthesized from a mention, a
// group member or the manual form. It is immutable once created.
type EventCandidate struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	SourceText string `json:"source_text"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Reminders       []Reminder      `json:"reminders,omitempty"`
	ReminderOffsets []time.Duration `json:"reminder_offsets,omitempty"`
}

// Origin records how an Event entered the session.
type Origin string

const (
	OriginMention Origin = "mention"
	OriginGroup   Origin = "group"
	OriginManual  Origin = "manual"
	OriginRemote  Origin = "remote"
)

// Event is a booked candidate together with its sync bookkeeping.
// The Candidate itself never changes; Target and RemoteID are updated by
// the sync dispatcher.
type Event struct {
	Candidate EventCandidate `json:"candidate"`

	Target   SyncTarget `json:"target"`
	RemoteID string     `json:"remote_id,omitempty"`

	// RawInput is the text the user typed for the date, kept for the
	// calendar file description.
	RawInput string `json:"raw_input,omitempty"`
	Origin   Origin `json:"origin"`
}

// ID is shorthand for e.Candidate.ID.
func (e Event) ID() string {
	return e.Candidate.ID
}

// Occurrence is a single concrete instance of a calendar-file event inside
// a listing window, after recurrence expansion.
type Occurrence struct {
	UID         string
	InstanceKey string

	Summary     string
	Description string

	AllDay bool
	Start  time.Time
	End    time.Time

	ReminderOffsets []time.Duration
}

// Notice is a user-facing report of a failed side effect. The related
// event stays in the session either way.
type Notice struct {
	At      time.Time `json:"at"`
	Op      string    `json:"op"`
	EventID string    `json:"event_id,omitempty"`
	Message string    `json:"message"`
}
