package extract

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"memocal/internal/model"
)

var (
	// ErrFieldRange reports a group member whose value cannot denote the
	// chosen field (month 13, hour 24, day 0).
	ErrFieldRange = errors.New("extract: value out of range for field")
	// ErrUnknownField reports a field outside month/day/hour.
	ErrUnknownField = errors.New("extract: unknown field")
)

const defaultDuration = time.Hour

// Options configures synthesis. Zero values fall back to time.Local, one
// hour, DefaultTitle and time.Now.
type Options struct {
	Location        *time.Location
	DefaultDuration time.Duration
	DefaultTitle    string
	Now             func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.DefaultDuration <= 0 {
		o.DefaultDuration = defaultDuration
	}
	if o.DefaultTitle == "" {
		o.DefaultTitle = DefaultTitle
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Synthesizer turns accepted mentions and resolved groups into candidates.
type Synthesizer struct {
	opts Options
}

// NewSynthesizer returns a Synthesizer using opts.
func NewSynthesizer(opts Options) *Synthesizer {
	return &Synthesizer{opts: opts.withDefaults()}
}

// Now returns the current instant in the configured location.
func (s *Synthesizer) Now() time.Time {
	return s.opts.Now().In(s.opts.Location)
}

// FromMention builds the candidate for an accepted mention. text is the
// normalized text the mention was found in.
func (s *Synthesizer) FromMention(text string, m model.ParsedMention, reminders []model.Reminder) model.EventCandidate {
	start := m.ResolvedStart
	end := start.Add(s.opts.DefaultDuration)
	if m.ResolvedEnd != nil && m.ResolvedEnd.After(start) {
		end = *m.ResolvedEnd
	}
	return s.candidate(m.Identity, Title(text, m.Text, s.opts.DefaultTitle), m.Text, start, end, reminders)
}

// ResolveGroup applies field to every member of g independently. Members
// whose value does not fit the field are skipped and reported through the
// returned error; the remaining candidates are still returned.
func (s *Synthesizer) ResolveGroup(text string, g model.AmbiguousGroup, field model.Field, reminders []model.Reminder) ([]model.EventCandidate, error) {
	now := s.Now()
	title := Title(text, g.ContextText, s.opts.DefaultTitle)

	var (
		out  []model.EventCandidate
		errs []error
	)
	for _, n := range g.Members {
		start, err := applyField(now, field, n.Digits)
		if err != nil {
			if errors.Is(err, ErrUnknownField) {
				return nil, err
			}
			errs = append(errs, err)
			continue
		}
		out = append(out, s.candidate(MemberIdentity(g.ID, n), title, g.ContextText, start, start.Add(s.opts.DefaultDuration), reminders))
	}
	return out, errors.Join(errs...)
}

// FromForm builds a candidate for the manual entry path, where the title is
// the typed content and the id is supplied by the caller.
func (s *Synthesizer) FromForm(id, title, rawDate string, start time.Time, reminders []model.Reminder) model.EventCandidate {
	return s.candidate(id, title, rawDate, start, start.Add(s.opts.DefaultDuration), reminders)
}

func (s *Synthesizer) candidate(id, title, source string, start, end time.Time, reminders []model.Reminder) model.EventCandidate {
	rs := append([]model.Reminder(nil), reminders...)
	return model.EventCandidate{
		ID:              id,
		Title:           title,
		SourceText:      source,
		Start:           start,
		End:             end,
		Reminders:       rs,
		ReminderOffsets: model.ReminderOffsets(rs),
	}
}

// applyField overwrites one field of now. Month and day keep the time of
// day; hour zeroes minutes and below. Days past the month's end roll over
// the way time.Date normalizes them.
func applyField(now time.Time, field model.Field, digits string) (time.Time, error) {
	v, err := strconv.Atoi(digits)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrFieldRange, digits)
	}
	loc := now.Location()
	switch field {
	case model.FieldMonth:
		if v < 1 || v > 12 {
			return time.Time{}, fmt.Errorf("%w: month %d", ErrFieldRange, v)
		}
		return time.Date(now.Year(), time.Month(v), now.Day(), now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), loc), nil
	case model.FieldDay:
		if v < 1 || v > 31 {
			return time.Time{}, fmt.Errorf("%w: day %d", ErrFieldRange, v)
		}
		return time.Date(now.Year(), now.Month(), v, now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), loc), nil
	case model.FieldHour:
		if v > 23 {
			return time.Time{}, fmt.Errorf("%w: hour %d", ErrFieldRange, v)
		}
		return time.Date(now.Year(), now.Month(), now.Day(), v, 0, 0, 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownField, field)
}
