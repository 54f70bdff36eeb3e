// Package editor is the editing session behind the presentation layer: it
// runs debounced extraction passes over the draft, turns accepted mentions,
// resolved groups and the manual form into booked events, and hands their
// side effects to the sync dispatcher.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"memocal/internal/calsync"
	"memocal/internal/debounce"
	"memocal/internal/extract"
	"memocal/internal/ics"
	appLog "memocal/internal/log"
	"memocal/internal/model"
)

var (
	// ErrNotFound is returned for identities and event ids the session does
	// not know.
	ErrNotFound = errors.New("editor: not found")
	// ErrEmptyForm is the manual form's validation failure.
	ErrEmptyForm = errors.New("editor: date and content are required")
)

const (
	defaultListWindow = 30 * 24 * time.Hour
	maxNotices        = 50
	manualIDPrefix    = "manual:"
)

// Syncer is the part of calsync.Dispatcher the session uses.
type Syncer interface {
	Route(target model.SyncTarget) model.SyncTarget
	Enqueue(job calsync.Job) error
	List(ctx context.Context, from, to time.Time) ([]model.Event, error)
}

// Options configures a Session. Zero values use the debounce default,
// the file target and a 30 day listing window.
type Options struct {
	Debounce      time.Duration
	DefaultTarget model.SyncTarget
	ListWindow    time.Duration
}

// Snapshot is the state shown by the presentation layer after a pass.
type Snapshot struct {
	Result  extract.Result `json:"result"`
	Pending bool           `json:"pending"`
	Fault   string         `json:"fault,omitempty"`
}

// Form is the manual entry form. EditingID selects an existing event to
// replace; empty means a new event.
type Form struct {
	EditingID string           `json:"editing_id,omitempty"`
	DateInput string           `json:"date_input"`
	Content   string           `json:"content"`
	Reminders []model.Reminder `json:"reminders,omitempty"`
	Target    model.SyncTarget `json:"target,omitempty"`
}

// Session owns the draft, the last pass result and the event book. All
// methods are safe for concurrent use.
type Session struct {
	engine    *extract.Engine
	syncer    Syncer
	opts      Options
	debouncer *debounce.Debouncer

	mu      sync.Mutex
	draft   string
	last    extract.Result
	fault   error
	events  map[string]model.Event
	failed  map[string]bool // events whose create never reached the target
	notices []model.Notice
}

// New returns a session running passes with engine and side effects
// through syncer.
func New(engine *extract.Engine, syncer Syncer, opts Options) *Session {
	if opts.Debounce <= 0 {
		opts.Debounce = debounce.DefaultDelay
	}
	if opts.DefaultTarget == "" {
		opts.DefaultTarget = model.TargetFile
	}
	if opts.ListWindow <= 0 {
		opts.ListWindow = defaultListWindow
	}
	s := &Session{
		engine: engine,
		syncer: syncer,
		opts:   opts,
		events: make(map[string]model.Event),
		failed: make(map[string]bool),
	}
	s.debouncer = debounce.New(opts.Debounce, s.runPass)
	return s
}

// Close cancels a pending pass.
func (s *Session) Close() {
	s.debouncer.Cancel()
}

// SetText stores the draft and schedules a debounced pass.
func (s *Session) SetText(raw string) {
	s.mu.Lock()
	s.draft = raw
	s.mu.Unlock()
	s.debouncer.Trigger()
}

// Extract replaces the draft and runs a pass immediately, superseding any
// pending one.
func (s *Session) Extract(raw string) (extract.Result, error) {
	s.debouncer.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = raw
	s.passLocked()
	return s.last, s.fault
}

// Last returns the most recent pass result.
func (s *Session) Last() Snapshot {
	pending := s.debouncer.Pending()

	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{Result: s.last, Pending: pending}
	if s.fault != nil {
		snap.Fault = s.fault.Error()
	}
	return snap
}

func (s *Session) runPass() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passLocked()
}

// passLocked keeps the previous result when the grammar fails, so the
// presentation layer is never left with a blank list.
func (s *Session) passLocked() {
	res, err := s.engine.Pass(s.draft)
	if err != nil {
		appLog.Error("extraction pass failed", err)
		s.fault = err
		return
	}
	s.fault = nil
	s.last = res
	appLog.Debug("extraction pass", "mentions", len(res.Mentions), "groups", len(res.Groups))
}

// AcceptMention books the surfaced mention identity. A Google target
// without a credential is booked as a file event.
func (s *Session) AcceptMention(identity string, reminders []model.Reminder, target model.SyncTarget) (model.Event, error) {
	s.mu.Lock()
	m, ok := s.last.Mention(identity)
	if !ok {
		s.mu.Unlock()
		return model.Event{}, fmt.Errorf("%w: mention %q", ErrNotFound, identity)
	}
	c := s.engine.Synthesizer().FromMention(s.last.Text, m, reminders)
	ev := s.bookLocked(c, m.Text, model.OriginMention, target)
	s.mu.Unlock()

	s.dispatch(calsync.OpCreate, ev)
	return ev, nil
}

// ResolveGroup applies field to every member of the surfaced group and
// books one event per member. Members out of range for field are skipped
// and reported through the error together with the booked events.
func (s *Session) ResolveGroup(groupID string, field model.Field, reminders []model.Reminder, target model.SyncTarget) ([]model.Event, error) {
	s.mu.Lock()
	g, ok := s.last.Group(groupID)
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: group %q", ErrNotFound, groupID)
	}
	cands, rangeErr := s.engine.Synthesizer().ResolveGroup(s.last.Text, g, field, reminders)
	if errors.Is(rangeErr, extract.ErrUnknownField) {
		s.mu.Unlock()
		return nil, rangeErr
	}
	booked := make([]model.Event, 0, len(cands))
	for _, c := range cands {
		booked = append(booked, s.bookLocked(c, g.ContextText, model.OriginGroup, target))
	}
	s.mu.Unlock()

	for _, ev := range booked {
		s.dispatch(calsync.OpCreate, ev)
	}
	return booked, rangeErr
}

// bookLocked records the candidate's identity, adds it to the book and
// re-filters the last result.
func (s *Session) bookLocked(c model.EventCandidate, raw string, origin model.Origin, target model.SyncTarget) model.Event {
	ev := model.Event{
		Candidate: c,
		Target:    s.route(target),
		RawInput:  raw,
		Origin:    origin,
	}
	s.engine.Ledger().RecordAccepted(c.ID)
	s.events[c.ID] = ev
	s.last = s.last.Filter(s.engine.Ledger())
	appLog.Info("event booked", "event_id", c.ID, "origin", origin, "target", ev.Target, "start", c.Start)
	return ev
}

func (s *Session) route(target model.SyncTarget) model.SyncTarget {
	if target == "" {
		target = s.opts.DefaultTarget
	}
	routed := s.syncer.Route(target)
	if routed != target {
		appLog.Info("sync target unavailable; falling back", "requested", target, "target", routed)
	}
	return routed
}

// Dismiss suppresses a surfaced mention, group or group member without
// booking anything.
func (s *Session) Dismiss(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.surfacedLocked(identity) {
		return fmt.Errorf("%w: %q", ErrNotFound, identity)
	}
	s.engine.Ledger().RecordDismissed(identity)
	s.last = s.last.Filter(s.engine.Ledger())
	return nil
}

func (s *Session) surfacedLocked(identity string) bool {
	if _, ok := s.last.Mention(identity); ok {
		return true
	}
	for _, g := range s.last.Groups {
		if g.ID == identity {
			return true
		}
		for _, n := range g.Members {
			if extract.MemberIdentity(g.ID, n) == identity {
				return true
			}
		}
	}
	return false
}

// Remove drops eventID from the book and forgets its ledger entry, so the
// next pass over the same text surfaces the match again. The copy in the
// sync target is deleted in the background; a file event also leaves a
// notice, since device calendars keep their imported copy.
func (s *Session) Remove(eventID string) error {
	s.mu.Lock()
	ev, ok := s.events[eventID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: event %q", ErrNotFound, eventID)
	}
	delete(s.events, eventID)
	s.engine.Ledger().RecordRemoved(eventID)
	synced := !s.failed[eventID]
	delete(s.failed, eventID)
	if ev.Target == model.TargetFile {
		s.noticeLocked(calsync.OpDelete, eventID, msgFileManualDelete)
	}
	s.mu.Unlock()

	appLog.Info("event removed", "event_id", eventID, "target", ev.Target)
	if synced {
		s.dispatch(calsync.OpDelete, ev)
	}
	s.debouncer.Trigger()
	return nil
}

// Events returns the booked events ordered by start.
func (s *Session) Events() []model.Event {
	s.mu.Lock()
	out := make([]model.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Candidate, out[j].Candidate
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.ID < b.ID
	})
	return out
}

// Event returns one booked event.
func (s *Session) Event(id string) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return model.Event{}, fmt.Errorf("%w: event %q", ErrNotFound, id)
	}
	return ev, nil
}

// CalendarFile encodes event id as a calendar file. An encoding fault is
// also reported as a notice.
func (s *Session) CalendarFile(id string) ([]byte, string, error) {
	ev, err := s.Event(id)
	if err != nil {
		return nil, "", err
	}
	body, err := ics.Encode(ev)
	if err != nil {
		s.mu.Lock()
		s.noticeLocked(calsync.OpCreate, id, msgFileCreate)
		s.mu.Unlock()
		return nil, "", err
	}
	return body, ics.FileName(ev), nil
}

// ResolveDate resolves a typed date with the session's grammar.
func (s *Session) ResolveDate(raw string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.ResolveDate(raw)
}

// SaveForm books or edits an event from the manual form. Edits keep the
// event's id and target; a Google event is updated remotely, a file event
// is not exported again.
func (s *Session) SaveForm(f Form) (model.Event, error) {
	date := strings.TrimSpace(f.DateInput)
	content := strings.TrimSpace(f.Content)
	if date == "" || content == "" {
		return model.Event{}, ErrEmptyForm
	}

	s.mu.Lock()
	start, err := s.engine.ResolveDate(date)
	if err != nil {
		s.mu.Unlock()
		return model.Event{}, err
	}
	synth := s.engine.Synthesizer()

	if f.EditingID != "" {
		old, ok := s.events[f.EditingID]
		if !ok {
			s.mu.Unlock()
			return model.Event{}, fmt.Errorf("%w: event %q", ErrNotFound, f.EditingID)
		}
		ev := old
		ev.Candidate = synth.FromForm(old.ID(), content, date, start, f.Reminders)
		ev.RawInput = date
		s.events[ev.ID()] = ev
		update := ev.Target == model.TargetGoogle && !s.failed[ev.ID()]
		s.mu.Unlock()

		appLog.Info("event edited", "event_id", ev.ID(), "target", ev.Target)
		if update {
			s.dispatch(calsync.OpUpdate, ev)
		}
		return ev, nil
	}

	c := synth.FromForm(manualIDPrefix+uuid.NewString(), content, date, start, f.Reminders)
	ev := model.Event{
		Candidate: c,
		Target:    s.route(f.Target),
		RawInput:  date,
		Origin:    model.OriginManual,
	}
	s.events[c.ID] = ev
	s.mu.Unlock()

	appLog.Info("event booked", "event_id", c.ID, "origin", ev.Origin, "target", ev.Target, "start", c.Start)
	s.dispatch(calsync.OpCreate, ev)
	return ev, nil
}

// MergeRemote adds listed remote events to the book by id. A listed event
// that is the remote copy of an event booked in this session is skipped.
func (s *Session) MergeRemote(listed []model.Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	own := make(map[string]bool)
	for _, ev := range s.events {
		if ev.Origin != model.OriginRemote && ev.RemoteID != "" {
			own[string(ev.Target)+"/"+ev.RemoteID] = true
		}
	}
	merged := 0
	for _, ev := range listed {
		if own[string(ev.Target)+"/"+ev.RemoteID] {
			continue
		}
		s.events[ev.ID()] = ev
		merged++
	}
	return merged
}

// Refresh lists the sync targets over the listing window starting today
// and merges the result.
func (s *Session) Refresh(ctx context.Context) error {
	now := s.engine.Synthesizer().Now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	listed, err := s.syncer.List(ctx, from, from.Add(s.opts.ListWindow))
	n := s.MergeRemote(listed)
	appLog.Info("remote events refreshed", "listed", len(listed), "merged", n)
	if err != nil {
		s.mu.Lock()
		s.noticeLocked(calsync.OpList, "", msgList)
		s.mu.Unlock()
		return err
	}
	return nil
}

// ApplyResult folds a finished sync job back into the book: a created
// event learns its remote id, a failure becomes a notice. The local event
// is kept either way.
func (s *Session) ApplyResult(r calsync.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.Job.Event.ID()
	if r.Err != nil {
		if r.Job.Op == calsync.OpCreate {
			if _, ok := s.events[id]; ok {
				s.failed[id] = true
			}
		}
		s.noticeLocked(r.Job.Op, id, failureMessage(r.Job.Op, r.Job.Event.Target, r.Err))
		return
	}
	if r.Job.Op != calsync.OpCreate {
		return
	}
	ev, ok := s.events[id]
	if !ok {
		return
	}
	ev.RemoteID = r.RemoteID
	s.events[id] = ev
}

// Notices drains the pending notices, oldest first.
func (s *Session) Notices() []model.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	if out == nil {
		out = []model.Notice{}
	}
	return out
}

func (s *Session) dispatch(op calsync.Op, ev model.Event) {
	if err := s.syncer.Enqueue(calsync.Job{Op: op, Event: ev}); err != nil {
		appLog.Error("sync job not queued", err, "op", op, "event_id", ev.ID())
		s.mu.Lock()
		if op == calsync.OpCreate {
			if _, ok := s.events[ev.ID()]; ok {
				s.failed[ev.ID()] = true
			}
		}
		s.noticeLocked(op, ev.ID(), failureMessage(op, ev.Target, err))
		s.mu.Unlock()
	}
}

func (s *Session) noticeLocked(op calsync.Op, eventID, msg string) {
	s.notices = append(s.notices, model.Notice{
		At:      time.Now(),
		Op:      string(op),
		EventID: eventID,
		Message: msg,
	})
	if over := len(s.notices) - maxNotices; over > 0 {
		s.notices = append([]model.Notice(nil), s.notices[over:]...)
	}
}
