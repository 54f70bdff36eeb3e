package calsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"memocal/internal/ics"
	appLog "memocal/internal/log"
	"memocal/internal/model"
)

const (
	defaultCalendarID = "primary"
	listMaxResults    = 100
	rawDateLayout     = "1月2日 15:04"
	popupMethod       = "popup"
)

// GoogleOptions configures the Google Calendar client.
type GoogleOptions struct {
	CalendarID string
	// Token is an OAuth2 access token obtained out of band.
	Token string
	// Location is sent as the event time zone and used for all-day
	// events in listings. nil means time.Local.
	Location *time.Location
	// RequestsPerSecond throttles API calls; zero or less disables it.
	RequestsPerSecond float64
}

// Google syncs events with one Google calendar.
type Google struct {
	svc        *calendar.Service
	calendarID string
	loc        *time.Location
	limiter    *rate.Limiter
}

// NewGoogle builds a client authenticated with opts.Token. Extra client
// options are applied after the token source, so tests can point the
// client at a local server. Without a token and without extra options it
// returns ErrNoCredential.
func NewGoogle(ctx context.Context, opts GoogleOptions, clientOpts ...option.ClientOption) (*Google, error) {
	if opts.Token == "" && len(clientOpts) == 0 {
		return nil, ErrNoCredential
	}
	if opts.CalendarID == "" {
		opts.CalendarID = defaultCalendarID
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	all := make([]option.ClientOption, 0, len(clientOpts)+1)
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"})
		all = append(all, option.WithTokenSource(ts))
	}
	all = append(all, clientOpts...)

	svc, err := calendar.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("calsync: google service: %w", err)
	}

	g := &Google{svc: svc, calendarID: opts.CalendarID, loc: opts.Location}
	if opts.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return g, nil
}

func (g *Google) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}

// Create inserts ev and returns the Google event id.
func (g *Google) Create(ctx context.Context, ev model.Event) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", syncErr(OpCreate, model.TargetGoogle, err)
	}
	created, err := g.svc.Events.Insert(g.calendarID, g.toGoogle(ev)).Context(ctx).Do()
	if err != nil {
		return "", syncErr(OpCreate, model.TargetGoogle, err)
	}
	appLog.Info("google event created", "event_id", ev.ID(), "remote_id", created.Id)
	return created.Id, nil
}

// Update replaces the Google event remoteID with ev.
func (g *Google) Update(ctx context.Context, remoteID string, ev model.Event) error {
	if remoteID == "" {
		return syncErr(OpUpdate, model.TargetGoogle, errors.New("empty remote id"))
	}
	if err := g.wait(ctx); err != nil {
		return syncErr(OpUpdate, model.TargetGoogle, err)
	}
	if _, err := g.svc.Events.Update(g.calendarID, remoteID, g.toGoogle(ev)).Context(ctx).Do(); err != nil {
		return syncErr(OpUpdate, model.TargetGoogle, err)
	}
	appLog.Info("google event updated", "event_id", ev.ID(), "remote_id", remoteID)
	return nil
}

// Delete removes the Google event remoteID.
func (g *Google) Delete(ctx context.Context, remoteID string) error {
	if remoteID == "" {
		return syncErr(OpDelete, model.TargetGoogle, errors.New("empty remote id"))
	}
	if err := g.wait(ctx); err != nil {
		return syncErr(OpDelete, model.TargetGoogle, err)
	}
	if err := g.svc.Events.Delete(g.calendarID, remoteID).Context(ctx).Do(); err != nil {
		return syncErr(OpDelete, model.TargetGoogle, err)
	}
	appLog.Info("google event deleted", "remote_id", remoteID)
	return nil
}

// List returns up to 100 single (recurrence-expanded) events ordered by
// start.
func (g *Google) List(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	if err := g.wait(ctx); err != nil {
		return nil, syncErr(OpList, model.TargetGoogle, err)
	}
	res, err := g.svc.Events.List(g.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		MaxResults(listMaxResults).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, syncErr(OpList, model.TargetGoogle, err)
	}

	out := make([]model.Event, 0, len(res.Items))
	for _, item := range res.Items {
		ev, err := g.fromGoogle(item)
		if err != nil {
			appLog.Error("google event skipped", err, "remote_id", item.Id)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (g *Google) toGoogle(ev model.Event) *calendar.Event {
	c := ev.Candidate
	overrides := make([]*calendar.EventReminder, 0, len(c.ReminderOffsets))
	for _, off := range c.ReminderOffsets {
		overrides = append(overrides, &calendar.EventReminder{
			Method:  popupMethod,
			Minutes: int64(off / time.Minute),
		})
	}
	tz := g.loc.String()
	return &calendar.Event{
		Summary:     c.Title,
		Description: ics.Description(ev.RawInput),
		Start:       &calendar.EventDateTime{DateTime: c.Start.Format(time.RFC3339), TimeZone: tz},
		End:         &calendar.EventDateTime{DateTime: c.End.Format(time.RFC3339), TimeZone: tz},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides:  overrides,
			// UseDefault=false is the zero value and would be omitted.
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

func (g *Google) fromGoogle(item *calendar.Event) (model.Event, error) {
	if item.Start == nil {
		return model.Event{}, errors.New("event without start")
	}
	start, err := g.eventTime(item.Start)
	if err != nil {
		return model.Event{}, err
	}
	end := start.Add(time.Hour)
	if item.End != nil {
		if t, err := g.eventTime(item.End); err == nil && !t.Before(start) {
			end = t
		}
	}

	var offsets []time.Duration
	if item.Reminders != nil {
		for _, o := range item.Reminders.Overrides {
			offsets = append(offsets, time.Duration(o.Minutes)*time.Minute)
		}
	}

	title := item.Summary
	if title == "" {
		title = "(無題)"
	}
	return model.Event{
		Candidate: model.EventCandidate{
			ID:              "google:" + item.Id,
			Title:           title,
			SourceText:      item.Summary,
			Start:           start,
			End:             end,
			ReminderOffsets: offsets,
		},
		Target:   model.TargetGoogle,
		RemoteID: item.Id,
		RawInput: start.Format(rawDateLayout),
		Origin:   model.OriginRemote,
	}, nil
}

func (g *Google) eventTime(dt *calendar.EventDateTime) (time.Time, error) {
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(g.loc), nil
	}
	if dt.Date != "" {
		return time.ParseInLocation(time.DateOnly, dt.Date, g.loc)
	}
	return time.Time{}, errors.New("empty event time")
}
