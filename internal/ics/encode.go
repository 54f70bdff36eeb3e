package ics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"memocal/internal/model"
)

// ErrEncode marks an event that cannot be turned into a calendar file.
var ErrEncode = errors.New("ics: cannot encode event")

const (
	productService = "memocal"
	uidDomain      = "@memocal"

	// floatingLayout writes wall-clock components without a zone.
	floatingLayout = "20060102T150405"

	descriptionHeader = "MemoCalendarから追加された予定"
	rawInputLabel     = "入力日付: "
	alarmPrefix       = "リマインダー: "

	propBusyStatus = ical.ComponentProperty("X-MICROSOFT-CDO-BUSYSTATUS")
)

var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://memocal.invalid/events"))

// UID returns the stable calendar UID of a candidate id.
func UID(candidateID string) string {
	return FileID(candidateID) + uidDomain
}

// FileID is the UID without its domain part, safe as a file name.
func FileID(candidateID string) string {
	return uuid.NewSHA1(uidNamespace, []byte(candidateID)).String()
}

// Encode produces a single-event calendar file for ev.
func Encode(ev model.Event) ([]byte, error) {
	return EncodeCalendar([]model.Event{ev})
}

// EncodeCalendar produces one calendar holding every event in evs.
// Start and end are written as floating local times: the wall clock of
// each time.Time is kept and no zone conversion happens.
func EncodeCalendar(evs []model.Event) ([]byte, error) {
	cal := ical.NewCalendarFor(productService)
	cal.SetMethod(ical.MethodPublish)

	stamp := time.Now().UTC()
	for _, ev := range evs {
		if err := validate(ev.Candidate); err != nil {
			return nil, err
		}
		cal.AddVEvent(vevent(ev, stamp))
	}
	return []byte(cal.Serialize()), nil
}

func validate(c model.EventCandidate) error {
	switch {
	case strings.TrimSpace(c.Title) == "":
		return fmt.Errorf("%w: empty title", ErrEncode)
	case c.Start.IsZero():
		return fmt.Errorf("%w: zero start", ErrEncode)
	case c.End.Before(c.Start):
		return fmt.Errorf("%w: end %s before start %s", ErrEncode,
			c.End.Format(time.RFC3339), c.Start.Format(time.RFC3339))
	}
	return nil
}

func vevent(ev model.Event, stamp time.Time) *ical.VEvent {
	c := ev.Candidate
	end := c.End
	if end.IsZero() {
		end = c.Start.Add(time.Hour)
	}

	ve := ical.NewEvent(UID(c.ID))
	ve.SetDtStampTime(stamp)
	ve.SetProperty(ical.ComponentPropertyDtStart, c.Start.Format(floatingLayout))
	ve.SetProperty(ical.ComponentPropertyDtEnd, end.Format(floatingLayout))
	ve.SetSummary(c.Title)
	ve.SetDescription(Description(ev.RawInput))
	ve.SetStatus(ical.ObjectStatusConfirmed)
	ve.SetTimeTransparency(ical.TransparencyOpaque)
	ve.SetProperty(propBusyStatus, "BUSY")

	for _, off := range c.ReminderOffsets {
		alarm := ve.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetProperty(ical.ComponentPropertyDescription, alarmPrefix+c.Title)
		alarm.SetTrigger(Trigger(off))
	}
	return ve
}

// Description is the fixed event description carrying the typed date.
func Description(rawInput string) string {
	return descriptionHeader + "\n" + rawInputLabel + rawInput
}

// RawInputFromDescription recovers the typed date from a Description.
func RawInputFromDescription(desc string) string {
	for _, line := range strings.Split(desc, "\n") {
		if v, ok := strings.CutPrefix(line, rawInputLabel); ok {
			return v
		}
	}
	return ""
}

// Trigger formats a reminder offset as a negative RFC 5545 duration,
// using the largest whole unit: -P1W, -P3D, -PT12H, -PT30M.
func Trigger(before time.Duration) string {
	const (
		day  = 24 * time.Hour
		week = 7 * day
	)
	switch {
	case before <= 0:
		return "PT0S"
	case before%week == 0:
		return "-P" + strconv.FormatInt(int64(before/week), 10) + "W"
	case before%day == 0:
		return "-P" + strconv.FormatInt(int64(before/day), 10) + "D"
	case before%time.Hour == 0:
		return "-PT" + strconv.FormatInt(int64(before/time.Hour), 10) + "H"
	case before%time.Minute == 0:
		return "-PT" + strconv.FormatInt(int64(before/time.Minute), 10) + "M"
	}
	return "-PT" + strconv.FormatInt(int64(before/time.Second), 10) + "S"
}

// FileName returns a download name for ev's calendar file.
func FileName(ev model.Event) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '\n', '\r':
			return '_'
		}
		return r
	}, strings.TrimSpace(ev.Candidate.Title))
	if name == "" {
		name = "event"
	}
	return name + ".ics"
}
