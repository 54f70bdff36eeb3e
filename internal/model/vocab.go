package model

import (
	"fmt"
	"strings"
	"time"
)

// Field is the calendar field an ambiguous group denotes.
type Field string

const (
	FieldMonth Field = "month"
	FieldDay   Field = "day"
	FieldHour  Field = "hour"
)

// ParseField accepts the English names and the Japanese unit markers.
func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "month", "月":
		return FieldMonth, nil
	case "day", "日":
		return FieldDay, nil
	case "hour", "時":
		return FieldHour, nil
	}
	return "", fmt.Errorf("model: unknown field %q", s)
}

// SyncTarget names where an accepted event is handed off.
type SyncTarget string

const (
	TargetGoogle SyncTarget = "google"
	TargetFile   SyncTarget = "file"
)

// ParseTarget accepts "google", "file" and the legacy "apple" alias.
// An empty string yields def.
func ParseTarget(s string, def SyncTarget) (SyncTarget, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "google":
		return TargetGoogle, nil
	case "file", "apple", "ics":
		return TargetFile, nil
	}
	return "", fmt.Errorf("model: unknown sync target %q", s)
}

// Reminder is one entry of the fixed reminder vocabulary.
type Reminder string

const (
	Remind30Min  Reminder = "30分前"
	Remind1Hour  Reminder = "1時間"
	Remind3Hour  Reminder = "3時間"
	Remind12Hour Reminder = "12時間"
	Remind1Day   Reminder = "1日"
	Remind3Day   Reminder = "3日"
	Remind1Week  Reminder = "1週間"
	RemindCustom Reminder = "カスタム"
)

// Reminders lists the vocabulary in display order.
var Reminders = []Reminder{
	Remind30Min, Remind1Hour, Remind3Hour, Remind12Hour,
	Remind1Day, Remind3Day, Remind1Week, RemindCustom,
}

var reminderOffsets = map[Reminder]time.Duration{
	Remind30Min:  30 * time.Minute,
	Remind1Hour:  time.Hour,
	Remind3Hour:  3 * time.Hour,
	Remind12Hour: 12 * time.Hour,
	Remind1Day:   24 * time.Hour,
	Remind3Day:   3 * 24 * time.Hour,
	Remind1Week:  7 * 24 * time.Hour,
}

var reminderAliases = map[string]Reminder{
	"30m":    Remind30Min,
	"1h":     Remind1Hour,
	"3h":     Remind3Hour,
	"12h":    Remind12Hour,
	"1d":     Remind1Day,
	"3d":     Remind3Day,
	"1w":     Remind1Week,
	"custom": RemindCustom,
}

// ParseReminder accepts a vocabulary label or its ASCII alias.
func ParseReminder(s string) (Reminder, error) {
	s = strings.TrimSpace(s)
	if r, ok := reminderAliases[strings.ToLower(s)]; ok {
		return r, nil
	}
	for _, r := range Reminders {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("model: unknown reminder %q", s)
}

// Offset returns how long before the start the reminder fires. The custom
// entry has no duration and reports ok=false.
func (r Reminder) Offset() (time.Duration, bool) {
	d, ok := reminderOffsets[r]
	return d, ok
}

// ReminderOffsets maps reminders to durations, dropping entries without one.
func ReminderOffsets(rs []Reminder) []time.Duration {
	var out []time.Duration
	for _, r := range rs {
		if d, ok := r.Offset(); ok {
			out = append(out, d)
		}
	}
	return out
}
