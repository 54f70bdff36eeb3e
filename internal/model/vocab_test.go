package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderOffsets_DropsCustom(t *testing.T) {
	got := ReminderOffsets([]Reminder{Remind30Min, RemindCustom, Remind1Week})
	assert.Equal(t, []time.Duration{30 * time.Minute, 7 * 24 * time.Hour}, got)
}

func TestParseReminder(t *testing.T) {
	tests := []struct {
		in   string
		want Reminder
	}{
		{"30分前", Remind30Min},
		{"12h", Remind12Hour},
		{" 3D ", Remind3Day},
		{"custom", RemindCustom},
	}
	for _, tt := range tests {
		got, err := ParseReminder(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseReminder("2時間")
	assert.Error(t, err)
}

func TestParseTarget(t *testing.T) {
	got, err := ParseTarget("", TargetFile)
	require.NoError(t, err)
	assert.Equal(t, TargetFile, got)

	got, err = ParseTarget("Apple", TargetGoogle)
	require.NoError(t, err)
	assert.Equal(t, TargetFile, got)

	_, err = ParseTarget("outlook", TargetGoogle)
	assert.Error(t, err)
}

func TestParseField(t *testing.T) {
	f, err := ParseField("日")
	require.NoError(t, err)
	assert.Equal(t, FieldDay, f)

	_, err = ParseField("minute")
	assert.Error(t, err)
}
