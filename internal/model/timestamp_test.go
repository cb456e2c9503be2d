package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"date only", "2025-03-10", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"date time", "2025-03-10T09:30:00", time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)},
		{"no seconds", "2025-03-10T09:30", time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)},
		{"space separator", "2025-03-10 09:30:00", time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)},
		{"fraction", "2025-03-10T09:30:00.250", time.Date(2025, 3, 10, 9, 30, 0, 250000000, time.UTC)},
		{"offset converted", "2025-03-10T11:30:00+02:00", time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)},
		{"zulu", "2025-03-10T09:30:00Z", time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "tomorrow", "2025-13-01", "10/03/2025"} {
		_, err := ParseTimestamp(input)
		assert.Error(t, err, input)
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-10T09:30:00", FormatTimestamp(ts))
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" Doctor ")
	assert.True(t, ok)
	assert.Equal(t, RoleDoctor, r)

	_, ok = ParseRole("superuser")
	assert.False(t, ok)
}

func TestAppointmentDetailViews(t *testing.T) {
	d := &AppointmentDetail{
		Appointment: Appointment{
			Base:        Base{ID: 7},
			ScheduledAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
			Reason:      "checkup",
			Status:      AppointmentStatusPending,
		},
		PatientName:          "Ana",
		DoctorName:           "Dr. Ruiz",
		CenterName:           "Centro Norte",
		RegisteredByUsername: "front-desk",
	}

	summary := d.Summary()
	assert.Equal(t, "2025-03-10T09:00:00", summary.Date)
	assert.Empty(t, summary.RegisteredBy)
	assert.Equal(t, "front-desk", d.Response().RegisteredBy)
}
