package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tod(t *testing.T, s string) *TimeOfDay {
	v, err := ParseTimeOfDay(s)
	require.NoError(t, err)
	return &v
}

// at builds a timestamp on a fixed week: 2024-01-01 is a Monday.
func at(day time.Weekday, clock string) time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // Monday
	offset := (int(day) - int(time.Monday) + 7) % 7
	t, _ := time.Parse("15:04", clock)
	return base.AddDate(0, 0, offset).Add(
		time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
}

func TestScheduleNotTemporal(t *testing.T) {
	s := Schedule{TemporalEnabled: false, Active: true}
	assert.True(t, s.ActiveAt(at(time.Sunday, "03:00")))

	s.Active = false
	assert.False(t, s.ActiveAt(at(time.Monday, "12:00")))
}

func TestScheduleDayGate(t *testing.T) {
	s := Schedule{
		TemporalEnabled: true,
		Days:            []time.Weekday{time.Monday, time.Tuesday},
		Active:          true,
	}
	assert.True(t, s.ActiveAt(at(time.Monday, "12:00")))
	assert.False(t, s.ActiveAt(at(time.Saturday, "12:00")))
}

func TestScheduleSameDayWindow(t *testing.T) {
	s := Schedule{
		TemporalEnabled: true,
		Start:           tod(t, "08:00"),
		End:             tod(t, "18:00"),
		Days:            AllDays(),
		Active:          true,
	}
	assert.True(t, s.ActiveAt(at(time.Monday, "08:00")), "window edges are inclusive")
	assert.True(t, s.ActiveAt(at(time.Monday, "12:30")))
	assert.True(t, s.ActiveAt(at(time.Monday, "18:00")))
	assert.False(t, s.ActiveAt(at(time.Monday, "07:59")))
	assert.False(t, s.ActiveAt(at(time.Monday, "19:00")))
}

func TestScheduleMidnightWrappingWindow(t *testing.T) {
	s := Schedule{
		TemporalEnabled: true,
		Start:           tod(t, "22:00"),
		End:             tod(t, "06:00"),
		Days:            AllDays(),
		Active:          true,
	}
	assert.True(t, s.ActiveAt(at(time.Monday, "23:30")))
	assert.True(t, s.ActiveAt(at(time.Tuesday, "02:00")))
	assert.False(t, s.ActiveAt(at(time.Monday, "10:00")))
	assert.True(t, s.ActiveAt(at(time.Monday, "22:00")))
	assert.True(t, s.ActiveAt(at(time.Tuesday, "06:00")))
}

func TestScheduleTemporalWithoutWindow(t *testing.T) {
	// Day gate passes, no time window configured: static flag decides.
	s := Schedule{
		TemporalEnabled: true,
		Days:            AllDays(),
		Active:          true,
	}
	assert.True(t, s.ActiveAt(at(time.Friday, "04:00")))

	s.Active = false
	assert.False(t, s.ActiveAt(at(time.Friday, "04:00")))
}

func TestParseTimeOfDay(t *testing.T) {
	v, err := ParseTimeOfDay("22:15")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(22*60+15), v)
	assert.Equal(t, "22:15", v.String())

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
}
