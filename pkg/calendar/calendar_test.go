package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", value)
	require.NoError(t, err)
	return ts
}

func TestElapsedMinutes_WallClock(t *testing.T) {
	start := mustTime(t, "2025-03-10 10:00")

	assert.Equal(t, 90, ElapsedMinutes(start, start.Add(90*time.Minute), Options{}))
	assert.Equal(t, 0, ElapsedMinutes(start, start, Options{}))
	// end раньше start - всегда ноль
	assert.Equal(t, 0, ElapsedMinutes(start, start.Add(-time.Hour), Options{}))
}

func TestElapsedMinutes_BusinessHoursSingleDay(t *testing.T) {
	opts := Options{UseBusinessHours: true}

	// 2025-03-10 - понедельник
	start := mustTime(t, "2025-03-10 09:00")
	end := mustTime(t, "2025-03-10 12:30")
	assert.Equal(t, 210, ElapsedMinutes(start, end, opts))

	// интервал частично до открытия
	assert.Equal(t, 60, ElapsedMinutes(mustTime(t, "2025-03-10 06:00"), mustTime(t, "2025-03-10 09:00"), opts))

	// интервал целиком вне окна
	assert.Equal(t, 0, ElapsedMinutes(mustTime(t, "2025-03-10 18:00"), mustTime(t, "2025-03-10 22:00"), opts))
}

func TestElapsedMinutes_WeekendExcluded(t *testing.T) {
	opts := Options{UseBusinessHours: true, ExcludeWeekends: true}

	// пятница 16:30 -> понедельник 09:00: 30 минут в пятницу + 60 в понедельник
	start := mustTime(t, "2025-03-14 16:30")
	end := mustTime(t, "2025-03-17 09:00")
	assert.Equal(t, 90, ElapsedMinutes(start, end, opts))
}

func TestElapsedMinutes_WeekendWindowWithoutExclusion(t *testing.T) {
	// суббота отсутствует в карте по умолчанию, поэтому и без флага выходных дает 0
	opts := Options{UseBusinessHours: true}
	start := mustTime(t, "2025-03-15 10:00")
	end := mustTime(t, "2025-03-15 15:00")
	assert.Equal(t, 0, ElapsedMinutes(start, end, opts))
}

func TestElapsedMinutes_HolidayExcluded(t *testing.T) {
	opts := Options{
		UseBusinessHours: true,
		ExcludeHolidays:  true,
		Holidays:         HolidaySet("2025-03-11"),
	}

	// понедельник 16:00 -> среда 09:00, вторник - праздник
	start := mustTime(t, "2025-03-10 16:00")
	end := mustTime(t, "2025-03-12 09:00")
	assert.Equal(t, 120, ElapsedMinutes(start, end, opts))

	// без флага праздник считается обычным днём
	opts.ExcludeHolidays = false
	assert.Equal(t, 120+540, ElapsedMinutes(start, end, opts))
}

func TestElapsedMinutes_CustomHours(t *testing.T) {
	opts := Options{
		UseBusinessHours: true,
		Hours: BusinessHours{
			"monday": {Start: "10:00", End: "14:00"},
		},
	}

	start := mustTime(t, "2025-03-10 08:00")
	end := mustTime(t, "2025-03-10 20:00")
	assert.Equal(t, 240, ElapsedMinutes(start, end, opts))

	// вторник в карте отсутствует
	assert.Equal(t, 0, ElapsedMinutes(mustTime(t, "2025-03-11 10:00"), mustTime(t, "2025-03-11 14:00"), opts))
}

func TestElapsedMinutes_BrokenWindowIgnored(t *testing.T) {
	opts := Options{
		UseBusinessHours: true,
		Hours: BusinessHours{
			"monday":  {Start: "17:00", End: "08:00"},
			"tuesday": {Start: "8:00", End: "17:00"},
		},
	}
	assert.Equal(t, 0, ElapsedMinutes(mustTime(t, "2025-03-10 09:00"), mustTime(t, "2025-03-11 12:00"), opts))
}

func TestElapsedMinutes_Monotonic(t *testing.T) {
	opts := Options{UseBusinessHours: true, ExcludeWeekends: true}
	start := mustTime(t, "2025-03-14 12:00")

	prev := 0
	for now := start; now.Before(start.Add(96 * time.Hour)); now = now.Add(47 * time.Minute) {
		cur := ElapsedMinutes(start, now, opts)
		require.GreaterOrEqual(t, cur, prev, "минуты не должны уменьшаться при росте now")
		prev = cur
	}
}

func TestValidHHMM(t *testing.T) {
	assert.True(t, ValidHHMM("08:00"))
	assert.True(t, ValidHHMM("23:59"))
	assert.False(t, ValidHHMM("24:00"))
	assert.False(t, ValidHHMM("8:00"))
	assert.False(t, ValidHHMM("0800"))
	assert.False(t, ValidHHMM("ab:cd"))
}

func TestDefaultBusinessHours(t *testing.T) {
	hours := DefaultBusinessHours()
	require.Len(t, hours, 5)
	assert.Equal(t, DayWindow{Start: "08:00", End: "17:00"}, hours["monday"])
	_, saturday := hours["saturday"]
	assert.False(t, saturday)
}
