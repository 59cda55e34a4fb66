// Файл: pkg/calendar/calendar.go
package calendar

import (
	"time"
)

// DayWindow - рабочее окно одного дня недели в формате "HH:MM".
// Отсутствие дня в карте означает выходной.
type DayWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// BusinessHours - карта рабочих часов, ключ - день недели в нижнем регистре
// ("monday" ... "sunday").
type BusinessHours map[string]DayWindow

// DefaultBusinessHours - Пн-Пт 08:00-17:00, суббота и воскресенье закрыты.
// Используется формами настройки правил как значение по умолчанию.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{
		"monday":    {Start: "08:00", End: "17:00"},
		"tuesday":   {Start: "08:00", End: "17:00"},
		"wednesday": {Start: "08:00", End: "17:00"},
		"thursday":  {Start: "08:00", End: "17:00"},
		"friday":    {Start: "08:00", End: "17:00"},
	}
}

// Options - параметры подсчёта прошедшего времени.
type Options struct {
	UseBusinessHours bool
	Hours            BusinessHours
	ExcludeWeekends  bool
	ExcludeHolidays  bool
	Holidays         map[string]struct{} // даты "2006-01-02"
}

// HolidaySet собирает множество праздничных дат из списка строк "2006-01-02".
func HolidaySet(dates ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		if d != "" {
			set[d] = struct{}{}
		}
	}
	return set
}

var weekdayKeys = map[time.Weekday]string{
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
	time.Sunday:    "sunday",
}

// ElapsedMinutes считает минуты между start и end.
// Без учёта рабочих часов - обычные настенные минуты (не меньше нуля).
// С учётом - сумма пересечений [start,end] с рабочим окном каждого дня;
// исключённые выходные и праздники дают 0. Функция чистая: никаких чтений
// текущего времени, "сейчас" передаёт вызывающий.
func ElapsedMinutes(start, end time.Time, opts Options) int {
	if !end.After(start) {
		return 0
	}

	if !opts.UseBusinessHours {
		return int(end.Sub(start).Minutes())
	}

	hours := opts.Hours
	if hours == nil {
		hours = DefaultBusinessHours()
	}

	var total time.Duration
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	for !day.After(end) {
		total += overlapForDay(day, start, end, hours, opts)
		day = day.AddDate(0, 0, 1)
	}

	return int(total.Minutes())
}

func overlapForDay(day, start, end time.Time, hours BusinessHours, opts Options) time.Duration {
	wd := day.Weekday()
	if opts.ExcludeWeekends && (wd == time.Saturday || wd == time.Sunday) {
		return 0
	}
	if opts.ExcludeHolidays {
		if _, holiday := opts.Holidays[day.Format("2006-01-02")]; holiday {
			return 0
		}
	}

	window, open := hours[weekdayKeys[wd]]
	if !open {
		return 0
	}

	startMin, ok := parseHHMM(window.Start)
	if !ok {
		return 0
	}
	endMin, ok := parseHHMM(window.End)
	if !ok || endMin <= startMin {
		return 0
	}

	windowStart := day.Add(time.Duration(startMin) * time.Minute)
	windowEnd := day.Add(time.Duration(endMin) * time.Minute)

	if start.After(windowStart) {
		windowStart = start
	}
	if end.Before(windowEnd) {
		windowEnd = end
	}
	if !windowEnd.After(windowStart) {
		return 0
	}
	return windowEnd.Sub(windowStart)
}

// parseHHMM разбирает "HH:MM" в минуты от полуночи.
func parseHHMM(s string) (int, bool) {
	if len(s) != 5 || s[2] != ':' {
		return 0, false
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' ||
		s[3] < '0' || s[3] > '9' || s[4] < '0' || s[4] > '9' {
		return 0, false
	}
	if h > 23 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// ValidHHMM сообщает, является ли строка корректным временем "HH:MM".
// Используется валидацией DTO правил.
func ValidHHMM(s string) bool {
	_, ok := parseHHMM(s)
	return ok
}
