package service

import (
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/swim-scheduler-api/internal/models"
)

const dateLayout = "2006-01-02"

// deriveTimeWindow returns [min(startTime), max(endTime + endMinute/100)] for
// the selected slots. The minutes-over-100 encoding is what the backend
// expects; converting to minutes-over-60 would shift every window.
func deriveTimeWindow(slots []models.Slot) (float64, float64) {
	if len(slots) == 0 {
		return 0, 0
	}
	minTime := slots[0].StartValue()
	maxTime := slots[0].EndValue()
	for _, slot := range slots[1:] {
		if v := slot.StartValue(); v < minTime {
			minTime = v
		}
		if v := slot.EndValue(); v > maxTime {
			maxTime = v
		}
	}
	return minTime, maxTime
}

// toBackendWeekday converts a Sunday-based weekday (0..6) into the backend's
// encoding, which counts days forward from the start date's weekday.
func toBackendWeekday(jsDay int, startDate time.Time) int {
	return ((jsDay-int(startDate.Weekday()))%7 + 7) % 7
}

func toBackendWeekdays(mask []int, startDate time.Time) []int {
	days := make([]int, 0, len(mask))
	for _, day := range mask {
		days = append(days, toBackendWeekday(day, startDate))
	}
	return days
}

func parseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, strings.TrimSpace(raw), time.UTC)
}

// normalizeDate reduces backend timestamps ("2025-01-06T00:00:00.000Z") to
// YYYY-MM-DD. Unparseable values are returned trimmed.
func normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= len(dateLayout) {
		if t, err := parseDate(raw[:len(dateLayout)]); err == nil {
			return t.Format(dateLayout)
		}
	}
	return raw
}

// sortSessionsByDate keeps each class's sessions chronological. The sort is
// stable so sessions sharing a date keep their relative order.
func sortSessionsByDate(sessions []models.PlannedSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Date < sessions[j].Date
	})
}

func toggleInt(values []int, value int) []int {
	for i, v := range values {
		if v == value {
			return append(values[:i:i], values[i+1:]...)
		}
	}
	result := append(values, value)
	sort.Ints(result)
	return result
}

func dateBounds(sessions []models.PlannedSession) (string, string) {
	if len(sessions) == 0 {
		return "", ""
	}
	first, last := sessions[0].Date, sessions[0].Date
	for _, session := range sessions[1:] {
		if session.Date < first {
			first = session.Date
		}
		if session.Date > last {
			last = session.Date
		}
	}
	return first, last
}
