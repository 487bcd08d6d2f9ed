package schedule

import (
	"time"

	"mccenter/internal/domain/apperr"
	"mccenter/internal/domain/calendar"
)

// GenerateInput describes a recurring pattern over a date range.
type GenerateInput struct {
	StartDate     string
	EndDate       string
	WeeklyPattern []Slot
	TotalSessions int // 0 means run until EndDate
}

// GenerateSessions expands a weekly pattern into dated sessions.
// Days are walked forward from StartDate; each day whose weekday appears in
// the pattern yields one session, until TotalSessions is reached or EndDate
// is passed. When several slots share a weekday the first one wins.
// PRE: none
// POST: Returns sessions numbered 1..N with non-decreasing dates inside
// [StartDate, EndDate], or an apperr.ValidationError
func GenerateSessions(in GenerateInput) ([]Session, error) {
	start, end, err := parseRange(in.StartDate, in.EndDate)
	if err != nil {
		return nil, err
	}
	if err := validatePattern(in.WeeklyPattern); err != nil {
		return nil, err
	}
	if in.TotalSessions < 0 {
		return nil, apperr.Invalid("totalSessions", ErrNegativeTotal)
	}

	limit := in.TotalSessions
	if limit == 0 {
		limit = -1
	}
	sessions := expand(start, end, in.WeeklyPattern, 1, limit)
	if len(sessions) == 0 {
		return nil, apperr.Invalid("weeklyPattern", ErrNoSessions)
	}
	return sessions, nil
}

// expand walks [from, end] and emits at most limit sessions (limit < 0 is
// unbounded), numbering from firstNumber.
func expand(from, end time.Time, pattern []Slot, firstNumber, limit int) []Session {
	byDay := slotsByWeekday(pattern)
	var out []Session
	for d := from; !d.After(end); d = d.AddDate(0, 0, 1) {
		if limit >= 0 && len(out) >= limit {
			break
		}
		slot, ok := byDay[d.Weekday()]
		if !ok {
			continue
		}
		out = append(out, Session{
			SessionNumber: firstNumber + len(out),
			Date:          calendar.FormatDate(d),
			DayOfWeek:     NormalizeDay(slot.DayOfWeek),
			StartTime:     slot.StartTime,
			EndTime:       slot.EndTime,
		})
	}
	return out
}

func slotsByWeekday(pattern []Slot) map[time.Weekday]Slot {
	byDay := make(map[time.Weekday]Slot, len(pattern))
	for _, sl := range pattern {
		wd, ok := weekdays[NormalizeDay(sl.DayOfWeek)]
		if !ok {
			continue
		}
		if _, taken := byDay[wd]; taken {
			continue
		}
		byDay[wd] = sl
	}
	return byDay
}
