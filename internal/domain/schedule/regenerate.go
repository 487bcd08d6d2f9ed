package schedule

import (
	"slices"

	"mccenter/internal/domain/apperr"
	"mccenter/internal/domain/calendar"
)

// Generate fills Sessions from the schedule's own pattern and range, and
// sets TotalSessions to the number produced.
// PRE: s passes Validate
// POST: Sessions replaced; TotalSessions == len(Sessions)
func (s *ClassSchedule) Generate() error {
	sessions, err := GenerateSessions(GenerateInput{
		StartDate:     s.StartDate,
		EndDate:       s.EndDate,
		WeeklyPattern: s.WeeklyPattern,
		TotalSessions: s.TotalSessions,
	})
	if err != nil {
		return err
	}
	s.Sessions = sessions
	s.TotalSessions = len(sessions)
	return nil
}

// NeedsRegeneration reports whether an edit touches the fields sessions are
// derived from.
func NeedsRegeneration(before, after ClassSchedule) bool {
	return before.StartDate != after.StartDate ||
		before.EndDate != after.EndDate ||
		before.TotalSessions != after.TotalSessions ||
		!slices.Equal(normalizedPattern(before.WeeklyPattern), normalizedPattern(after.WeeklyPattern))
}

// Regenerate rebuilds the sessions of an edited schedule without touching
// the past: sessions dated before today are kept verbatim and the remainder
// is regenerated from max(today, StartDate). Status overrides survive on
// regenerated sessions that keep their date.
// PRE: s carries the edited definition and the previously stored Sessions
// POST: Sessions numbered 1..N, elapsed prefix unchanged; TotalSessions == N
func (s *ClassSchedule) Regenerate(today string) error {
	start, end, err := parseRange(s.StartDate, s.EndDate)
	if err != nil {
		return err
	}
	if err := validatePattern(s.WeeklyPattern); err != nil {
		return err
	}
	if s.TotalSessions < 0 {
		return apperr.Invalid("totalSessions", ErrNegativeTotal)
	}
	todayDate, err := calendar.ParseDate(today)
	if err != nil {
		return apperr.Invalid("today", err)
	}

	var elapsed []Session
	overrides := make(map[string]string)
	for _, sess := range s.Sessions {
		if sess.Date < today {
			elapsed = append(elapsed, sess)
		} else if sess.Status != "" {
			overrides[sess.Date] = sess.Status
		}
	}

	if n := len(elapsed); n > 0 {
		if s.StartDate > elapsed[0].Date {
			return apperr.Invalid("startDate", ErrElapsedSessions)
		}
		if s.EndDate < elapsed[n-1].Date {
			return apperr.Invalid("endDate", ErrElapsedSessions)
		}
		if s.TotalSessions > 0 && s.TotalSessions < n {
			return apperr.Invalid("totalSessions", ErrElapsedSessions)
		}
	}

	from := start
	if todayDate.After(from) {
		from = todayDate
	}
	limit := -1
	if s.TotalSessions > 0 {
		limit = s.TotalSessions - len(elapsed)
	}

	var future []Session
	if limit != 0 && !from.After(end) {
		future = expand(from, end, s.WeeklyPattern, len(elapsed)+1, limit)
	}
	for i := range future {
		future[i].Status = overrides[future[i].Date]
	}

	sessions := append(elapsed, future...)
	if len(sessions) == 0 {
		return apperr.Invalid("weeklyPattern", ErrNoSessions)
	}
	s.Sessions = sessions
	s.TotalSessions = len(sessions)
	return nil
}

func normalizedPattern(pattern []Slot) []Slot {
	out := make([]Slot, len(pattern))
	for i, sl := range pattern {
		out[i] = Slot{DayOfWeek: NormalizeDay(sl.DayOfWeek), StartTime: sl.StartTime, EndTime: sl.EndTime}
	}
	return out
}
