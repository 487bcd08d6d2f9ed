package projections

import (
	"context"

	"mccenter/internal/domain/apperr"
	"mccenter/internal/domain/roster"
)

// QueryRosterStudents returns the full records of students in classNames with
// the given status. Matching is case and whitespace insensitive.
// PRE: source is non-nil
// POST: Returns students, or an apperr.ResolutionError when the source fails
func QueryRosterStudents(ctx context.Context, classNames []string, status string, emailEnabled *bool, source RosterSource) ([]roster.Student, error) {
	filter := roster.Filter{Classes: classNames, Status: status, EmailEnabled: emailEnabled}
	if len(filter.ClassKeys()) == 0 {
		return []roster.Student{}, nil
	}
	students, err := source.ListStudents(ctx, filter)
	if err != nil {
		return nil, apperr.Unresolved("roster", err)
	}
	return students, nil
}

// QueryRosterCounts returns the live student count per normalized class name.
// Every requested class is present in the result, possibly with zero.
// PRE: source is non-nil
// POST: Keys are roster.NormalizeClassName of the inputs
func QueryRosterCounts(ctx context.Context, classNames []string, status string, source RosterSource) (map[string]int, error) {
	filter := roster.Filter{Classes: classNames, Status: status}
	counts := make(map[string]int)
	for _, k := range filter.ClassKeys() {
		counts[k] = 0
	}
	if len(counts) == 0 {
		return counts, nil
	}
	students, err := source.ListStudents(ctx, filter)
	if err != nil {
		return nil, apperr.Unresolved("roster", err)
	}
	for _, st := range students {
		key := st.ClassKey()
		if _, wanted := counts[key]; wanted {
			counts[key]++
		}
	}
	return counts, nil
}
