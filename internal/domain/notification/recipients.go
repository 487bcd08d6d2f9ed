package notification

import (
	"mccenter/internal/domain/roster"
)

// ResolveRecipients returns the addresses a student's notice goes to.
//
//	kid   + parent  -> parent email only
//	kid   + student -> student email only
//	kid   + both    -> student email and parent email, separately
//	adult + any     -> student email only
//
// Missing addresses are skipped without error. An unknown preference on a
// kid course falls back to the parent.
// PRE: none
// POST: Returns 0, 1 or 2 recipients; every Address is non-empty
func ResolveRecipients(s roster.Student) []Recipient {
	s.Normalize()

	student := Recipient{Address: s.Email, Name: s.FullName, Role: RoleStudent, StudentID: s.ID}
	parent := Recipient{Address: s.ParentInfo.ParentEmail, Name: s.ParentInfo.ParentName, Role: RoleParent, StudentID: s.ID}

	var candidates []Recipient
	if s.CourseType != roster.CourseKid {
		candidates = []Recipient{student}
	} else {
		switch s.EmailSettings.EmailRecipient {
		case roster.RecipientStudent:
			candidates = []Recipient{student}
		case roster.RecipientBoth:
			candidates = []Recipient{student, parent}
		default:
			candidates = []Recipient{parent}
		}
	}

	var out []Recipient
	for _, r := range candidates {
		if r.Address != "" {
			out = append(out, r)
		}
	}
	return out
}
