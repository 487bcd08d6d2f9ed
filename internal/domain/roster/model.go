package roster

import (
	"strings"
)

// Enrollment status constants.
const (
	StatusStudying = "studying"
	StatusPaused   = "paused"
	StatusStopped  = "stopped"
)

// Course type constants.
const (
	CourseAdult = "adult"
	CourseKid   = "kid"
)

// Email recipient preference constants.
const (
	RecipientParent  = "parent"
	RecipientStudent = "student"
	RecipientBoth    = "both"
)

// EmailSettings holds a student's notification preferences.
type EmailSettings struct {
	ReceiveDailySchedule bool   `json:"receiveDailySchedule"`
	EmailRecipient       string `json:"emailRecipient"`
}

// ParentInfo identifies the parent of a kid-course student.
type ParentInfo struct {
	ParentName  string `json:"parentName"`
	ParentEmail string `json:"parentEmail"`
}

// Student is an enrolled learner. Class is free text that is expected to
// equal a schedule's class name once normalized.
type Student struct {
	ID            string        `json:"id"`
	FullName      string        `json:"fullName"`
	Email         string        `json:"email"`
	Class         string        `json:"class"`
	Status        string        `json:"status"`
	CourseType    string        `json:"courseType"`
	EmailSettings EmailSettings `json:"emailSettings"`
	ParentInfo    ParentInfo    `json:"parentInfo"`
}

// Normalize lowercases enum fields and trims addresses so records coming
// from older data compare cleanly. Class is left as stored.
// POST: Status, CourseType, EmailRecipient lowercase; emails trimmed
func (s *Student) Normalize() {
	s.Status = strings.ToLower(strings.TrimSpace(s.Status))
	s.CourseType = strings.ToLower(strings.TrimSpace(s.CourseType))
	s.EmailSettings.EmailRecipient = strings.ToLower(strings.TrimSpace(s.EmailSettings.EmailRecipient))
	s.Email = strings.TrimSpace(s.Email)
	s.ParentInfo.ParentEmail = strings.TrimSpace(s.ParentInfo.ParentEmail)
}

// ClassKey returns the normalized join key for the student's class.
func (s Student) ClassKey() string {
	return NormalizeClassName(s.Class)
}

// NormalizeClassName is the join key between Student.Class and a schedule's
// class name: surrounding whitespace trimmed, inner runs collapsed, lowercase.
func NormalizeClassName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Filter selects students for a roster read.
type Filter struct {
	Classes      []string // raw class names; normalized on use
	Status       string   // empty matches any status
	EmailEnabled *bool    // nil matches either
}

// ClassKeys returns the distinct normalized class keys of the filter.
func (f Filter) ClassKeys() []string {
	seen := make(map[string]bool, len(f.Classes))
	var keys []string
	for _, c := range f.Classes {
		k := NormalizeClassName(c)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

// Matches reports whether a student satisfies the filter.
// INVARIANT: neither the filter nor the student is mutated
func (f Filter) Matches(s Student) bool {
	if f.Status != "" && !strings.EqualFold(strings.TrimSpace(s.Status), f.Status) {
		return false
	}
	if f.EmailEnabled != nil && s.EmailSettings.ReceiveDailySchedule != *f.EmailEnabled {
		return false
	}
	if len(f.Classes) == 0 {
		return true
	}
	key := s.ClassKey()
	for _, k := range f.ClassKeys() {
		if k == key {
			return true
		}
	}
	return false
}
