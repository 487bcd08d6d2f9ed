package notification

import (
	"errors"
	"strings"
)

// Audience constants select who a dispatch run notifies.
const (
	AudienceAdmin   = "admin"
	AudienceStudent = "student"
	AudienceBoth    = "both"
)

// Recipient role constants.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
	RoleParent  = "parent"
)

// ErrInvalidAudience is returned for an unknown audience.
var ErrInvalidAudience = errors.New("audience must be admin, student or both")

// ParseAudience normalizes an audience value.
// PRE: none
// POST: Returns one of the Audience constants or ErrInvalidAudience
func ParseAudience(s string) (string, error) {
	switch a := strings.ToLower(strings.TrimSpace(s)); a {
	case AudienceAdmin, AudienceStudent, AudienceBoth:
		return a, nil
	default:
		return "", ErrInvalidAudience
	}
}

// IncludesAdmin reports whether the audience covers staff.
func IncludesAdmin(audience string) bool {
	return audience == AudienceAdmin || audience == AudienceBoth
}

// IncludesStudents reports whether the audience covers students and parents.
func IncludesStudents(audience string) bool {
	return audience == AudienceStudent || audience == AudienceBoth
}

// Recipient is one address a message is attempted to.
type Recipient struct {
	Address   string `json:"address"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role"`
	StudentID string `json:"studentId,omitempty"`
}

// Message is rendered content for one recipient. Body is markdown.
type Message struct {
	Recipient Recipient
	Subject   string
	Body      string
}

// RecipientError records one recipient whose send failed.
type RecipientError struct {
	Recipient string `json:"recipient"`
	Role      string `json:"role"`
	StudentID string `json:"studentId,omitempty"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error"`
}

// BatchResult summarizes one dispatch run. Sent + Failed == RecipientsAttempted.
type BatchResult struct {
	Date                string           `json:"date"`
	Audience            string           `json:"audience"`
	SessionsCount       int              `json:"sessionsCount"`
	RecipientsAttempted int              `json:"recipientsAttempted"`
	Sent                int              `json:"sent"`
	Failed              int              `json:"failed"`
	PerRecipientErrors  []RecipientError `json:"perRecipientErrors"`
}
