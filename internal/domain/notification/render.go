package notification

import (
	"fmt"
	"sort"
	"strings"

	"mccenter/internal/domain/calendar"
)

// SessionLine is one session as it appears in a notice.
type SessionLine struct {
	ClassName     string
	SessionNumber int
	TotalSessions int
	StartTime     string
	EndTime       string
	Location      string
	Instructor    string
	Status        string
	Students      int // live roster count; used by the admin digest only
	MaxStudents   int
}

// SortLines orders lines by start time, then class name.
func SortLines(lines []SessionLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].StartTime != lines[j].StartTime {
			return lines[i].StartTime < lines[j].StartTime
		}
		return lines[i].ClassName < lines[j].ClassName
	})
}

// RenderAdminDigest builds the staff digest for date, one message per admin.
// PRE: lines carry live student counts
// POST: len(result) == len(admins); all messages share subject and body
func RenderAdminDigest(date string, lines []SessionLine, admins []Recipient) []Message {
	lines = append([]SessionLine(nil), lines...)
	SortLines(lines)

	var b strings.Builder
	fmt.Fprintf(&b, "# Class schedule for %s\n\n", calendar.LongDate(date))
	if len(lines) == 0 {
		b.WriteString("No classes are scheduled.\n")
	} else {
		total := 0
		for _, l := range lines {
			total += l.Students
		}
		fmt.Fprintf(&b, "%d session(s), %d student(s) expected.\n\n", len(lines), total)
		b.WriteString("| Time | Class | Session | Students | Instructor | Location |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, l := range lines {
			fmt.Fprintf(&b, "| %s-%s | %s | %d/%d | %d/%d | %s | %s |\n",
				l.StartTime, l.EndTime, escape(l.ClassName), l.SessionNumber, l.TotalSessions,
				l.Students, l.MaxStudents, escape(l.Instructor), escape(l.Location))
		}
	}

	subject := "Class schedule for " + calendar.LongDate(date)
	body := b.String()
	out := make([]Message, 0, len(admins))
	for _, a := range admins {
		out = append(out, Message{Recipient: a, Subject: subject, Body: body})
	}
	return out
}

// RenderStudentNotice builds one personalized notice. The greeting addresses
// the parent or the student depending on the recipient's role.
// PRE: r was produced by ResolveRecipients for a student named studentName
// POST: Returns a message addressed to r
func RenderStudentNotice(date string, r Recipient, studentName string, lines []SessionLine) Message {
	lines = append([]SessionLine(nil), lines...)
	SortLines(lines)
	long := calendar.LongDate(date)

	var b strings.Builder
	var subject string
	if r.Role == RoleParent {
		name := r.Name
		if name == "" {
			name = "Parent"
		}
		fmt.Fprintf(&b, "Dear %s,\n\n", escape(name))
		fmt.Fprintf(&b, "%s has class on **%s**:\n\n", escape(studentName), long)
		subject = fmt.Sprintf("%s's class schedule for %s", studentName, long)
	} else {
		fmt.Fprintf(&b, "Hi %s,\n\n", escape(studentName))
		fmt.Fprintf(&b, "You have class on **%s**:\n\n", long)
		subject = "Your class schedule for " + long
	}

	for _, l := range lines {
		fmt.Fprintf(&b, "- **%s** (session %d of %d), %s-%s", escape(l.ClassName), l.SessionNumber, l.TotalSessions, l.StartTime, l.EndTime)
		if l.Location != "" {
			fmt.Fprintf(&b, " at %s", escape(l.Location))
		}
		if l.Instructor != "" {
			fmt.Fprintf(&b, " with %s", escape(l.Instructor))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nPlease arrive ten minutes early. Reply to this email if you cannot attend.\n")

	return Message{Recipient: r, Subject: subject, Body: b.String()}
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "|", `\|`, "<", "&lt;", ">", "&gt;",
)

func escape(s string) string {
	return mdEscaper.Replace(s)
}
