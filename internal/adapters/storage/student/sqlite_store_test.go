package student

import (
	"context"
	"testing"

	"mccenter/internal/adapters/storage/storagetest"
	"mccenter/internal/domain/roster"
)

func seed(t *testing.T, store *SQLiteStore) {
	t.Helper()
	students := []roster.Student{
		{ID: "st-1", FullName: "An Nguyen", Email: "an@x.com", Class: "MC Kids K12", Status: "studying", CourseType: "kid",
			EmailSettings: roster.EmailSettings{ReceiveDailySchedule: true, EmailRecipient: "parent"},
			ParentInfo:    roster.ParentInfo{ParentName: "Binh Nguyen", ParentEmail: "binh@x.com"}},
		{ID: "st-2", FullName: "Chi Tran", Email: " chi@x.com ", Class: "  mc kids   k12 ", Status: "Studying", CourseType: "Kid",
			EmailSettings: roster.EmailSettings{ReceiveDailySchedule: false, EmailRecipient: "Both"}},
		{ID: "st-3", FullName: "Dung Le", Email: "dung@x.com", Class: "MC Kids K12", Status: "paused", CourseType: "kid"},
		{ID: "st-4", FullName: "Em Pham", Email: "em@x.com", Class: "MC Pro A1", Status: "studying", CourseType: "adult",
			EmailSettings: roster.EmailSettings{ReceiveDailySchedule: true}},
	}
	for _, st := range students {
		if err := store.Save(context.Background(), st); err != nil {
			t.Fatalf("Save %s: %v", st.ID, err)
		}
	}
}

func TestSQLiteStore_ListStudents(t *testing.T) {
	store := NewSQLiteStore(storagetest.Open(t))
	seed(t, store)
	yes := true

	tests := []struct {
		name   string
		filter roster.Filter
		want   []string
	}{
		{"all", roster.Filter{}, []string{"st-1", "st-2", "st-3", "st-4"}},
		{"class ignores case and spacing", roster.Filter{Classes: []string{"MC KIDS K12"}}, []string{"st-1", "st-2", "st-3"}},
		{"class and status", roster.Filter{Classes: []string{"mc kids k12"}, Status: roster.StatusStudying}, []string{"st-1", "st-2"}},
		{"email enabled", roster.Filter{Status: roster.StatusStudying, EmailEnabled: &yes}, []string{"st-1", "st-4"}},
		{"several classes", roster.Filter{Classes: []string{"MC Pro A1", "MC Kids K12"}, EmailEnabled: &yes}, []string{"st-1", "st-4"}},
		{"unknown class", roster.Filter{Classes: []string{"MC Teens"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListStudents(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("ListStudents: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d students, want %v", len(got), tt.want)
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("got[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestSQLiteStore_ListStudents_Normalizes(t *testing.T) {
	store := NewSQLiteStore(storagetest.Open(t))
	seed(t, store)

	got, err := store.ListStudents(context.Background(), roster.Filter{Classes: []string{"MC Kids K12"}, Status: "studying"})
	if err != nil {
		t.Fatalf("ListStudents: %v", err)
	}
	chi := got[1]
	if chi.Email != "chi@x.com" || chi.CourseType != roster.CourseKid || chi.EmailSettings.EmailRecipient != roster.RecipientBoth {
		t.Errorf("not normalized: %+v", chi)
	}
	if chi.ClassKey() != "mc kids k12" {
		t.Errorf("ClassKey = %q", chi.ClassKey())
	}
}
