package model

import (
	"testing"
	"time"
)

func TestExam_Remaining(t *testing.T) {
	tests := []struct {
		name       string
		students   int
		vmsCreated int
		want       int
	}{
		{"none created", 10, 0, 10},
		{"partially created", 10, 4, 6},
		{"all created", 10, 10, 0},
		{"over created", 10, 12, 0},
		{"zero students", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Exam{Students: tt.students, VMsCreated: tt.vmsCreated}
			if got := e.Remaining(); got != tt.want {
				t.Errorf("Remaining() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExam_Validate(t *testing.T) {
	start := time.Date(2024, 2, 12, 9, 10, 0, 0, time.UTC)

	valid := &Exam{Name: "Math", Start: start, End: start.Add(time.Hour), Students: 30}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	sameInstant := &Exam{Name: "Math", Start: start, End: start, Students: 30}
	if err := sameInstant.Validate(); err != nil {
		t.Errorf("Validate() with end == start = %v, want nil", err)
	}

	invalid := []*Exam{
		{Start: start, End: start.Add(time.Hour), Students: 1},
		{Name: "History", Start: start, End: start.Add(-time.Hour), Students: 1},
		{Name: "History", Start: start, End: start.Add(time.Hour), Students: -1},
		{Name: "History", End: start},
	}
	for i, e := range invalid {
		if err := e.Validate(); err == nil {
			t.Errorf("case %d: Validate() = nil, want error", i)
		}
	}
}

func TestScheduleEntry_Delay(t *testing.T) {
	start := time.Date(2024, 2, 12, 5, 10, 0, 0, time.UTC)
	entry := ScheduleEntry{Start: start, Exam: &Exam{ID: 1}}

	if entry.Due(start.Add(-time.Second)) {
		t.Errorf("entry must not be due before its start")
	}
	if got := entry.Delay(start.Add(-time.Second)); got != 0 {
		t.Errorf("Delay before start = %v, want 0", got)
	}
	if !entry.Due(start) {
		t.Errorf("entry must be due at its start")
	}
	if got := entry.Delay(start.Add(7 * time.Second)); got != 7*time.Second {
		t.Errorf("Delay = %v, want 7s", got)
	}
}
