package scheduler

import (
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/me/examvm/pkg/model"
)

// BuildSchedule returns, for every exam that still needs VMs, the instant at
// which their creation has to begin, ordered by that instant.
//
// Exams are justified backwards from the latest one: each exam's creation
// window ends at its own start, or at the start of the next exam's window if
// that one begins earlier, so that no two windows compete for the gateway.
// perVM is the time the gateway needs to create one VM.
func BuildSchedule(exams []*model.Exam, perVM time.Duration) []model.ScheduleEntry {
	pending := lo.Filter(exams, func(e *model.Exam, _ int) bool {
		return e.Remaining() > 0
	})
	slices.SortStableFunc(pending, func(a, b *model.Exam) int {
		return b.Start.Compare(a.Start)
	})

	schedule := make([]model.ScheduleEntry, len(pending))

	// havePrev is false until a later exam has been placed, standing in for
	// an unbounded previous start.
	var prevStart time.Time
	havePrev := false

	for i, exam := range pending {
		timeToCreate := time.Duration(exam.Remaining()) * perVM

		deadline := exam.Start
		if havePrev && prevStart.Before(exam.Start) {
			deadline = prevStart
		}
		start := deadline.Add(-timeToCreate)

		schedule[len(pending)-1-i] = model.ScheduleEntry{Start: start, Exam: exam}
		prevStart, havePrev = start, true
	}

	return schedule
}
