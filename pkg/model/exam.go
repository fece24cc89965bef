package model

import (
	"errors"
	"time"
)

// Exam is a scheduled event that needs Students VMs available between Start and End.
type Exam struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Students int       `json:"students"`

	// VMsCreated counts the VMs already recorded for this exam. It only grows.
	VMsCreated int `json:"vms_created"`
}

// Remaining returns the number of VMs that still have to be created.
func (e *Exam) Remaining() int {
	return max(e.Students-e.VMsCreated, 0)
}

// Validate checks the invariants of a new exam.
func (e *Exam) Validate() error {
	var errs []error
	if e.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if e.Start.IsZero() {
		errs = append(errs, errors.New("start is required"))
	}
	if e.End.Before(e.Start) {
		errs = append(errs, errors.New("end must not be before start"))
	}
	if e.Students < 0 {
		errs = append(errs, errors.New("students must not be negative"))
	}
	return errors.Join(errs...)
}

// ScheduleEntry is the latest wall-clock instant at which VM creation for
// Exam has to begin.
type ScheduleEntry struct {
	Start time.Time
	Exam  *Exam
}

// Due reports whether creation for the entry should already have started.
func (s ScheduleEntry) Due(now time.Time) bool {
	return !now.Before(s.Start)
}

// Delay returns how far past its start the entry is, or zero if it is not due.
func (s ScheduleEntry) Delay(now time.Time) time.Duration {
	if !s.Due(now) {
		return 0
	}
	return now.Sub(s.Start)
}
