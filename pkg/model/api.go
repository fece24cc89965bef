package model

import "time"

// Response is the standard API response envelope.
type Response struct {
	Status    string    `json:"status"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Error     *APIError `json:"error"`
}

// ExamView is the API representation of an Exam with its derived counts.
type ExamView struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Students   int       `json:"students"`
	VMsCreated int       `json:"vms_created"`
	Remaining  int       `json:"remaining"`
}

// NewExamView builds the API representation of e.
func NewExamView(e *Exam) ExamView {
	return ExamView{
		ID:         e.ID,
		Name:       e.Name,
		Start:      e.Start,
		End:        e.End,
		Students:   e.Students,
		VMsCreated: e.VMsCreated,
		Remaining:  e.Remaining(),
	}
}

// ScheduleView is the API representation of a ScheduleEntry.
type ScheduleView struct {
	CreationStart time.Time `json:"creation_start"`
	ExamID        int64     `json:"exam_id"`
	ExamName      string    `json:"exam_name"`
	ExamStart     time.Time `json:"exam_start"`
	VMs           int       `json:"vms"`
	Due           bool      `json:"due"`
	Delayed       bool      `json:"delayed"`
}
