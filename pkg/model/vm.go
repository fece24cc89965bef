package model

import "time"

// VM is a provisioned machine owned by one exam.
type VM struct {
	ID        string     `json:"id"`
	ExamID    int64      `json:"exam_id"`
	State     VMState    `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}
