package store

import (
	"context"
	"time"

	"github.com/me/examvm/pkg/model"
)

// Store defines the persistence layer for exams and their VMs.
// The scheduler treats it as the source of truth and never caches its rows
// across ticks.
type Store interface {
	// Exams
	CreateExam(ctx context.Context, exam *model.Exam) error
	GetExam(ctx context.Context, id int64) (*model.Exam, error)
	// ListExams returns every exam with its VMsCreated count, latest start first.
	ListExams(ctx context.Context) ([]*model.Exam, error)

	// VMs
	RecordCreatedVMs(ctx context.Context, vms []*model.VM) error
	ListVMs(ctx context.Context, state model.VMState) ([]*model.VM, error)
	// ListEndableVMs returns the ids of VMs that are not ended and whose exam
	// ended before now.
	ListEndableVMs(ctx context.Context, now time.Time) ([]string, error)
	MarkVMsRunning(ctx context.Context, ids []string) error
	MarkVMsEnded(ctx context.Context, ids []string, at time.Time) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
