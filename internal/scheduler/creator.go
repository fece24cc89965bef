package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/me/examvm/internal/store"
	"github.com/me/examvm/pkg/model"
)

// CreationService provisions the VMs of the next due exam.
type CreationService struct {
	*loop

	store   store.Store
	gateway Gateway
	config  Config
	logger  *slog.Logger
}

var _ Service = (*CreationService)(nil)

// NewCreationService creates the VM creation loop.
func NewCreationService(st store.Store, gw Gateway, cfg Config, logger *slog.Logger, opts ...Option) *CreationService {
	logger = logger.With("component", "creator")
	return &CreationService{
		loop:    newLoop(cfg.PollInterval, logger, opts),
		store:   st,
		gateway: gw,
		config:  cfg,
		logger:  logger,
	}
}

// Start begins the creation loop. Blocks until ctx is cancelled or Stop is called.
func (c *CreationService) Start(ctx context.Context) error {
	return c.run(ctx, c.Tick)
}

// Stop shuts the loop down at its next pause and waits for it to return.
func (c *CreationService) Stop() error {
	return c.stop()
}

// Tick plans against the current exam snapshot and, if the earliest entry is
// due, creates all of its remaining VMs.
func (c *CreationService) Tick(ctx context.Context) error {
	if err := c.reconcile(ctx); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	exams, err := c.store.ListExams(ctx)
	if err != nil {
		return fmt.Errorf("list exams: %w", err)
	}

	schedule := BuildSchedule(exams, c.config.ProvisioningDelay)
	if len(schedule) == 0 {
		c.logger.Debug("nothing to schedule")
		return nil
	}
	if c.logger.Enabled(ctx, slog.LevelDebug) {
		c.logger.Debug("create schedule", "entries", formatSchedule(schedule))
	}

	next := schedule[0]
	now := c.now()
	if !next.Due(now) {
		c.logger.Info("next creation pending", "exam_id", next.Exam.ID, "in", next.Start.Sub(now).Round(time.Second))
		return nil
	}
	if delay := next.Delay(now); delay > c.config.ProvisioningDelay {
		c.logger.Warn("creation of vms is delayed", "exam_id", next.Exam.ID, "delay", delay.Round(time.Second))
	}

	return c.create(ctx, next.Exam)
}

// create issues the exam's remaining creations in sub-batches. Each sub-batch
// is recorded before the next one starts; a rejected call leaves its slot for
// a later tick.
func (c *CreationService) create(ctx context.Context, exam *model.Exam) error {
	total := exam.Remaining()
	batches := lo.Chunk(lo.Range(total), max(c.config.BatchSize, 1))
	c.logger.Info("creating vms", "exam_id", exam.ID, "exam", exam.Name, "count", total, "batches", len(batches))

	for i, batch := range batches {
		// The sub-batch runs to completion even if ctx is cancelled meanwhile.
		bctx := context.WithoutCancel(ctx)

		ids, errs := dispatch(bctx, batch, func(ctx context.Context, _ int) (string, error) {
			return c.gateway.RequestCreate(ctx)
		})

		created := make([]*model.VM, 0, len(batch))
		for j, id := range ids {
			if errs[j] == nil {
				created = append(created, &model.VM{
					ID:        id,
					ExamID:    exam.ID,
					State:     model.VMStateRequested,
					CreatedAt: c.now(),
				})
			}
		}

		if err := c.store.RecordCreatedVMs(bctx, created); err != nil {
			return fmt.Errorf("record vms for exam %d: %w", exam.ID, err)
		}
		exam.VMsCreated += len(created)

		if err := joinFailures(errs); err != nil {
			return fmt.Errorf("create vms for exam %d (batch %d/%d, %d created): %w",
				exam.ID, i+1, len(batches), len(created), err)
		}
		c.logger.Debug("vm batch created", "exam_id", exam.ID, "batch", i+1, "of", len(batches), "count", len(created))

		if err := pause(ctx, c.config.BatchInterval); err != nil {
			return err
		}
	}

	c.logger.Info("vms created", "exam_id", exam.ID, "count", total)
	return nil
}

// reconcile records the VMs the gateway has brought up since the last tick.
// A requested VM the gateway does not know (lost across a restart) is
// marked ended, the same outcome as a destroy answered with NotFound.
func (c *CreationService) reconcile(ctx context.Context) error {
	requested, err := c.store.ListVMs(ctx, model.VMStateRequested)
	if err != nil {
		return err
	}

	var running, lost []string
	for _, vm := range requested {
		state, ok := c.gateway.State(vm.ID)
		switch {
		case !ok:
			lost = append(lost, vm.ID)
		case state == model.VMStateRunning:
			running = append(running, vm.ID)
		}
	}

	if len(running) > 0 {
		if err := c.store.MarkVMsRunning(ctx, running); err != nil {
			return err
		}
		c.logger.Debug("vms running", "count", len(running))
	}
	if len(lost) > 0 {
		if err := c.store.MarkVMsEnded(ctx, lost, c.now()); err != nil {
			return err
		}
		c.logger.Warn("requested vms unknown to gateway, marked ended", "count", len(lost), "vm_ids", lost)
	}
	return nil
}

// joinFailures returns nil if every call succeeded. A non-retryable failure
// is returned alone so that it is not masked by retryable ones.
func joinFailures(errs []error) error {
	failures := lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if fatal, ok := lo.Find(failures, func(err error) bool { return !retryable(err) }); ok {
		return fatal
	}
	return errors.Join(failures...)
}

func formatSchedule(schedule []model.ScheduleEntry) string {
	lines := lo.Map(schedule, func(s model.ScheduleEntry, _ int) string {
		return fmt.Sprintf("%s exam=%d vms=%d", s.Start.Format("2006-01-02T15:04:05Z07:00"), s.Exam.ID, s.Exam.Remaining())
	})
	return strings.Join(lines, "; ")
}
