package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/me/examvm/internal/store"
	"github.com/me/examvm/pkg/model"
)

// TerminationService destroys the VMs of exams that have ended.
type TerminationService struct {
	*loop

	store   store.Store
	gateway Gateway
	config  Config
	logger  *slog.Logger
}

var _ Service = (*TerminationService)(nil)

// NewTerminationService creates the VM termination loop.
func NewTerminationService(st store.Store, gw Gateway, cfg Config, logger *slog.Logger, opts ...Option) *TerminationService {
	logger = logger.With("component", "terminator")
	return &TerminationService{
		loop:    newLoop(cfg.PollInterval, logger, opts),
		store:   st,
		gateway: gw,
		config:  cfg,
		logger:  logger,
	}
}

// Start begins the termination loop. Blocks until ctx is cancelled or Stop is called.
func (t *TerminationService) Start(ctx context.Context) error {
	return t.run(ctx, t.Tick)
}

// Stop shuts the loop down at its next pause and waits for it to return.
func (t *TerminationService) Stop() error {
	return t.stop()
}

// Tick destroys every endable VM in sub-batches and marks the confirmed ones
// ended. VMs the gateway could not destroy yet are left for a later tick.
func (t *TerminationService) Tick(ctx context.Context) error {
	ids, err := t.store.ListEndableVMs(ctx, t.now())
	if err != nil {
		return fmt.Errorf("list endable vms: %w", err)
	}
	if len(ids) == 0 {
		t.logger.Debug("nothing to end")
		return nil
	}

	batches := lo.Chunk(ids, max(t.config.BatchSize, 1))
	t.logger.Info("ending vms", "count", len(ids), "batches", len(batches))

	var deferred []error
	for i, batch := range batches {
		bctx := context.WithoutCancel(ctx)

		_, errs := dispatch(bctx, batch, func(ctx context.Context, id string) (struct{}, error) {
			return struct{}{}, t.gateway.RequestDestroy(ctx, id)
		})

		var ended []string
		var fatal error
		for j, id := range batch {
			switch err := errs[j]; {
			case err == nil:
				ended = append(ended, id)
			case errors.Is(err, model.ErrNotFound):
				t.logger.Warn("vm unknown to gateway, marking ended", "vm_id", id)
				ended = append(ended, id)
			case retryable(err):
				deferred = append(deferred, err)
			default:
				fatal = errors.Join(fatal, err)
			}
		}

		if err := t.store.MarkVMsEnded(bctx, ended, t.now()); err != nil {
			return fmt.Errorf("mark vms ended: %w", err)
		}
		if fatal != nil {
			return fmt.Errorf("end vms (batch %d/%d): %w", i+1, len(batches), fatal)
		}
		t.logger.Debug("vm batch ended", "batch", i+1, "of", len(batches), "count", len(ended))

		if err := pause(ctx, t.config.BatchInterval); err != nil {
			return err
		}
	}

	if len(deferred) > 0 {
		return fmt.Errorf("%d vms not ended: %w", len(deferred), errors.Join(deferred...))
	}
	return nil
}
