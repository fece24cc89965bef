package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/me/examvm/pkg/model"
)

// loop drives a tick function on a fixed interval until it is cancelled,
// stopped, or the tick fails with an error that is not retryable.
type loop struct {
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newLoop(interval time.Duration, logger *slog.Logger, opts []Option) *loop {
	l := &loop{
		interval: interval,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// run ticks immediately and then once per interval. Stop cancels the context
// passed to tick, so a tick observes it at its next pause.
func (l *loop) run(ctx context.Context, tick func(context.Context) error) error {
	defer close(l.doneCh)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-l.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	l.logger.Info("service started", "poll_interval", l.interval)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		if err := tick(ctx); err != nil {
			switch {
			case retryable(err):
				l.logger.Warn("tick incomplete, retrying next tick", "error", err)
			case ctx.Err() != nil && errors.Is(err, ctx.Err()):
				// The tick observed shutdown.
			default:
				l.logger.Error("tick failed", "error", err)
				return err
			}
		}

		select {
		case <-ctx.Done():
			select {
			case <-l.stopCh:
				l.logger.Info("service stopping (stop called)")
				return nil
			default:
			}
			l.logger.Info("service stopping (context cancelled)")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// stop asks the loop to exit and waits until it has.
func (l *loop) stop() error {
	l.stopOnce.Do(func() { close(l.stopCh) })
	<-l.doneCh
	return nil
}

// retryable reports whether err is an expected gateway outcome that a later
// tick resolves on its own.
func retryable(err error) bool {
	return errors.Is(err, model.ErrRateLimitExceeded) ||
		errors.Is(err, model.ErrQueueFull) ||
		errors.Is(err, model.ErrVMPending)
}

// pause waits for d or until ctx is done. It is the only point at which a
// service observes cancellation.
func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
