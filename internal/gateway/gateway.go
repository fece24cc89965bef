// Package gateway simulates the cloud provisioning API: creation requests are
// queued and brought up one at a time after a fixed provisioning delay, and
// both create and destroy calls draw on a shared rate limiter.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/me/examvm/internal/ratelimit"
	"github.com/me/examvm/pkg/model"
)

// Config holds gateway configuration.
type Config struct {
	// Delay is the time needed to bring one VM to the running state.
	Delay time.Duration
	// QueueSize bounds the number of VMs waiting to be provisioned.
	QueueSize int
}

// DefaultConfig returns the provisioning characteristics of the cloud API.
func DefaultConfig() Config {
	return Config{
		Delay:     6 * time.Second,
		QueueSize: 10000,
	}
}

// Stats is a point-in-time view of the gateway's VM sets.
type Stats struct {
	Pending int `json:"pending"`
	Running int `json:"running"`
}

// Simulated is an in-process provisioning gateway.
type Simulated struct {
	limiter *ratelimit.Limiter
	config  Config
	logger  *slog.Logger

	queue chan string

	mu      sync.Mutex
	pending map[string]struct{}
	running map[string]struct{}
}

// New creates a gateway. Run must be started for queued VMs to come up.
func New(limiter *ratelimit.Limiter, cfg Config, logger *slog.Logger) *Simulated {
	return &Simulated{
		limiter: limiter,
		config:  cfg,
		logger:  logger.With("component", "gateway"),
		queue:   make(chan string, cfg.QueueSize),
		pending: make(map[string]struct{}),
		running: make(map[string]struct{}),
	}
}

// Run drains the provisioning queue until ctx is cancelled. It blocks while
// the queue is empty.
func (g *Simulated) Run(ctx context.Context) error {
	g.logger.Info("gateway started", "delay", g.config.Delay, "queue_size", g.config.QueueSize)
	for {
		select {
		case <-ctx.Done():
			g.logger.Info("gateway stopping")
			return ctx.Err()
		case id := <-g.queue:
			timer := time.NewTimer(g.config.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				g.logger.Info("gateway stopping")
				return ctx.Err()
			case <-timer.C:
			}
			if g.promote(id) {
				g.logger.Info("started vm", "vm_id", id)
			}
		}
	}
}

// RequestCreate enqueues a new VM and returns its id. The VM is not usable
// until the provisioning delay has elapsed.
func (g *Simulated) RequestCreate(ctx context.Context) (string, error) {
	var id string
	err := g.limiter.Do(func() error {
		id = uuid.NewString()

		g.mu.Lock()
		g.pending[id] = struct{}{}
		g.mu.Unlock()

		select {
		case g.queue <- id:
			return nil
		case <-ctx.Done():
			g.forget(id)
			return ctx.Err()
		default:
			g.forget(id)
			return model.ErrQueueFull
		}
	})
	if err != nil {
		return "", fmt.Errorf("create vm: %w", err)
	}
	g.logger.Info("starting vm", "vm_id", id)
	return id, nil
}

// RequestDestroy stops a running VM. It returns model.ErrVMPending when the VM
// is still queued and model.ErrNotFound when the gateway does not know it.
func (g *Simulated) RequestDestroy(ctx context.Context, id string) error {
	err := g.limiter.Do(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		g.mu.Lock()
		defer g.mu.Unlock()

		if _, ok := g.running[id]; ok {
			delete(g.running, id)
			return nil
		}
		if _, ok := g.pending[id]; ok {
			return model.ErrVMPending
		}
		return model.ErrNotFound
	})
	if err != nil {
		return fmt.Errorf("destroy vm %s: %w", id, err)
	}
	g.logger.Info("stopping vm", "vm_id", id)
	return nil
}

// State reports the lifecycle state of a VM known to the gateway.
func (g *Simulated) State(id string) (model.VMState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.running[id]; ok {
		return model.VMStateRunning, true
	}
	if _, ok := g.pending[id]; ok {
		return model.VMStateRequested, true
	}
	return "", false
}

// Stats returns the current number of pending and running VMs.
func (g *Simulated) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{Pending: len(g.pending), Running: len(g.running)}
}

func (g *Simulated) promote(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.pending[id]; !ok {
		return false
	}
	delete(g.pending, id)
	g.running[id] = struct{}{}
	return true
}

func (g *Simulated) forget(id string) {
	g.mu.Lock()
	delete(g.pending, id)
	g.mu.Unlock()
}
