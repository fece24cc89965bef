package scheduler

import (
	"context"
	"time"

	"github.com/me/examvm/pkg/model"
)

// Service is a long-running provisioning loop.
type Service interface {
	// Start runs the loop. Blocks until ctx is cancelled, Stop is called or a
	// tick fails fatally.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the loop at its next pause.
	Stop() error

	// Tick runs a single iteration. Used for testing.
	Tick(ctx context.Context) error
}

// Gateway is the provisioning API consumed by the services.
type Gateway interface {
	RequestCreate(ctx context.Context) (string, error)
	RequestDestroy(ctx context.Context, id string) error
	State(id string) (model.VMState, bool)
}

// Config holds scheduler configuration.
type Config struct {
	// PollInterval is the idle wait between ticks.
	PollInterval time.Duration
	// BatchInterval is the pause after each sub-batch of gateway calls.
	BatchInterval time.Duration
	// BatchSize caps the number of concurrent gateway calls in a sub-batch.
	// It should not exceed the gateway's rate limit.
	BatchSize int
	// ProvisioningDelay is the time the gateway needs to bring up one VM.
	ProvisioningDelay time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:      time.Second,
		BatchInterval:     time.Second,
		BatchSize:         3,
		ProvisioningDelay: 6 * time.Second,
	}
}

// Option configures optional service dependencies.
type Option func(*loop)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *loop) {
		l.now = now
	}
}
