package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/me/examvm/internal/logging"
	"github.com/me/examvm/internal/store"
	"github.com/me/examvm/pkg/model"
)

// fakeGateway records calls and lets tests inject failures.
type fakeGateway struct {
	mu sync.Mutex

	nextID    int
	pending   map[string]bool
	running   map[string]bool
	destroyed []string

	createCalls int
	inFlight    int
	maxInFlight int

	// createErr is consulted with the 1-based call number.
	createErr  func(call int) error
	destroyErr map[string]error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		pending:    make(map[string]bool),
		running:    make(map[string]bool),
		destroyErr: make(map[string]error),
	}
}

func (g *fakeGateway) enter() {
	g.mu.Lock()
	g.inFlight++
	g.maxInFlight = max(g.maxInFlight, g.inFlight)
	g.mu.Unlock()
	// Give concurrent calls of the same sub-batch a chance to overlap.
	time.Sleep(time.Millisecond)
}

func (g *fakeGateway) leave() {
	g.mu.Lock()
	g.inFlight--
	g.mu.Unlock()
}

func (g *fakeGateway) RequestCreate(ctx context.Context) (string, error) {
	g.enter()
	defer g.leave()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.createCalls++
	if g.createErr != nil {
		if err := g.createErr(g.createCalls); err != nil {
			return "", fmt.Errorf("create vm: %w", err)
		}
	}
	g.nextID++
	id := fmt.Sprintf("vm-%03d", g.nextID)
	g.pending[id] = true
	return id, nil
}

func (g *fakeGateway) RequestDestroy(ctx context.Context, id string) error {
	g.enter()
	defer g.leave()

	g.mu.Lock()
	defer g.mu.Unlock()

	if err, ok := g.destroyErr[id]; ok {
		return fmt.Errorf("destroy vm %s: %w", id, err)
	}
	if !g.running[id] {
		return fmt.Errorf("destroy vm %s: %w", id, model.ErrNotFound)
	}
	delete(g.running, id)
	g.destroyed = append(g.destroyed, id)
	return nil
}

func (g *fakeGateway) State(id string) (model.VMState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case g.running[id]:
		return model.VMStateRunning, true
	case g.pending[id]:
		return model.VMStateRequested, true
	}
	return "", false
}

// startAll moves every pending VM to running.
func (g *fakeGateway) startAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id := range g.pending {
		g.running[id] = true
		delete(g.pending, id)
	}
}

func (g *fakeGateway) addRunning(ids ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range ids {
		g.running[id] = true
	}
}

func (g *fakeGateway) stats() (calls, maxInFlight int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.createCalls, g.maxInFlight
}

func discardLogger() *slog.Logger {
	return logging.Discard()
}

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(&lockedWriter{w: buf}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func testStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:", discardLogger())
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func testConfig() Config {
	return Config{
		PollInterval:      5 * time.Millisecond,
		BatchInterval:     time.Millisecond,
		BatchSize:         3,
		ProvisioningDelay: 6 * time.Second,
	}
}

func createExam(t *testing.T, st store.Store, name string, start, end time.Time, students int) *model.Exam {
	t.Helper()
	e := &model.Exam{Name: name, Start: start, End: end, Students: students}
	require.NoError(t, st.CreateExam(context.Background(), e))
	return e
}

func recordVMs(t *testing.T, st store.Store, examID int64, ids ...string) {
	t.Helper()
	vms := make([]*model.VM, 0, len(ids))
	for _, id := range ids {
		vms = append(vms, &model.VM{ID: id, ExamID: examID, State: model.VMStateRequested, CreatedAt: time.Now()})
	}
	require.NoError(t, st.RecordCreatedVMs(context.Background(), vms))
}

func fixedClock(now time.Time) Option {
	return WithClock(func() time.Time { return now })
}
