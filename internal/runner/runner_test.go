package runner

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTask struct {
	name     string
	schedule string
	timeout  time.Duration
	runFn    func(ctx context.Context) error
}

func (t *fakeTask) Name() string           { return t.name }
func (t *fakeTask) Schedule() string       { return t.schedule }
func (t *fakeTask) Timeout() time.Duration { return t.timeout }

func (t *fakeTask) Run(ctx context.Context) error {
	if t.runFn != nil {
		return t.runFn(ctx)
	}
	return nil
}

func quietRunner(registry *TaskRegistry) *Runner {
	r := NewRunner(registry)
	r.SetLogger(log.New(io.Discard, "", 0))
	return r
}

func TestTaskRegistry(t *testing.T) {
	registry := NewTaskRegistry()
	registry.Register(&fakeTask{name: "beta"})
	registry.Register(&fakeTask{name: "alpha"})

	task, ok := registry.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", task.Name())

	_, ok = registry.Get("missing")
	assert.False(t, ok)

	var names []string
	for _, task := range registry.All() {
		names = append(names, task.Name())
	}
	assert.Equal(t, []string{"beta", "alpha"}, names, "registration order is preserved")
}

func TestTaskRegistryReplace(t *testing.T) {
	registry := NewTaskRegistry()
	registry.Register(&fakeTask{name: "export", schedule: "old"})
	registry.Register(&fakeTask{name: "export", schedule: "new"})

	require.Len(t, registry.All(), 1)
	task, _ := registry.Get("export")
	assert.Equal(t, "new", task.Schedule())
}

func TestExecuteTaskAppliesTimeout(t *testing.T) {
	var sawDeadline bool
	task := &fakeTask{
		name:    "probe",
		timeout: time.Minute,
		runFn: func(ctx context.Context) error {
			_, sawDeadline = ctx.Deadline()
			return nil
		},
	}

	r := quietRunner(NewTaskRegistry())
	r.executeTask(context.Background(), task)
	assert.True(t, sawDeadline, "tasks run under a deadline")
}

func TestExecuteTaskSurvivesFailure(t *testing.T) {
	task := &fakeTask{
		name:    "flaky",
		timeout: time.Minute,
		runFn: func(ctx context.Context) error {
			return errors.New("boom")
		},
	}

	r := quietRunner(NewTaskRegistry())
	r.executeTask(context.Background(), task)
	// Nothing to assert beyond not panicking; failures are logged and
	// the next slot still fires.
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	registry := NewTaskRegistry()
	registry.Register(&fakeTask{name: "bad", schedule: "not a cron spec", timeout: time.Minute})

	r := quietRunner(registry)
	err := r.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestStartReturnsOnContextCancel(t *testing.T) {
	registry := NewTaskRegistry()
	// Scheduled far enough out that the task never fires during the test
	registry.Register(&fakeTask{name: "idle", schedule: "0 0 5 1 1 *", timeout: time.Minute})

	r := quietRunner(registry)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop after context cancellation")
	}
}

func TestRunOnce(t *testing.T) {
	var ran bool
	registry := NewTaskRegistry()
	registry.Register(&fakeTask{
		name:    "export",
		timeout: time.Minute,
		runFn: func(ctx context.Context) error {
			ran = true
			return nil
		},
	})

	r := quietRunner(registry)
	require.NoError(t, r.RunOnce(context.Background(), "export"))
	assert.True(t, ran)

	err := r.RunOnce(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown task")
}
