package runner

import (
	"context"
	"time"
)

// Task represents a background task that can be scheduled
type Task interface {
	// Name returns the unique name of the task
	Name() string

	// Schedule returns the cron schedule expression for this task
	Schedule() string

	// Run executes the task
	Run(ctx context.Context) error

	// Timeout returns the maximum time this task should run
	Timeout() time.Duration
}

// TaskRegistry holds all registered tasks in registration order.
type TaskRegistry struct {
	order []string
	tasks map[string]Task
}

// NewTaskRegistry creates a new task registry
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{
		tasks: make(map[string]Task),
	}
}

// Register adds a task to the registry. Registering the same name twice
// replaces the earlier task.
func (r *TaskRegistry) Register(task Task) {
	if _, exists := r.tasks[task.Name()]; !exists {
		r.order = append(r.order, task.Name())
	}
	r.tasks[task.Name()] = task
}

// Get returns a task by name
func (r *TaskRegistry) Get(name string) (Task, bool) {
	task, exists := r.tasks[name]
	return task, exists
}

// All returns the registered tasks in registration order.
func (r *TaskRegistry) All() []Task {
	all := make([]Task, 0, len(r.order))
	for _, name := range r.order {
		all = append(all, r.tasks[name])
	}
	return all
}
