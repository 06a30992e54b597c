package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of an async scan.
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

func (s TaskStatus) isTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// Task is one async tool invocation. Arguments are not retained.
type Task struct {
	mu sync.RWMutex

	ID        string
	Tool      string
	CreatedAt time.Time

	status    TaskStatus
	message   string
	updatedAt time.Time
	result    jsontext.Value
	err       string

	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger
}

// SetMessage updates the progress message of a running task. A nil task
// (sync mode) ignores it.
func (t *Task) SetMessage(msg string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.isTerminal() {
		return
	}
	t.message = msg
	t.updatedAt = time.Now()
}

// finish moves the task into a terminal state once. Later calls are no-ops,
// so a Fail racing a Cancel keeps the cancellation.
func (t *Task) finish(status TaskStatus, msg string, result jsontext.Value, errMsg string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.isTerminal() {
		return false
	}
	t.status = status
	t.message = msg
	t.result = result
	t.err = errMsg
	t.updatedAt = time.Now()
	if t.cancel != nil {
		t.cancel()
	}
	close(t.done)
	return true
}

// Complete stores the result.
func (t *Task) Complete(result jsontext.Value) {
	if t.finish(TaskStatusCompleted, "completed", result, "") {
		t.logger.Debug("mcp task completed", slog.String("task_id", t.ID), slog.Int("result_bytes", len(result)))
	}
}

// Fail records errMsg.
func (t *Task) Fail(errMsg string) {
	if t.finish(TaskStatusFailed, "failed: "+errMsg, nil, errMsg) {
		t.logger.Warn("mcp task failed", slog.String("task_id", t.ID), slog.String("error", errMsg))
	}
}

// Cancel stops a running task.
func (t *Task) Cancel() {
	if t.finish(TaskStatusCancelled, "cancelled by user", nil, "") {
		t.logger.Info("mcp task cancelled", slog.String("task_id", t.ID))
	}
}

// WaitFor blocks until the task ends, ctx is done, or wait elapses.
func (t *Task) WaitFor(ctx context.Context, wait time.Duration) {
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-t.done:
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Snapshot returns a consistent copy for serialization.
func (t *Task) Snapshot() TaskSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := TaskSnapshot{
		ID:        t.ID,
		Tool:      t.Tool,
		Status:    t.status,
		Message:   t.message,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.updatedAt,
		Error:     t.err,
	}
	if t.status == TaskStatusCompleted {
		snap.Result = t.result
	}
	return snap
}

// TaskSnapshot is the JSON view of a Task.
type TaskSnapshot struct {
	ID        string         `json:"task_id"`
	Tool      string         `json:"tool"`
	Status    TaskStatus     `json:"status"`
	Message   string         `json:"message"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Result    jsontext.Value `json:"result,omitzero"`
	Error     string         `json:"error,omitempty"`
}

const (
	// taskTTL is how long finished tasks are kept.
	taskTTL = 30 * time.Minute

	cleanupInterval = 5 * time.Minute

	maxActiveTasks = 20

	// maxTaskDuration hard-cancels runaway scans.
	maxTaskDuration = 30 * time.Minute

	stopDrainTimeout = 10 * time.Second
)

// ErrTooManyTasks is returned by Create when the active-task cap is hit.
var ErrTooManyTasks = errors.New("mcpserver: too many active tasks")

// TaskManager tracks async tasks and expires finished ones.
type TaskManager struct {
	mu     sync.RWMutex
	tasks  map[string]*Task
	wg     sync.WaitGroup
	stop   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// NewTaskManager starts the cleanup goroutine. Call Stop to end it.
func NewTaskManager(logger *slog.Logger) *TaskManager {
	if logger == nil {
		logger = slog.Default()
	}
	tm := &TaskManager{
		tasks:  make(map[string]*Task),
		stop:   make(chan struct{}),
		logger: logger,
	}
	go tm.cleanupLoop()
	return tm
}

// Stop cancels every running task, waits up to 10s for them to exit and
// ends the cleanup goroutine. Safe to call more than once.
func (tm *TaskManager) Stop() {
	tm.once.Do(func() {
		tm.cancelAll()
		done := make(chan struct{})
		go func() {
			tm.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(stopDrainTimeout):
		}
		close(tm.stop)
	})
}

// Create registers a running task. The returned context is cancelled when
// the task finishes, is cancelled, or exceeds maxTaskDuration.
func (tm *TaskManager) Create(parent context.Context, tool string) (*Task, context.Context, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if active := tm.activeLocked(); active >= maxActiveTasks {
		return nil, nil, fmt.Errorf("%w (%d/%d)", ErrTooManyTasks, active, maxActiveTasks)
	}

	ctx, cancel := context.WithTimeout(parent, maxTaskDuration)
	now := time.Now()
	task := &Task{
		ID:        "task_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		Tool:      tool,
		CreatedAt: now,
		status:    TaskStatusRunning,
		message:   "starting",
		updatedAt: now,
		cancel:    cancel,
		done:      make(chan struct{}),
		logger:    tm.logger,
	}
	tm.tasks[task.ID] = task
	tm.logger.Debug("mcp task created", slog.String("task_id", task.ID), slog.String("tool", tool))
	return task, ctx, nil
}

// Get returns the task or nil.
func (tm *TaskManager) Get(id string) *Task {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.tasks[id]
}

// List returns snapshots, optionally filtered by status.
func (tm *TaskManager) List(statusFilter ...TaskStatus) []TaskSnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	snapshots := make([]TaskSnapshot, 0, len(tm.tasks))
	for _, t := range tm.tasks {
		snap := t.Snapshot()
		if len(statusFilter) > 0 && !containsStatus(statusFilter, snap.Status) {
			continue
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots
}

func containsStatus(list []TaskStatus, s TaskStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ActiveCount returns the number of running tasks.
func (tm *TaskManager) ActiveCount() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.activeLocked()
}

func (tm *TaskManager) activeLocked() int {
	n := 0
	for _, t := range tm.tasks {
		t.mu.RLock()
		s := t.status
		t.mu.RUnlock()
		if !s.isTerminal() {
			n++
		}
	}
	return n
}

func (tm *TaskManager) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-tm.stop:
			return
		case <-ticker.C:
			tm.cleanup(time.Now())
		}
	}
}

// cleanup drops tasks that finished more than taskTTL before now.
func (tm *TaskManager) cleanup(now time.Time) int {
	cutoff := now.Add(-taskTTL)
	tm.mu.Lock()
	defer tm.mu.Unlock()
	removed := 0
	for id, t := range tm.tasks {
		t.mu.RLock()
		expired := t.status.isTerminal() && t.updatedAt.Before(cutoff)
		t.mu.RUnlock()
		if expired {
			delete(tm.tasks, id)
			removed++
		}
	}
	if removed > 0 {
		tm.logger.Debug("mcp task cleanup", slog.Int("removed", removed), slog.Int("remaining", len(tm.tasks)))
	}
	return removed
}

func (tm *TaskManager) cancelAll() {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	for _, t := range tm.tasks {
		t.Cancel()
	}
}
