package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/waftester/vulnprobe/pkg/jsonutil"
)

// maxWaitSeconds caps the long-poll in get_task_status.
const maxWaitSeconds = 60

func (s *Server) registerAsyncTools() {
	s.addGetTaskStatusTool()
	s.addCancelTaskTool()
	s.addListTasksTool()
}

// ═══════════════════════════════════════════════════════════════════════════
// get_task_status
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addGetTaskStatusTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "get_task_status",
			Title: "Get Task Status",
			Description: `Poll an async scan started by scan_url over HTTP.

POLLING PATTERN:
1. scan_url returns {"task_id": "task_…", "status": "running"}
2. Call get_task_status with {"task_id": "task_…", "wait_seconds": 30}
3. "running" → call again. "completed" → the report summary is in "result". "failed" → see "error".

EXAMPLE: {"task_id": "task_a1b2c3d4e5f60718", "wait_seconds": 30}`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_id": map[string]any{
						"type":        "string",
						"description": "Task ID returned by scan_url.",
					},
					"wait_seconds": map[string]any{
						"type":        "integer",
						"description": "Block up to this many seconds for the task to finish.",
						"minimum":     0,
						"maximum":     maxWaitSeconds,
					},
				},
				"required": []string{"task_id"},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				Title:          "Get Task Status",
			},
		},
		s.handleGetTaskStatus,
	)
}

func (s *Server) handleGetTaskStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		TaskID      string `json:"task_id"`
		WaitSeconds int    `json:"wait_seconds"`
	}
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.TaskID == "" {
		return errorResult(`task_id is required. Example: {"task_id": "task_a1b2c3d4e5f60718"}`), nil
	}

	task := s.tasks.Get(args.TaskID)
	if task == nil {
		return enrichedError(
			fmt.Sprintf("task %q not found; finished tasks expire after %s", args.TaskID, taskTTL),
			[]string{
				"Check the task_id (it starts with 'task_').",
				"Use 'list_tasks' to see active and recent tasks.",
				"Re-run scan_url if the task expired.",
			},
		), nil
	}
	task.WaitFor(ctx, time.Duration(min(args.WaitSeconds, maxWaitSeconds))*time.Second)
	return jsonResult(task.Snapshot())
}

// ═══════════════════════════════════════════════════════════════════════════
// cancel_task
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addCancelTaskTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:        "cancel_task",
			Title:       "Cancel Task",
			Description: `Cancel a running async scan. Finished tasks are left unchanged. EXAMPLE: {"task_id": "task_a1b2c3d4e5f60718"}`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_id": map[string]any{
						"type":        "string",
						"description": "The task ID to cancel.",
					},
				},
				"required": []string{"task_id"},
			},
			Annotations: &mcp.ToolAnnotations{
				IdempotentHint: true,
				Title:          "Cancel Task",
			},
		},
		s.handleCancelTask,
	)
}

func (s *Server) handleCancelTask(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		TaskID string `json:"task_id"`
	}
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	task := s.tasks.Get(args.TaskID)
	if task == nil {
		return enrichedError(fmt.Sprintf("task %q not found", args.TaskID),
			[]string{"Use 'list_tasks' to see all active tasks."}), nil
	}

	if snap := task.Snapshot(); snap.Status.isTerminal() {
		return jsonResult(map[string]any{
			"task_id": args.TaskID,
			"status":  snap.Status,
			"message": "task already finished: " + string(snap.Status),
		})
	}
	task.Cancel()
	return jsonResult(map[string]any{
		"task_id": args.TaskID,
		"status":  TaskStatusCancelled,
		"message": "task cancelled",
	})
}

// ═══════════════════════════════════════════════════════════════════════════
// list_tasks
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addListTasksTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:        "list_tasks",
			Title:       "List Tasks",
			Description: `List async scans with their status. Optional filter: {"status": "running"}.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"status": map[string]any{
						"type": "string",
						"enum": []string{"running", "completed", "failed", "cancelled"},
					},
				},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				Title:          "List Tasks",
			},
		},
		s.handleListTasks,
	)
}

func (s *Server) handleListTasks(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Status string `json:"status"`
	}
	_ = parseArgs(req, &args)

	var snapshots []TaskSnapshot
	if args.Status != "" {
		snapshots = s.tasks.List(TaskStatus(args.Status))
	} else {
		snapshots = s.tasks.List()
	}
	// Result payloads can be large; the listing only needs status.
	for i := range snapshots {
		snapshots[i].Result = nil
	}
	return jsonResult(map[string]any{
		"tasks":        snapshots,
		"total":        len(snapshots),
		"active_count": s.tasks.ActiveCount(),
	})
}

// asyncTaskResponse is returned immediately by an async tool.
type asyncTaskResponse struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	Tool     string `json:"tool"`
	Message  string `json:"message"`
	NextStep string `json:"next_step"`
}

// launchAsync runs work in a task goroutine and returns the task_id. In
// sync mode it runs work inline and returns its result directly.
func (s *Server) launchAsync(ctx context.Context, tool string, work func(ctx context.Context, task *Task) (any, error)) (*mcp.CallToolResult, error) {
	if s.IsSyncMode() {
		v, err := work(ctx, nil)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return jsonResult(v)
	}

	// The task outlives the request; TaskManager owns its cancellation.
	task, taskCtx, err := s.tasks.Create(context.Background(), tool)
	if err != nil {
		if errors.Is(err, ErrTooManyTasks) {
			return enrichedError(err.Error(), []string{
				"Wait for running scans to finish or cancel them with 'cancel_task'.",
			}), nil
		}
		return errorResult(err.Error()), nil
	}

	s.tasks.wg.Add(1)
	go func() {
		defer s.tasks.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				task.Fail(fmt.Sprintf("internal panic: %v", r))
			}
		}()
		v, err := work(taskCtx, task)
		if err != nil {
			task.Fail(err.Error())
			return
		}
		data, err := jsonutil.Marshal(v)
		if err != nil {
			task.Fail("encoding result: " + err.Error())
			return
		}
		task.Complete(data)
	}()

	return jsonResult(asyncTaskResponse{
		TaskID:   task.ID,
		Status:   string(TaskStatusRunning),
		Tool:     tool,
		Message:  tool + " started; poll get_task_status for the result",
		NextStep: fmt.Sprintf(`Call get_task_status with {"task_id": "%s", "wait_seconds": 30}.`, task.ID),
	})
}
