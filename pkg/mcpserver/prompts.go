package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(
		&mcp.Prompt{
			Name:        "security_review",
			Description: "Scan a target and turn the report into a prioritized remediation plan.",
			Arguments: []*mcp.PromptArgument{
				{Name: "target", Description: "Target URL (e.g. https://staging.example.com)", Required: true},
				{Name: "scan_type", Description: "full, quick or api-only", Required: false},
			},
		},
		func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			target := req.Params.Arguments["target"]
			if target == "" {
				return nil, fmt.Errorf("'target' argument is required")
			}
			scanType := req.Params.Arguments["scan_type"]
			if scanType == "" {
				scanType = "full"
			}

			return &mcp.GetPromptResult{
				Description: "Security review: " + target,
				Messages: []*mcp.PromptMessage{
					{
						Role: "user",
						Content: &mcp.TextContent{
							Text: fmt.Sprintf(`Review the security of %s. Only proceed if I am authorized to test it.

1. Run scan_url with {"target": "%s", "scan_type": "%s"}. If it returns a task_id, poll get_task_status with wait_seconds=30 until it completes.
2. Group the findings by kind. Explain each CRITICAL and HIGH finding in one or two sentences, citing its endpoint.
3. Call get_report with format "markdown" if you need the evidence for a finding.
4. Produce a remediation plan ordered by severity, using each finding's fix.
5. Note any probe_errors: those checks did not run and their absence of findings proves nothing.`, target, target, scanType),
						},
					},
				},
			}, nil
		},
	)
}
