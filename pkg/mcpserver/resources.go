package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/waftester/vulnprobe/pkg/defaults"
	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/headers"
	"github.com/waftester/vulnprobe/pkg/jsonutil"
)

// Resource URIs.
const (
	uriVersion      = "vulnprobe://version"
	uriHeaderPolicy = "vulnprobe://header-policy"
	uriFindingKinds = "vulnprobe://finding-kinds"
	uriRecentScans  = "vulnprobe://scans/recent"
)

func (s *Server) registerResources() {
	s.addJSONResource(uriVersion, "Version", "Server version and tool inventory.", func() any {
		return map[string]any{
			"name":       defaults.ToolName,
			"version":    defaults.Version,
			"tools":      []string{"scan_url", "scan_raw", "get_report", "get_task_status", "cancel_task", "list_tasks"},
			"scan_types": []string{"full", "quick", "api-only"},
			"formats":    []string{"json", "markdown", "text"},
		}
	})

	s.addJSONResource(uriHeaderPolicy, "Header Policy",
		"Security headers checked by every scan, with HSTS minimum age and expected values.",
		func() any {
			return map[string]any{
				"default":  headers.DefaultPolicy().Rules(),
				"extended": headers.ExtendedPolicy().Rules(),
			}
		})

	s.addJSONResource(uriFindingKinds, "Finding Kinds",
		"Every finding kind and the severity weights used for scoring.",
		func() any {
			weights := make(map[finding.Severity]int, len(finding.Severities))
			for _, sev := range finding.Severities {
				weights[sev] = sev.Weight()
			}
			return map[string]any{
				"kinds":            finding.Kinds,
				"severity_weights": weights,
				"risk_thresholds": map[string]int{
					string(finding.Critical): 10,
					string(finding.High):     6,
					string(finding.Medium):   3,
				},
			}
		})

	s.addJSONResource(uriRecentScans, "Recent Scans",
		"The most recent scans run by this server, newest first.",
		func() any { return s.config.Recent.List() })
}

func (s *Server) addJSONResource(uri, name, desc string, build func() any) {
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         uri,
			Name:        name,
			Description: desc,
			MIMEType:    "application/json",
		},
		func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			data, err := jsonutil.MarshalIndent(build(), "", "  ")
			if err != nil {
				return nil, fmt.Errorf("rendering %s: %w", uri, err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: uri, MIMEType: "application/json", Text: string(data)},
				},
			}, nil
		},
	)
}
