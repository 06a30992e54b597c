// Package mcpserver exposes vulnprobe as a Model Context Protocol (MCP)
// server so AI assistants can run scans and read reports.
//
// # Capabilities
//
//   - Tools:     scan_url, scan_raw, get_report, plus the task tools
//     get_task_status, cancel_task and list_tasks
//   - Resources: the header policy, the finding catalogue and recent scans
//   - Prompts:   a guided security review of one target
//
// # Transports
//
//   - stdio: tools run synchronously; used by IDE integrations.
//   - HTTP:  streamable HTTP. scan_url returns a task_id immediately and the
//     client polls get_task_status.
//
// # Usage
//
//	srv := mcpserver.New(&mcpserver.Config{Engine: eng})
//	err := srv.RunStdio(ctx)
package mcpserver
