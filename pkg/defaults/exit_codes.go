package defaults

// Exit codes for the CLI.
const (
	ExitSuccess      = 0 // Clean exit, policy satisfied
	ExitPolicyFailed = 1 // Findings exceeded the fail-on policy, or the scan could not run
	ExitUserError    = 2 // Invalid arguments
)
