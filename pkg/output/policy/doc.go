// Package policy evaluates a finished report against user-defined fail-on
// rules to decide a CI/CD pass or fail.
//
// # Policy File Format
//
//	version: "1.0"
//	name: "production-gate"
//
//	fail_on:
//	  findings:
//	    total: 20          # Fail if more than 20 findings
//	    critical: 0        # Fail on any critical finding
//	    high: 2            # Fail if more than 2 high findings
//	  kinds:
//	    - JWT_NONE_ALG     # Fail on any finding of this kind
//	  risk_level: HIGH     # Fail when the report's risk level is HIGH or worse
//	  severity_score_above: 15
//	  probe_errors: true   # Fail when any probe failed
//
//	ignore:
//	  kinds:
//	    - MISSING_SECURITY_HEADER
//	  endpoints:
//	    - "https://example.com/health"
//
// # Usage
//
//	p, err := policy.LoadPolicy("policy.yaml")
//	if err != nil {
//	    return err
//	}
//	result := p.Evaluate(rep)
//	if !result.Pass {
//	    os.Exit(result.ExitCode)
//	}
//
// A single Policy may be evaluated from multiple goroutines.
package policy
