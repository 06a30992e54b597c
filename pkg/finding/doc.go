// Package finding provides the evidence model shared by every detector:
// severities, finding kinds and the Finding record itself.
//
// Detectors construct findings through New or MustNew so that kind,
// severity and description are validated once, at creation:
//
//	f := finding.MustNew(finding.KindBrokenAuth, finding.High,
//	    "Admin endpoint accessible without authentication: /admin",
//	    finding.WithEndpoint(url),
//	    finding.WithFix("Implement proper authentication checks on admin endpoints"))
package finding
