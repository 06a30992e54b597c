// Package report assembles detector outcomes into the final scan report.
//
// Build collects findings and probe errors, computes the scoring summary
// and stamps the scan ID and timing. A Report is treated as immutable once
// built: WithEnrichment returns a copy carrying the narrative assessment,
// and SortedFindings returns a new slice ordered most severe first.
package report
