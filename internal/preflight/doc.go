// Package preflight checks that the host can run termsearch before the
// index is opened.
//
// The checks cover:
//   - Write access to the data directory (and the spool directory if enabled)
//   - Free disk space under the data directory (minimum 100MB)
//   - The open file limit (Bleve keeps one descriptor per segment)
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, preflight.Targets{DataDir: dir})
//	if checker.HasCriticalFailures(results) {
//	    // refuse to start
//	}
package preflight
