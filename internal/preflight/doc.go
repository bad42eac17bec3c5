// Package preflight checks that a pagedex workspace can run before any
// document is touched.
//
// The package validates:
//   - the page-count and page-text tools resolve on PATH
//   - the source directory is readable and holds documents
//   - the build and index directories are writable
//   - free disk space under the build directory (minimum 100MB)
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New(preflight.WithOutput(os.Stdout))
//	results := checker.RunAll(ctx, target)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
