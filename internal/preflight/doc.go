// Package preflight provides readiness checks for the contract backend
// and local resources that Quill depends on.
//
// These checks run in two contexts:
//   - The convert command calls RunAll before starting a conversion.
//     If any check fails, the run aborts instead of failing mid-pipeline.
//   - The CLI "quill doctor" command uses the same checks to display health.
package preflight
