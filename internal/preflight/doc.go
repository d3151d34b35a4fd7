// Package preflight provides readiness checks for the filesystem paths and
// the object store that fieldtag depends on.
//
// These checks run in two contexts:
//   - The daemon runs them at startup and exposes them on /api/status.
//   - The archive reconciler calls the free-space check before extracting,
//     so a full disk fails fast instead of mid-extraction.
package preflight
