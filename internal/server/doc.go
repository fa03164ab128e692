// Package server implements the HTTP listener for GitHub push webhooks.
//
// A single handler serves every path. For each request it:
//   - rejects anything but POST with 405
//   - reads the whole body (bounded by the configured payload limit)
//   - verifies X-Hub-Signature-256 unless the secret is still the placeholder
//   - parses the push event and, for the target branch only, dispatches the
//     update command without waiting for it
//
// Responses are deliberately coarse: any processing fault after the
// signature check is a plain 400. The outcome of the update itself is only
// visible in the log.
package server
