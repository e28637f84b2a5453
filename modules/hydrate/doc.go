// Package hydrate moves content from render payloads and the upstream store
// into the session content cache.
//
// Four agents cover the distinct arrival paths: direct (documents already in
// the render payload), batch (deduplicated backfill for stub lists), index
// (listing snapshots), and universal (the full bootstrap payload). Each
// mount's payload is applied exactly once; re-renders are free. Hydration
// failures degrade the cache, never the page, so fetch errors are logged and
// swallowed.
package hydrate
