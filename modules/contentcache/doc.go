// Package contentcache provides the session-wide content read model.
//
// The cache is the single source of truth for hydrated documents, taxonomy
// entries, creator profiles, and per-hub listing snapshots. Hydration agents
// are its only writers; navigation and rendering code are its readers. All
// reads are synchronous, non-blocking, and return defensive clones.
package contentcache
