// Package poller implements the Snapshot Poller component.
//
// The Snapshot Poller:
//   - Issues a fixed list of read-only actions on every interval
//   - Sends them through the session engine, so they share its queue and reconnects
//   - Bounds requests in flight with an errgroup limit
//   - Hands each result to a SnapshotHandler (the archive in rwsync)
package poller
