// Package model defines the record shapes persisted by the archive.
//
// Conventions:
//   - Timestamps: int64 microseconds since Unix epoch
//   - IDs: uuid.UUID, derived from the record contents so replays are idempotent
//   - Payloads: the raw JSON value exactly as it arrived
package model
