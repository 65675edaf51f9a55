// Package writer archives bus events into PostgreSQL.
//
// EventWriter reads from an events.Subscription buffer, turns each event
// into a model.EventRecord and inserts batches with pgx.Batch. Record ids
// are derived from the record contents, so ON CONFLICT DO NOTHING turns a
// retried batch into a no-op and the conflict count shows up in the stats.
package writer
