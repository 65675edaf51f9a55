// Package connection implements the Rainwave websocket session engine.
//
// The Manager:
//   - Opens one socket per station and authenticates with user id + API key
//   - Queues outbound requests and sends them in FIFO order once ready
//   - Correlates replies by message id, independent of arrival order
//   - Requeues timed-out requests and reconnects after a fixed delay
//   - Sends a keepalive ping every 45s while ready
//   - Publishes every known top-level key of every frame to an events.Bus
package connection
