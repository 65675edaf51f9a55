// Package api is the per-endpoint catalog over the session engine.
//
// Each method builds one request, sends it through a Caller (normally a
// connection.Manager) and decodes the key the reply arrives under. Library
// records come back as raw JSON; only action results and the few payloads
// the daemon inspects are typed.
//
// Read-only calls retry engine timeouts and disconnects. Mutations do not.
package api
