package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rickgao/rainwave-sync/internal/events"
)

// snapshotActions are the read-only actions Snapshot accepts, with the key
// each one answers under.
var snapshotActions = map[string]events.Key{
	"request_line":           events.KeyRequestLine,
	"station_song_count":     events.KeyStationSongCount,
	"stations":               events.KeyStations,
	"info_all":               events.KeyInfoAll,
	"playback_history":       events.KeyPlaybackHistory,
	"top_100":                events.KeyTop100,
	"user_info":              events.KeyUserInfo,
	"user_recent_votes":      events.KeyUserRecentVotes,
	"user_requested_history": events.KeyUserRequestedHistory,
}

// SnapshotKey returns the reply key of a read-only action.
func SnapshotKey(action string) (events.Key, bool) {
	k, ok := snapshotActions[action]
	return k, ok
}

// Snapshot issues a read-only action and returns its payload. Retryable
// failures are retried; the action must be one SnapshotKey knows.
func (c *Client) Snapshot(ctx context.Context, action string) (json.RawMessage, error) {
	key, ok := snapshotActions[action]
	if !ok {
		return nil, fmt.Errorf("%q is not a read-only action", action)
	}
	return doWithRetry[json.RawMessage](ctx, c, action, key, nil)
}

// RequestLine lists the listeners waiting in the station's request line.
func (c *Client) RequestLine(ctx context.Context) ([]RequestLineEntry, error) {
	return doWithRetry[[]RequestLineEntry](ctx, c, "request_line", events.KeyRequestLine, nil)
}

// StationSongCount returns the number of songs on the station.
func (c *Client) StationSongCount(ctx context.Context) (int64, error) {
	return doWithRetry[int64](ctx, c, "station_song_count", events.KeyStationSongCount, nil)
}

// Stations lists every station.
func (c *Client) Stations(ctx context.Context) (json.RawMessage, error) {
	return doWithRetry[json.RawMessage](ctx, c, "stations", events.KeyStations, nil)
}

// InfoAll returns the now-playing summary of all stations.
func (c *Client) InfoAll(ctx context.Context) (json.RawMessage, error) {
	return doWithRetry[json.RawMessage](ctx, c, "info_all", events.KeyInfoAll, nil)
}

// PlaybackHistory lists the last songs played on the station.
func (c *Client) PlaybackHistory(ctx context.Context, p Page) (json.RawMessage, error) {
	return doWithRetry[json.RawMessage](ctx, c, "playback_history", events.KeyPlaybackHistory, paged(nil, p))
}

// UserInfo returns the authenticated user.
func (c *Client) UserInfo(ctx context.Context) (json.RawMessage, error) {
	return doWithRetry[json.RawMessage](ctx, c, "user_info", events.KeyUserInfo, nil)
}

// UserRecentVotes lists the user's recent election votes.
func (c *Client) UserRecentVotes(ctx context.Context, p Page) (json.RawMessage, error) {
	return doWithRetry[json.RawMessage](ctx, c, "user_recent_votes", events.KeyUserRecentVotes, paged(nil, p))
}

// UserRequestedHistory lists songs the user requested that have played.
func (c *Client) UserRequestedHistory(ctx context.Context, p Page) (json.RawMessage, error) {
	return doWithRetry[json.RawMessage](ctx, c, "user_requested_history", events.KeyUserRequestedHistory, paged(nil, p))
}
