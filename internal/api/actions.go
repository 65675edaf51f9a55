package api

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rickgao/rainwave-sync/internal/connection"
	"github.com/rickgao/rainwave-sync/internal/events"
)

// Mutating actions are never retried: a timeout does not tell whether the
// service applied them.

// Rate rates a song. The rating is clamped and rounded with ValidRating.
func (c *Client) Rate(ctx context.Context, songID int64, rating float64) (RateResult, error) {
	return doKeys[RateResult](ctx, c, "rate", connection.Params{
		"song_id": songID,
		"rating":  ValidRating(rating),
	}, events.KeyRateResult, events.KeyRate)
}

// ClearRating removes the user's rating of a song.
func (c *Client) ClearRating(ctx context.Context, songID int64) (RateResult, error) {
	return Do[RateResult](ctx, c, "clear_rating", events.KeyClearRating, connection.Params{"song_id": songID})
}

// FaveSong sets or clears a song fave.
func (c *Client) FaveSong(ctx context.Context, songID int64, fave bool) (FaveResult, error) {
	return Do[FaveResult](ctx, c, "fave_song", events.KeyFaveSong, connection.Params{"song_id": songID, "fave": fave})
}

// FaveAlbum sets or clears an album fave.
func (c *Client) FaveAlbum(ctx context.Context, albumID int64, fave bool) (FaveResult, error) {
	return Do[FaveResult](ctx, c, "fave_album", events.KeyFaveAlbum, connection.Params{"album_id": albumID, "fave": fave})
}

// FaveAllSongs sets or clears the fave on every song of an album.
func (c *Client) FaveAllSongs(ctx context.Context, albumID int64, fave bool) (FaveResult, error) {
	return Do[FaveResult](ctx, c, "fave_all_songs", events.KeyFaveAllSongs, connection.Params{"album_id": albumID, "fave": fave})
}

// Vote votes for an election entry, replacing any earlier vote.
func (c *Client) Vote(ctx context.Context, entryID int64) (VoteResult, error) {
	return doKeys[VoteResult](ctx, c, "vote", connection.Params{"entry_id": entryID}, events.KeyVoteResult, events.KeyVote)
}

// Request adds a song to the user's request queue.
func (c *Client) Request(ctx context.Context, songID int64) (json.RawMessage, error) {
	return Do[json.RawMessage](ctx, c, "request", events.KeyRequests, connection.Params{"song_id": songID})
}

// DeleteRequest removes a song from the user's request queue.
func (c *Client) DeleteRequest(ctx context.Context, songID int64) (json.RawMessage, error) {
	return Do[json.RawMessage](ctx, c, "delete_request", events.KeyRequests, connection.Params{"song_id": songID})
}

// ClearRequests empties the user's request queue.
func (c *Client) ClearRequests(ctx context.Context) (json.RawMessage, error) {
	return Do[json.RawMessage](ctx, c, "clear_requests", events.KeyRequests, nil)
}

// ClearRequestsOnCooldown removes queued requests that are on cooldown.
func (c *Client) ClearRequestsOnCooldown(ctx context.Context) (json.RawMessage, error) {
	return Do[json.RawMessage](ctx, c, "clear_requests_on_cooldown", events.KeyRequests, nil)
}

// OrderRequests reorders the user's request queue.
func (c *Client) OrderRequests(ctx context.Context, songIDs []int64) (json.RawMessage, error) {
	ids := make([]string, len(songIDs))
	for i, id := range songIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return Do[json.RawMessage](ctx, c, "order_requests", events.KeyOrderRequests, connection.Params{"order": strings.Join(ids, ",")})
}

// RequestFavoritedSongs fills the request queue with faved songs.
// limit <= 0 leaves the count to the service.
func (c *Client) RequestFavoritedSongs(ctx context.Context, limit int) (ActionResult, error) {
	return Do[ActionResult](ctx, c, "request_favorited_songs", events.KeyRequestFavoritedResult, limitParams(limit))
}

// RequestUnratedSongs fills the request queue with unrated songs.
func (c *Client) RequestUnratedSongs(ctx context.Context, limit int) (ActionResult, error) {
	return Do[ActionResult](ctx, c, "request_unrated_songs", events.KeyRequestUnratedResult, limitParams(limit))
}

// PauseRequestQueue stops the user's requests from being picked.
func (c *Client) PauseRequestQueue(ctx context.Context) (ActionResult, error) {
	return Do[ActionResult](ctx, c, "pause_request_queue", events.KeyPauseRequestsQueueResult, nil)
}

// UnpauseRequestQueue resumes the user's request queue.
func (c *Client) UnpauseRequestQueue(ctx context.Context) (ActionResult, error) {
	return Do[ActionResult](ctx, c, "unpause_request_queue", events.KeyUnpauseRequestsQueueResult, nil)
}

func limitParams(limit int) connection.Params {
	if limit <= 0 {
		return nil
	}
	return connection.Params{"limit": limit}
}
