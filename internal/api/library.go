package api

import (
	"context"
	"encoding/json"

	"github.com/rickgao/rainwave-sync/internal/connection"
	"github.com/rickgao/rainwave-sync/internal/events"
)

// Library records are returned as raw JSON; the engine does not model them.

// Album fetches one album with its songs.
func (c *Client) Album(ctx context.Context, id int64) (json.RawMessage, error) {
	return Do[json.RawMessage](ctx, c, "album", events.KeyAlbum, connection.Params{"id": id})
}

// Artist fetches one artist with their songs.
func (c *Client) Artist(ctx context.Context, id int64) (json.RawMessage, error) {
	return Do[json.RawMessage](ctx, c, "artist", events.KeyArtist, connection.Params{"id": id})
}

// Group fetches one song group.
func (c *Client) Group(ctx context.Context, id int64) (json.RawMessage, error) {
	return Do[json.RawMessage](ctx, c, "group", events.KeyGroup, connection.Params{"id": id})
}

// Song fetches one song.
func (c *Client) Song(ctx context.Context, id int64) (json.RawMessage, error) {
	return Do[json.RawMessage](ctx, c, "song", events.KeySong, connection.Params{"id": id})
}

// Listener fetches a listener's public profile.
func (c *Client) Listener(ctx context.Context, id int64) (json.RawMessage, error) {
	return Do[json.RawMessage](ctx, c, "listener", events.KeyListener, connection.Params{"id": id})
}

// AllAlbums lists every album on the station, one cursor page per call.
func (c *Client) AllAlbums(ctx context.Context) (json.RawMessage, error) {
	return Do[json.RawMessage](ctx, c, "all_albums_by_cursor", events.KeyAllAlbums, connection.Params{"noSearchable": true})
}

// AllArtists lists every artist in a single page.
func (c *Client) AllArtists(ctx context.Context) (json.RawMessage, error) {
	return Do[json.RawMessage](ctx, c, "all_artists", events.KeyAllArtists, connection.Params{"noSearchable": true})
}

// AllGroups lists every song group in a single page.
func (c *Client) AllGroups(ctx context.Context) (json.RawMessage, error) {
	return Do[json.RawMessage](ctx, c, "all_groups", events.KeyAllGroups, connection.Params{"noSearchable": true})
}

// AllSongs lists songs with the user's ratings. byRating orders by rating.
func (c *Client) AllSongs(ctx context.Context, p Page, byRating bool) (json.RawMessage, error) {
	params := paged(nil, p)
	if byRating {
		params["order"] = "rating"
	}
	return Do[json.RawMessage](ctx, c, "all_songs", events.KeyAllSongs, params)
}

// AllFaves lists the user's faved songs.
func (c *Client) AllFaves(ctx context.Context, p Page) (json.RawMessage, error) {
	return Do[json.RawMessage](ctx, c, "all_faves", events.KeyAllFaves, paged(nil, p))
}

// UnratedSongs lists songs the user has not rated.
func (c *Client) UnratedSongs(ctx context.Context, p Page) (json.RawMessage, error) {
	return Do[json.RawMessage](ctx, c, "unrated_songs", events.KeyUnratedSongs, paged(nil, p))
}

// Search matches albums, artists and songs by name.
func (c *Client) Search(ctx context.Context, query string) (SearchResult, error) {
	msg, err := c.Raw(ctx, "search", connection.Params{"search": query})
	if err != nil {
		return SearchResult{}, err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return SearchResult{}, err
	}
	var res SearchResult
	err = json.Unmarshal(data, &res)
	return res, err
}

// Top100 lists the station's highest rated songs.
func (c *Client) Top100(ctx context.Context) (json.RawMessage, error) {
	return Do[json.RawMessage](ctx, c, "top_100", events.KeyTop100, nil)
}
