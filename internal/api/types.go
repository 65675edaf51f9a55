package api

import "encoding/json"

// Page selects a slice of a paged listing. Zero fields are omitted.
type Page struct {
	PerPage   int
	PageStart int
}

// ActionResult is the common shape of mutation replies
// (rate, fave_*, vote, pause/unpause, request_*_result).
type ActionResult struct {
	Success bool   `json:"success"`
	TLKey   string `json:"tl_key"`
	Text    string `json:"text"`
}

// RateResult is the reply to rate and clear_rating.
type RateResult struct {
	ActionResult
	SongID     int64   `json:"song_id"`
	RatingUser float64 `json:"rating_user"`
}

// FaveResult is the reply to fave_song, fave_album and fave_all_songs.
type FaveResult struct {
	ActionResult
	ID   int64 `json:"id"`
	Fave bool  `json:"fave"`
}

// VoteResult is the reply to vote.
type VoteResult struct {
	ActionResult
	EntryID int64 `json:"entry_id"`
	ElecID  int64 `json:"elec_id"`
}

// RequestLineEntry is one listener in the station's request line.
type RequestLineEntry struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Position int    `json:"position"`
	SongID   *int64 `json:"song_id"`
	Skip     bool   `json:"skip"`
}

// SearchResult is the reply to search.
type SearchResult struct {
	Albums  json.RawMessage `json:"albums"`
	Artists json.RawMessage `json:"artists"`
	Songs   json.RawMessage `json:"songs"`
}
