package events

// Key names a top-level message key or an engine lifecycle signal.
type Key string

// Lifecycle keys published by the engine itself.
const (
	KeyError          Key = "error"
	KeyErrorClear     Key = "sdk_error_clear"
	KeyScheduleSynced Key = "sdk_schedule_synced"
	KeyException      Key = "sdk_exception"
	KeyState          Key = "sdk_state"
)

// Message keys the service sends, either as replies or as broadcasts.
const (
	KeyAuthOK    Key = "wsok"
	KeyAuthError Key = "wserror"
	KeyPing      Key = "ping"
	KeyPong      Key = "pong"
	KeyPongOK    Key = "pongConfirm"

	KeySchedCurrent    Key = "sched_current"
	KeySchedNext       Key = "sched_next"
	KeySchedHistory    Key = "sched_history"
	KeySyncResult      Key = "sync_result"
	KeyAlreadyVoted    Key = "already_voted"
	KeyLiveVoting      Key = "live_voting"
	KeyAllStationsInfo Key = "all_stations_info"
	KeyAlbumDiff       Key = "album_diff"
	KeyUser            Key = "user"
	KeyRequests        Key = "requests"
	KeyRequestLine     Key = "request_line"

	KeyRateResult                 Key = "rate_result"
	KeyVoteResult                 Key = "vote_result"
	KeyRate                       Key = "rate"
	KeyVote                       Key = "vote"
	KeyClearRating                Key = "clear_rating"
	KeyFaveSong                   Key = "fave_song"
	KeyFaveAlbum                  Key = "fave_album"
	KeyFaveAllSongs               Key = "fave_all_songs"
	KeyOrderRequests              Key = "order_requests"
	KeyPauseRequestsQueueResult   Key = "pause_requests_queue_result"
	KeyUnpauseRequestsQueueResult Key = "unpause_requests_queue_result"
	KeyRequestFavoritedResult     Key = "request_favorited_songs_result"
	KeyRequestUnratedResult       Key = "request_unrated_songs_result"

	KeyAlbum                Key = "album"
	KeyAllAlbums            Key = "all_albums"
	KeyAllArtists           Key = "all_artists"
	KeyAllFaves             Key = "all_faves"
	KeyAllGroups            Key = "all_groups"
	KeyAllSongs             Key = "all_songs"
	KeyArtist               Key = "artist"
	KeyGroup                Key = "group"
	KeyInfoAll              Key = "info_all"
	KeyListener             Key = "listener"
	KeyPlaybackHistory      Key = "playback_history"
	KeyAlbums               Key = "albums"
	KeyArtists              Key = "artists"
	KeySongs                Key = "songs"
	KeySong                 Key = "song"
	KeyStationSongCount     Key = "station_song_count"
	KeyStations             Key = "stations"
	KeyTop100               Key = "top_100"
	KeyUnratedSongs         Key = "unrated_songs"
	KeyUserInfo             Key = "user_info"
	KeyUserRecentVotes      Key = "user_recent_votes"
	KeyUserRequestedHistory Key = "user_requested_history"
)

var vocabulary = map[Key]struct{}{}

func init() {
	for _, k := range []Key{
		KeyError, KeyErrorClear, KeyScheduleSynced, KeyException, KeyState,
		KeyAuthOK, KeyAuthError, KeyPing, KeyPong, KeyPongOK,
		KeySchedCurrent, KeySchedNext, KeySchedHistory, KeySyncResult,
		KeyAlreadyVoted, KeyLiveVoting, KeyAllStationsInfo, KeyAlbumDiff,
		KeyUser, KeyRequests, KeyRequestLine,
		KeyRateResult, KeyVoteResult, KeyRate, KeyVote, KeyClearRating,
		KeyFaveSong, KeyFaveAlbum, KeyFaveAllSongs, KeyOrderRequests,
		KeyPauseRequestsQueueResult, KeyUnpauseRequestsQueueResult,
		KeyRequestFavoritedResult, KeyRequestUnratedResult,
		KeyAlbum, KeyAllAlbums, KeyAllArtists, KeyAllFaves, KeyAllGroups,
		KeyAllSongs, KeyArtist, KeyGroup, KeyInfoAll, KeyListener,
		KeyPlaybackHistory, KeyAlbums, KeyArtists, KeySongs, KeySong,
		KeyStationSongCount, KeyStations, KeyTop100, KeyUnratedSongs,
		KeyUserInfo, KeyUserRecentVotes, KeyUserRequestedHistory,
	} {
		vocabulary[k] = struct{}{}
	}
}

// Lookup returns the Key for a wire name. Unknown names report false.
func Lookup(name string) (Key, bool) {
	k := Key(name)
	_, ok := vocabulary[k]
	return k, ok
}

// Known reports whether k is part of the vocabulary.
func (k Key) Known() bool {
	_, ok := vocabulary[k]
	return ok
}

// Lifecycle reports whether k is generated by the engine rather than the
// service. "error" is both.
func (k Key) Lifecycle() bool {
	switch k {
	case KeyError, KeyErrorClear, KeyScheduleSynced, KeyException, KeyState:
		return true
	}
	return false
}
