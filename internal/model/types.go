package model

import (
	"strconv"

	"github.com/google/uuid"
)

// Namespace seeds the name-based ids of archived records.
var Namespace = uuid.MustParse("6f1c2c8e-4b0a-5e53-9c1e-72a1a3f0d5b4")

// Source of an archived record.
const (
	SourcePush     = "push"     // Broadcast or reply received on the socket
	SourceSnapshot = "snapshot" // Result of a poller request
)

// EventRecord is one archived bus event or snapshot.
type EventRecord struct {
	ID         uuid.UUID // Primary key, see RecordID
	Instance   string    // Writing process
	Station    int       // Station id (sid)
	Source     string    // SourcePush or SourceSnapshot
	Key        string    // Message key or polled action
	Payload    []byte    // Raw JSON payload; may be empty for signals
	ErrorKind  string    // Error classification for lifecycle errors
	ScheduleID int64     // Last known schedule id when received
	ReceivedAt int64     // Local receive time (µs since epoch)
}

// RecordID derives a stable id from what identifies a record, so a batch
// that is retried after a partial failure does not insert duplicates.
func RecordID(station int, key string, receivedAt int64, payload []byte) uuid.UUID {
	name := make([]byte, 0, len(key)+len(payload)+32)
	name = strconv.AppendInt(name, int64(station), 10)
	name = append(name, '|')
	name = append(name, key...)
	name = append(name, '|')
	name = strconv.AppendInt(name, receivedAt, 10)
	name = append(name, '|')
	name = append(name, payload...)
	return uuid.NewSHA1(Namespace, name)
}
