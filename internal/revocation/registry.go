package revocation

import (
	"context"
	"time"
)

// TimestampLayout is the UTC layout used for ledger timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Entry is one revoked certificate.
type Entry struct {
	Serial    string `json:"serial"`
	RevokedBy string `json:"revoked_by"`
	Timestamp string `json:"timestamp"`
}

// Ledger is the persisted document.
type Ledger struct {
	Revoked []Entry `json:"revoked"`
}

// Registry is an append-only set of revoked certificate serials.
type Registry interface {
	// Append adds entry unless its serial is already present. It reports
	// whether the entry was added; false means "already revoked".
	Append(ctx context.Context, entry Entry) (bool, error)

	// Contains reports whether serial has been revoked.
	Contains(ctx context.Context, serial string) (bool, error)

	// List returns all entries in insertion order.
	List(ctx context.Context) ([]Entry, error)
}

// NewEntry builds an entry stamped with now in UTC.
func NewEntry(serial, revokedBy string, now time.Time) Entry {
	if revokedBy == "" {
		revokedBy = "unknown"
	}
	return Entry{
		Serial:    serial,
		RevokedBy: revokedBy,
		Timestamp: now.UTC().Format(TimestampLayout),
	}
}

func (l *Ledger) contains(serial string) bool {
	for _, e := range l.Revoked {
		if e.Serial == serial {
			return true
		}
	}
	return false
}

func normalize(entry Entry) Entry {
	if entry.RevokedBy == "" {
		entry.RevokedBy = "unknown"
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(TimestampLayout)
	}
	return entry
}
