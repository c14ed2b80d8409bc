package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp string `json:"ts"`   // RFC3339 with microseconds.
	ID        string `json:"id"`   // Random UUID for this entry.
	User      string `json:"user"` // Identity performing the action.
	Operation string `json:"op"`   // Operation name.

	// Optional fields depending on operation.
	Serial     string   `json:"serial,omitempty"`      // For create/revoke.
	RecordID   string   `json:"record_id,omitempty"`   // For seal/open/update/delete/export.
	Files      []string `json:"files,omitempty"`       // For import.
	Valid      *bool    `json:"valid,omitempty"`       // For open/import.
	Revoked    *bool    `json:"revoked,omitempty"`     // For open/import.
	OutputPath string   `json:"output_path,omitempty"` // For export/export-key.
	Count      int      `json:"count,omitempty"`       // For import.
	Encrypted  bool     `json:"encrypted,omitempty"`   // For export-key.
}

// Log appends an entry to the audit log at path.
// If logging fails, it does not return an error.
// Operations should not fail just because audit logging failed.
func Log(path string, entry Entry) {
	if path == "" {
		return
	}

	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	_, _ = f.Write(append(data, '\n'))
}

// LogWithUser returns an entry with the operation and user filled in.
func LogWithUser(op, user string) Entry {
	return Entry{Operation: op, User: user}
}

// Bool returns a pointer to b, for the optional verdict fields.
func Bool(b bool) *bool {
	return &b
}

// ReadEntries reads all entries from the audit log at path.
// Returns an empty slice if the log doesn't exist.
func ReadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return ParseEntries(data)
}

// ParseEntries parses JSON Lines data into audit entries.
// Malformed lines are silently skipped.
func ParseEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	start := 0

	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1

			if len(line) == 0 {
				continue
			}

			var entry Entry
			if err := json.Unmarshal(line, &entry); err != nil {
				continue
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}
