package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
	"github.com/PolarWolf314/inkseal/internal/secrets"
	"github.com/PolarWolf314/inkseal/internal/utils"
)

const indexFileName = "index.json"

// Metadata is the plaintext catalog entry for one record.
type Metadata struct {
	ID       string   `json:"id" yaml:"id"`
	Title    string   `json:"title" yaml:"title"`
	Created  string   `json:"created" yaml:"created"`
	Modified string   `json:"modified" yaml:"modified"`
	Tags     []string `json:"tags" yaml:"tags"`
	Filename string   `json:"filename" yaml:"-"`
}

type index struct {
	Entries []Metadata `json:"entries"`
}

// Changes lists the fields Update should replace. Nil fields are kept.
type Changes struct {
	Title    *string
	Envelope *secrets.Envelope
	Tags     *[]string
}

// Store is a directory of sealed records.
type Store struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir returns the store location.
func (s *Store) Dir() string {
	return s.dir
}

// Save stores env under a new random id.
func (s *Store) Save(title string, env *secrets.Envelope, tags []string) (string, error) {
	if env == nil {
		return "", fmt.Errorf("%w: no envelope to save", kerrors.ErrPrecondition)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.readIndex()
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	now := secrets.FormatTimestamp(s.now())
	if tags == nil {
		tags = []string{}
	}
	meta := Metadata{
		ID:       id,
		Title:    title,
		Created:  now,
		Modified: now,
		Tags:     tags,
		Filename: id + ".json",
	}

	if err := s.writeEnvelope(meta.Filename, env); err != nil {
		return "", err
	}
	idx.Entries = append(idx.Entries, meta)
	if err := s.writeIndex(idx); err != nil {
		return "", err
	}
	return id, nil
}

// Update replaces the fields set in changes and bumps the modified time.
func (s *Store) Update(id string, changes Changes) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.readIndex()
	if err != nil {
		return err
	}
	i := idx.find(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", kerrors.ErrRecordNotFound, id)
	}
	meta := &idx.Entries[i]

	if changes.Envelope != nil {
		if err := s.writeEnvelope(meta.Filename, changes.Envelope); err != nil {
			return err
		}
	}
	if changes.Title != nil {
		meta.Title = *changes.Title
	}
	if changes.Tags != nil {
		meta.Tags = *changes.Tags
	}
	meta.Modified = secrets.FormatTimestamp(s.now())
	return s.writeIndex(idx)
}

// Load returns the metadata and envelope for id.
func (s *Store) Load(id string) (*Metadata, *secrets.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.readIndex()
	if err != nil {
		return nil, nil, err
	}
	i := idx.find(id)
	if i < 0 {
		return nil, nil, fmt.Errorf("%w: %s", kerrors.ErrRecordNotFound, id)
	}
	meta := idx.Entries[i]

	data, err := os.ReadFile(s.recordPath(meta))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %s (envelope file missing)", kerrors.ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read record %s: %w", id, err)
	}
	var env secrets.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: record %s: %v", kerrors.ErrCorruptStore, id, err)
	}
	return &meta, &env, nil
}

// Delete removes id from the index and deletes its envelope file.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.readIndex()
	if err != nil {
		return err
	}
	i := idx.find(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", kerrors.ErrRecordNotFound, id)
	}
	meta := idx.Entries[i]
	idx.Entries = append(idx.Entries[:i], idx.Entries[i+1:]...)

	if err := s.writeIndex(idx); err != nil {
		return err
	}
	if err := os.Remove(s.recordPath(meta)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete record file: %w", err)
	}
	return nil
}

// List returns every record, newest first.
func (s *Store) List() ([]Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	return newestFirst(idx.Entries), nil
}

// Search returns records whose title or any tag contains query,
// case-insensitively, newest first.
func (s *Store) Search(query string) ([]Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.readIndex()
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	var matches []Metadata
	for _, meta := range idx.Entries {
		if matchesQuery(meta, q) {
			matches = append(matches, meta)
		}
	}
	return newestFirst(matches), nil
}

func matchesQuery(meta Metadata, q string) bool {
	if strings.Contains(strings.ToLower(meta.Title), q) {
		return true
	}
	for _, tag := range meta.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func newestFirst(entries []Metadata) []Metadata {
	out := make([]Metadata, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Created > out[j].Created
	})
	return out
}

func (idx *index) find(id string) int {
	for i, meta := range idx.Entries {
		if meta.ID == id {
			return i
		}
	}
	return -1
}

// recordPath keeps envelope files inside the store even if the index was edited.
func (s *Store) recordPath(meta Metadata) string {
	return filepath.Join(s.dir, filepath.Base(meta.Filename))
}

func (s *Store) readIndex() (*index, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, indexFileName))
	if errors.Is(err, os.ErrNotExist) {
		return &index{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record index: %w", err)
	}
	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("%w: record index: %v", kerrors.ErrCorruptStore, err)
	}
	return &idx, nil
}

func (s *Store) writeIndex(idx *index) error {
	if idx.Entries == nil {
		idx.Entries = []Metadata{}
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record index: %w", err)
	}
	if err := utils.WriteFileAtomic(filepath.Join(s.dir, indexFileName), data, 0600); err != nil {
		return fmt.Errorf("failed to write record index: %w", err)
	}
	return nil
}

func (s *Store) writeEnvelope(filename string, env *secrets.Envelope) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := utils.WriteFileAtomic(filepath.Join(s.dir, filepath.Base(filename)), data, 0600); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}
