package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// FileStore keeps the whole cache as one JSON document mapping id to entry.
// Every upsert rewrites the full document through a temp file and rename,
// so readers never observe a partial write.
type FileStore struct {
	path string
	opts options
	log  zerolog.Logger

	// mu serializes the load-merge-write cycle of concurrent upserts.
	mu sync.Mutex
}

// NewFileStore creates a store backed by the JSON file at path.
func NewFileStore(path string, log zerolog.Logger, opts ...Option) *FileStore {
	return &FileStore{
		path: path,
		opts: buildOptions(opts),
		log:  log.With().Str("component", "cache").Str("backend", "json").Logger(),
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the full mapping. A missing or unreadable file yields an empty
// mapping; individual malformed entries are dropped.
func (s *FileStore) Load() map[string]Entry {
	all := map[string]Entry{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn().Err(&IOError{Op: "read", Path: s.path, Err: err}).Msg("treating cache as empty")
		}
		return all
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.log.Warn().Err(&IOError{Op: "decode", Path: s.path, Err: err}).Msg("treating cache as empty")
		return all
	}
	for id, blob := range raw {
		var e Entry
		if err := json.Unmarshal(blob, &e); err != nil {
			s.log.Debug().Err(err).Str("id", id).Msg("skipping malformed cache entry")
			continue
		}
		if e.ID == "" {
			e.ID = id
		}
		all[id] = e
	}
	return all
}

// Lookup implements Store.
func (s *FileStore) Lookup(ids []string) ([]Entry, []string) {
	return split(s.Load(), ids, s.opts.now())
}

// Upsert implements Store.
func (s *FileStore) Upsert(entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.Load()
	for _, e := range entries {
		all[e.ID] = e
	}
	data, err := json.MarshalIndent(all, "", "    ")
	if err != nil {
		return &IOError{Op: "encode", Path: s.path, Err: err}
	}
	if err := writeAtomic(s.path, data); err != nil {
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	s.log.Debug().Int("entries", len(entries)).Int("total", len(all)).Msg("cache saved")
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
