// Package artifact persists run records under one directory per model run.
package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/spf13/afero"

	"github.com/oxygene76/reflectx/internal/types"
)

// Policy decides what happens when a run directory already exists
type Policy string

const (
	PolicyError     Policy = "error"
	PolicyOverwrite Policy = "overwrite"
	PolicySkip      Policy = "skip"
)

// ParsePolicy validates a configured policy name. Empty means PolicyError.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case "":
		return PolicyError, nil
	case PolicyError, PolicyOverwrite, PolicySkip:
		return p, nil
	}
	return "", errorsmod.Wrapf(types.ErrConfiguration, "unknown directory policy %q", s)
}

// Store reads and writes run artifacts below a root directory
type Store struct {
	fs   afero.Fs
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	now   func() time.Time
}

// NewStore creates a store rooted at root on fs
func NewStore(fs afero.Fs, root string) *Store {
	return &Store{
		fs:    fs,
		root:  root,
		locks: make(map[string]*sync.Mutex),
		now:   time.Now,
	}
}

// NewOsStore creates a store on the local filesystem
func NewOsStore(root string) *Store {
	return NewStore(afero.NewOsFs(), root)
}

// Fs returns the underlying filesystem
func (s *Store) Fs() afero.Fs { return s.fs }

// Root returns the directory every run lives under
func (s *Store) Root() string { return s.root }

// Path returns the location of name inside a run directory
func (s *Store) Path(dir string, name ...string) string {
	return filepath.Join(append([]string{s.root, dir}, name...)...)
}

// Lock serialises work on one run directory. The returned func releases it.
func (s *Store) Lock(dir string) func() {
	key := filepath.Clean(s.Path(dir))
	s.mu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Exists reports whether a run directory is present
func (s *Store) Exists(dir string) (bool, error) {
	return afero.DirExists(s.fs, s.Path(dir))
}

// Prepare creates a run directory according to policy. It returns false when the
// policy is PolicySkip and the directory is already there.
func (s *Store) Prepare(dir string, policy Policy) (bool, error) {
	exists, err := s.Exists(dir)
	if err != nil {
		return false, err
	}
	if exists {
		switch policy {
		case PolicySkip:
			return false, nil
		case PolicyOverwrite:
			if err := s.fs.RemoveAll(s.Path(dir)); err != nil {
				return false, errorsmod.Wrapf(err, "clear %s", dir)
			}
		default:
			return false, errorsmod.Wrapf(types.ErrDirectoryExists, "%s", s.Path(dir))
		}
	}
	if err := s.fs.MkdirAll(s.Path(dir), 0o755); err != nil {
		return false, errorsmod.Wrapf(err, "create %s", dir)
	}
	return true, nil
}

// Has reports whether an artifact exists in a run directory
func (s *Store) Has(dir, name string) bool {
	ok, err := afero.Exists(s.fs, s.Path(dir, name))
	return err == nil && ok
}

// WriteRecord stamps and stores a record as JSON. An existing artifact is replaced
// whole, never edited in place.
func (s *Store) WriteRecord(dir, name string, rec Record) error {
	h := rec.header()
	h.Version = RecordVersion
	h.Kind = rec.Kind()
	if h.Written.IsZero() {
		h.Written = s.now().UTC()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errorsmod.Wrapf(types.ErrFormat, "encode %s: %s", name, err)
	}
	return s.WriteFile(dir, name, func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
}

// ReadRecord loads a record written by WriteRecord
func (s *Store) ReadRecord(dir, name string, rec Record) error {
	data, err := afero.ReadFile(s.fs, s.Path(dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errorsmod.Wrapf(types.ErrArtifactNotFound, "%s in %s", name, dir)
		}
		return err
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return errorsmod.Wrapf(types.ErrFormat, "decode %s: %s", name, err)
	}

	h := rec.header()
	if h.Kind != rec.Kind() {
		return errorsmod.Wrapf(types.ErrFormat, "%s holds a %q record, want %q", name, h.Kind, rec.Kind())
	}
	if h.Version < 1 || h.Version > RecordVersion {
		return errorsmod.Wrapf(types.ErrFormat, "%s has unsupported record version %d", name, h.Version)
	}
	return nil
}

// WriteFile renders an artifact through write and moves it into place
func (s *Store) WriteFile(dir, name string, write func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return errorsmod.Wrapf(err, "render %s", name)
	}

	final := s.Path(dir, name)
	tmp := final + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, buf.Bytes(), 0o644); err != nil {
		return errorsmod.Wrapf(err, "write %s", name)
	}
	if err := s.fs.Rename(tmp, final); err != nil {
		_ = s.fs.Remove(tmp)
		return errorsmod.Wrapf(err, "write %s", name)
	}
	return nil
}

// ReadFile returns the raw bytes of an artifact
func (s *Store) ReadFile(dir, name string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.Path(dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, errorsmod.Wrapf(types.ErrArtifactNotFound, "%s in %s", name, dir)
	}
	return data, err
}

// OpenAppend opens an artifact for appending, creating it if needed
func (s *Store) OpenAppend(dir, name string) (afero.File, error) {
	return s.fs.OpenFile(s.Path(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// List returns the artifact names in a run directory, sorted
func (s *Store) List(dir string) ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.Path(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errorsmod.Wrapf(types.ErrArtifactNotFound, "run directory %s", dir)
		}
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		if !fi.IsDir() {
			names = append(names, fi.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Runs returns the run directories under the root, sorted
func (s *Store) Runs() ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var dirs []string
	for _, fi := range infos {
		if fi.IsDir() {
			dirs = append(dirs, fi.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
