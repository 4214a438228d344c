/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package store is the durable key-value store behind a show: the current
// state, the operator settings and timestamped backups, one file per key.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/Seednode/arenafloor/show"
)

const (
	KeyState     = "arena.v1.state"
	KeySettings  = "arena.v1.settings"
	BackupPrefix = "arena.v1.backup."

	ext = ".json"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrBadKey   = errors.New("invalid key")
)

type Store struct {
	fs  afero.Fs
	dir string
}

func New(fs afero.Fs, dir string) (*Store, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{fs: fs, dir: dir}, nil
}

func (s *Store) file(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("%w: %q", ErrBadKey, key)
	}
	return path.Join(s.dir, key+ext), nil
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(key string) ([]byte, error) {
	file, err := s.file(key)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, file)
	if errors.Is(err, afero.ErrFileNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

// Put replaces the value under key. The write goes to a temporary file that
// is renamed into place, so readers never see a torn value.
func (s *Store) Put(key string, value []byte) error {
	file, err := s.file(key)
	if err != nil {
		return err
	}
	tmp := file + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, value, 0o644); err != nil {
		return err
	}
	return s.fs.Rename(tmp, file)
}

// Keys lists every stored key starting with prefix, sorted.
func (s *Store) Keys(prefix string) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		key := strings.TrimSuffix(name, ext)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// LoadState returns the stored show, migrated to the current schema. A
// missing key is not an error: ok is false and the caller starts fresh.
func (s *Store) LoadState() (st show.State, ok bool, err error) {
	raw, err := s.Get(KeyState)
	if errors.Is(err, ErrNotFound) {
		return show.State{}, false, nil
	}
	if err != nil {
		return show.State{}, false, err
	}
	st, err = show.Migrate(raw)
	if err != nil {
		return show.State{}, false, err
	}
	return st, true, nil
}

// SaveState stores an already encoded state.
func (s *Store) SaveState(raw []byte) error {
	return s.Put(KeyState, raw)
}

// Backup archives an encoded state under a key suffixed with at in unix
// milliseconds.
func (s *Store) Backup(raw []byte, at time.Time) (string, error) {
	key := BackupPrefix + strconv.FormatInt(at.UnixMilli(), 10)
	return key, s.Put(key, raw)
}

// Backups lists backup keys, newest first.
func (s *Store) Backups() ([]string, error) {
	keys, err := s.Keys(BackupPrefix)
	if err != nil {
		return nil, err
	}
	stamp := func(k string) int64 {
		n, _ := strconv.ParseInt(strings.TrimPrefix(k, BackupPrefix), 10, 64)
		return n
	}
	sort.Slice(keys, func(i, j int) bool { return stamp(keys[i]) > stamp(keys[j]) })
	return keys, nil
}

// LoadSettings overlays stored settings on defaults. Missing or unreadable
// settings yield the defaults.
func (s *Store) LoadSettings(defaults show.Settings) show.Settings {
	raw, err := s.Get(KeySettings)
	if err != nil {
		return defaults
	}
	merged := defaults
	if err := json.Unmarshal(raw, &merged); err != nil {
		return defaults
	}
	if merged.DefaultTotalMs <= 0 || merged.PenaltySkipMs <= 0 || merged.CorrectRevealMs <= 0 {
		return defaults
	}
	return merged
}

func (s *Store) SaveSettings(settings show.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return s.Put(KeySettings, raw)
}
