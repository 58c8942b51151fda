// Package store persists the last playback session as a flat record in the
// user's config directory. The engine never sees this format; the CLI bridges
// between the record and the controller's setters.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Record is the persisted shape of one practice session.
type Record struct {
	Filename          string  `mapstructure:"filename"`
	StartTime         float64 `mapstructure:"start_time"`
	EndTime           float64 `mapstructure:"end_time"`
	Speed             float64 `mapstructure:"speed"`
	Pitch             float64 `mapstructure:"pitch"`
	IsLooping         bool    `mapstructure:"is_looping"`
	PauseBetweenLoops float64 `mapstructure:"pause_between_loops"`
	CountIn           float64 `mapstructure:"count_in"`
}

// ErrNoSession reports that no session has been saved yet.
var ErrNoSession = errors.New("no saved session")

// Store reads and writes session records at a fixed path.
type Store struct {
	path string
}

// DefaultPath returns the session file location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config dir: %w", err)
	}
	return filepath.Join(dir, "riffloop", "session.yaml"), nil
}

// New creates a store backed by the given file path. An empty path uses
// DefaultPath.
func New(path string) (*Store, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return &Store{path: path}, nil
}

// Load reads the saved session record.
func (s *Store) Load() (*Record, error) {
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var rec Record
	if err := v.Unmarshal(&rec); err != nil {
		return nil, fmt.Errorf("parsing session file: %w", err)
	}
	return &rec, nil
}

// Save writes the session record, creating the directory if needed.
func (s *Store) Save(rec Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}

	v := viper.New()
	v.Set("filename", rec.Filename)
	v.Set("start_time", rec.StartTime)
	v.Set("end_time", rec.EndTime)
	v.Set("speed", rec.Speed)
	v.Set("pitch", rec.Pitch)
	v.Set("is_looping", rec.IsLooping)
	v.Set("pause_between_loops", rec.PauseBetweenLoops)
	v.Set("count_in", rec.CountIn)

	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	return nil
}

// Clear removes the saved session, if any.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}
