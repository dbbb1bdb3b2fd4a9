// Package state persists small bits of run state between invocations:
// the end of the last counted range and the usernames recently queried.
package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	stateDirName  = ".coder-audit"
	stateFileName = "state.json"
	maxRecent     = 10
)

type Store struct {
	// LastCountEnd is the before_time of the most recent count run
	// (RFC3339). count --since-last resumes from here.
	LastCountEnd string `json:"lastCountEnd,omitempty"`
	// RecentUsers are usernames recently passed to last, newest first.
	RecentUsers []string `json:"recentUsers,omitempty"`
}

func FilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, stateDirName, stateFileName), nil
}

func Load() (*Store, error) {
	path, err := FilePath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Store{}, nil
		}
		return nil, err
	}
	if len(b) == 0 {
		return &Store{}, nil
	}
	var s Store
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func Save(s *Store) error {
	path, err := FilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// MarkCountRun records the end of a completed count range.
func (s *Store) MarkCountRun(end string) {
	s.LastCountEnd = strings.TrimSpace(end)
}

// AddRecentUser pushes username to the front of the recent list,
// deduplicated and capped.
func (s *Store) AddRecentUser(username string) {
	username = strings.TrimSpace(username)
	if username == "" {
		return
	}
	out := make([]string, 0, maxRecent)
	out = append(out, username)
	for _, u := range s.RecentUsers {
		if u == username {
			continue
		}
		out = append(out, u)
		if len(out) == maxRecent {
			break
		}
	}
	s.RecentUsers = out
}
