package kernel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrNoSource is returned by Reload on a Static that was not loaded from a file.
var ErrNoSource = errors.New("kernel: no fixture file to reload")

// Static serves groups from memory. It is safe for concurrent use.
type Static struct {
	mu     sync.RWMutex
	groups []Group
	path   string
}

// fixture is the shape of groups.yaml.
type fixture struct {
	Groups []Group `yaml:"groups"`
}

// NewStatic returns a Static holding groups.
func NewStatic(groups ...Group) *Static {
	return &Static{groups: slices.Clone(groups)}
}

// LoadStatic reads a YAML fixture. A missing file yields an empty, reloadable kernel.
func LoadStatic(path string) (*Static, error) {
	s := &Static{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Groups implements GroupAPI.
func (s *Static) Groups(ctx context.Context) ([]Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.groups), nil
}

// Set replaces the served groups.
func (s *Static) Set(groups []Group) {
	s.mu.Lock()
	s.groups = slices.Clone(groups)
	s.mu.Unlock()
}

// Reload re-reads the fixture file the kernel was loaded from.
// On error the previous groups are kept.
func (s *Static) Reload() error {
	if s.path == "" {
		return ErrNoSource
	}
	groups, err := readFixture(s.path)
	if err != nil {
		return err
	}
	s.Set(groups)
	return nil
}

func readFixture(path string) ([]Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read groups fixture: %w", err)
	}

	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	seen := make(map[int64]struct{}, len(f.Groups))
	for _, g := range f.Groups {
		if _, dup := seen[g.ID]; dup {
			return nil, fmt.Errorf("duplicate group_id %d in %s", g.ID, path)
		}
		seen[g.ID] = struct{}{}
	}
	return f.Groups, nil
}
