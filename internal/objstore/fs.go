package objstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FSStore keeps objects under a root directory. Directories map to
// subdirectories and filenames to files.
type FSStore struct {
	root string
}

// NewFSStore creates the root directory if needed.
func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		return nil, fmt.Errorf("fs object storage requires a root directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create object storage root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) path(directory, filename string) (string, error) {
	p := filepath.Join(s.root, filepath.Clean(directory), filepath.Clean(filename))
	if !strings.HasPrefix(p, s.root) {
		return "", fmt.Errorf("object path escapes storage root: %s/%s", directory, filename)
	}
	return p, nil
}

// SaveBuffer writes data to directory/filename, creating the directory.
func (s *FSStore) SaveBuffer(_ context.Context, directory, filename string, data []byte) error {
	p, err := s.path(directory, filename)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

// LoadBuffer reads directory/filename fully.
func (s *FSStore) LoadBuffer(_ context.Context, directory, filename string) ([]byte, error) {
	p, err := s.path(directory, filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

// SaveStream streams r into directory/filename.
func (s *FSStore) SaveStream(_ context.Context, directory, filename string, r io.Reader) error {
	p, err := s.path(directory, filename)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("failed to create object: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("failed to stream object: %w", err)
	}
	return nil
}

// LoadStream opens directory/filename for reading.
func (s *FSStore) LoadStream(_ context.Context, directory, filename string) (io.ReadCloser, error) {
	p, err := s.path(directory, filename)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

// Delete removes one object.
func (s *FSStore) Delete(_ context.Context, directory, filename string) error {
	p, err := s.path(directory, filename)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// DeleteDirectory removes a directory and everything under it.
func (s *FSStore) DeleteDirectory(_ context.Context, directory string) error {
	p := filepath.Join(s.root, filepath.Clean(directory))
	if !strings.HasPrefix(p, s.root) || p == s.root {
		return fmt.Errorf("refusing to delete %q", directory)
	}
	if err := os.RemoveAll(p); err != nil {
		return fmt.Errorf("failed to delete object directory: %w", err)
	}
	return nil
}

// ListFiles lists filenames directly under directory, sorted.
func (s *FSStore) ListFiles(_ context.Context, directory string) ([]string, error) {
	p := filepath.Join(s.root, filepath.Clean(directory))
	entries, err := os.ReadDir(p)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

var _ Store = (*FSStore)(nil)
