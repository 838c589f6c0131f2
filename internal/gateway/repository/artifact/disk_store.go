package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore keeps artifacts as files in a single local directory.
type DiskStore struct {
	root string
}

// NewDiskStore creates root if it does not exist yet.
func NewDiskStore(root string) (*DiskStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) Root() string { return s.root }

// Put replaces the file atomically so concurrent readers never see a
// partial image.
func (s *DiskStore) Put(_ context.Context, name string, content []byte) error {
	fullPath, err := s.pathFor(name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *DiskStore) Get(_ context.Context, name string) ([]byte, error) {
	fullPath, err := s.pathFor(name)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return raw, err
}

func (s *DiskStore) GetURL(_ context.Context, _ string) (string, error) {
	return "", nil
}

func (s *DiskStore) pathFor(name string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("store is nil")
	}
	name, err := validateName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, name), nil
}
