package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/creachadair/atomicfile"

	"github.com/ava-labs/record-indexer/pkg/types"
)

// FileStore keeps the snapshot as an indented JSON array in a single file.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store backed by the file at path. The file is not
// touched until Load or Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) ([]types.Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	return Decode(s.path, data)
}

// Save writes records to a temporary file next to the target and renames it
// over the target, so readers see either the previous or the new snapshot.
func (s *FileStore) Save(_ context.Context, records []types.Record) error {
	data, err := Encode(records)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	if _, err := atomicfile.WriteAll(s.path, bytes.NewReader(data), 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove snapshot %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Location() string {
	return s.path
}

func (s *FileStore) Close() error {
	return nil
}
