// Copyright 2026 The Adminkit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FSStore implements Store on the local filesystem
type FSStore struct {
	dir string
}

// NewFSStore creates a filesystem store rooted at dir
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

// Put writes r to a file named by key. The write goes through a temp file and
// rename so a reader never observes a partially written artifact.
func (s *FSStore) Put(ctx context.Context, key string, r io.Reader) (string, int64, error) {
	if err := validKey(key); err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to write artifact: %w", err)
	}

	location := filepath.Join(s.dir, key)
	if err := os.Rename(tmp.Name(), location); err != nil {
		return "", 0, fmt.Errorf("failed to finalize artifact: %w", err)
	}

	return location, size, nil
}

// Open returns a reader over the stored blob
func (s *FSStore) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	f, err := os.Open(location)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	return f, nil
}

// Delete removes the stored blob. A blob that is already gone maps to
// ErrArtifactNotFound.
func (s *FSStore) Delete(ctx context.Context, location string) error {
	if err := os.Remove(location); err != nil {
		if os.IsNotExist(err) {
			return ErrArtifactNotFound
		}
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

func validKey(key string) error {
	if key == "" || strings.Contains(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid artifact key: %q", key)
	}
	return nil
}
