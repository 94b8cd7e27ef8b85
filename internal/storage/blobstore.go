// Copyright 2025 MediaStore Authors
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

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"

	"mediastore/internal/common"
)

// BlobInfo describes one stored blob.
type BlobInfo struct {
	Path string
	Size int64
}

// BlobStore is the durable get/put/delete contract for asset bytes, keyed by
// a caller-chosen storage path. Implementations must tolerate re-running any
// operation (idempotent writes and deletes) since no single process owns all
// writers.
type BlobStore interface {
	Put(ctx context.Context, storagePath string, data []byte) error
	Get(ctx context.Context, storagePath string) ([]byte, error)
	Delete(ctx context.Context, storagePath string) error
	Exists(ctx context.Context, storagePath string) (bool, error)
	// List returns blobs under a prefix in lexicographic path order.
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// FSBlobStore stores blobs on a billy filesystem. Production wraps osfs over
// the workspace media root; tests use memfs.
type FSBlobStore struct {
	fs billy.Filesystem
}

// NewFSBlobStore creates a blob store over the given billy filesystem.
func NewFSBlobStore(fs billy.Filesystem) *FSBlobStore {
	return &FSBlobStore{fs: fs}
}

// NewLocalBlobStore creates a blob store rooted at a local directory.
func NewLocalBlobStore(root string) (*FSBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media root: %w", err)
	}
	return NewFSBlobStore(osfs.New(root)), nil
}

// NewMemBlobStore creates an in-memory blob store for tests.
func NewMemBlobStore() *FSBlobStore {
	return NewFSBlobStore(memfs.New())
}

func (s *FSBlobStore) clean(storagePath string) (string, error) {
	p := common.NormalizePath(storagePath)
	if p == "" || strings.HasPrefix(p, "..") {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidPath, storagePath)
	}
	return p, nil
}

// Put writes data to the given storage path, creating parent directories and
// overwriting any existing blob (writes are idempotent by content hash).
func (s *FSBlobStore) Put(ctx context.Context, storagePath string, data []byte) error {
	p, err := s.clean(storagePath)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := path.Dir(p); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: mkdir %s: %v", common.ErrStorageWrite, dir, err)
		}
	}
	f, err := s.fs.Create(p)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", common.ErrStorageWrite, p, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("%w: write %s: %v", common.ErrStorageWrite, p, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", common.ErrStorageWrite, p, err)
	}
	return nil
}

// Get reads a blob back. Returns common.ErrNotFound for a missing path.
func (s *FSBlobStore) Get(ctx context.Context, storagePath string) ([]byte, error) {
	p, err := s.clean(storagePath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.fs.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Delete removes a blob. Deleting a missing path is not an error.
func (s *FSBlobStore) Delete(ctx context.Context, storagePath string) error {
	p, err := s.clean(storagePath)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Exists reports whether a blob is present.
func (s *FSBlobStore) Exists(ctx context.Context, storagePath string) (bool, error) {
	p, err := s.clean(storagePath)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := s.fs.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List walks the tree under prefix and returns files in lexicographic order.
func (s *FSBlobStore) List(ctx context.Context, prefix string) ([]BlobInfo, error) {
	root := common.NormalizePath(prefix)
	if root == "" {
		root = "."
	}
	var out []BlobInfo
	if err := s.walk(ctx, root, &out); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *FSBlobStore) walk(ctx context.Context, dir string, out *[]BlobInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		p := path.Join(dir, e.Name())
		if e.IsDir() {
			if err := s.walk(ctx, p, out); err != nil {
				return err
			}
			continue
		}
		*out = append(*out, BlobInfo{Path: common.NormalizePath(p), Size: e.Size()})
	}
	return nil
}
