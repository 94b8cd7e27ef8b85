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

package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	"mediastore/internal/asset"
	"mediastore/internal/common"
	"mediastore/internal/config"
	"mediastore/internal/storage"
	"mediastore/internal/tasks"
)

// env bundles what most commands need: the loaded config, the open catalog
// and the local blob store.
type env struct {
	cfg     *config.Config
	catalog *storage.Catalog
	blobs   *storage.FSBlobStore
	lock    *flock.Flock
}

// openEnv opens the workspace for a command. Writing commands pass
// exclusive=true and hold an advisory flock for the lifetime of the
// process so concurrent CLI invocations do not interleave writes.
func openEnv(exclusive bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	var lock *flock.Flock
	if exclusive {
		lock = flock.New(config.LockPath())
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire workspace lock: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("another mediastore command is writing to this workspace")
		}
	}

	catalog, err := storage.OpenCatalog(config.CatalogPath())
	if err != nil {
		if lock != nil {
			lock.Unlock()
		}
		return nil, fmt.Errorf("failed to open catalog (run 'mediastore init' first): %w", err)
	}

	blobs, err := storage.NewLocalBlobStore(config.MediaRoot())
	if err != nil {
		catalog.Close()
		if lock != nil {
			lock.Unlock()
		}
		return nil, fmt.Errorf("failed to open media store: %w", err)
	}

	return &env{cfg: cfg, catalog: catalog, blobs: blobs, lock: lock}, nil
}

func (e *env) close() {
	if e.catalog != nil {
		e.catalog.Close()
	}
	if e.lock != nil {
		e.lock.Unlock()
	}
}

// newService builds the asset service for a command. queue may be nil.
func newService(e *env, queue *tasks.Queue) *asset.Service {
	var publisher asset.TaskPublisher
	if queue != nil {
		publisher = queue
	}
	return asset.NewService(e.catalog, e.blobs, asset.NewHTTPFetcher(e.fetchTimeout()), publisher)
}

// resolveAssetID turns a command argument into a catalog id. Numeric ids are
// used as is; anything else is treated as a public URL or a storage path and
// looked up in the catalog.
func (e *env) resolveAssetID(ctx context.Context, arg string) (int64, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return id, nil
	}
	path := common.PathFromURL(e.cfg.PublicBaseURL, arg)
	if path == "" {
		path = common.NormalizePath(arg)
	}
	m, err := e.catalog.GetAssetByPath(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("no asset matches %q: %w", arg, err)
	}
	return m.ID, nil
}

func (e *env) fetchTimeout() time.Duration {
	d, err := time.ParseDuration(e.cfg.FetchTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

func (e *env) auditTimeout() time.Duration {
	d, err := time.ParseDuration(e.cfg.AuditTimeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}
