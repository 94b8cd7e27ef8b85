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

// Package asset implements the ingestion and catalog operations over the
// blob store and the SQLite catalog. Duplicate detection is driven by the
// content hash: one catalog row per distinct SHA-256, usage_count tracking
// re-uploads of the same bytes.
package asset

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"mediastore/internal/common"
	"mediastore/internal/storage"
	"mediastore/internal/tasks"
)

// TaskPublisher is the slice of the task queue the service needs. Nil is
// allowed; post-processing is then skipped.
type TaskPublisher interface {
	PublishVariantJob(job tasks.VariantJob) error
	PublishTaggingJob(job tasks.TaggingJob) error
}

// Service wires the catalog, the blob store, the fetcher and the task queue
// into the asset operations.
type Service struct {
	catalog *storage.Catalog
	blobs   storage.BlobStore
	fetcher Fetcher
	queue   TaskPublisher
}

// NewService builds a Service. fetcher may be nil if only byte-slice
// ingestion is used; queue may be nil to disable post-processing fan-out.
func NewService(catalog *storage.Catalog, blobs storage.BlobStore, fetcher Fetcher, queue TaskPublisher) *Service {
	return &Service{
		catalog: catalog,
		blobs:   blobs,
		fetcher: fetcher,
		queue:   queue,
	}
}

// Catalog exposes the underlying catalog for read-side collaborators.
func (s *Service) Catalog() *storage.Catalog {
	return s.catalog
}

// Blobs exposes the underlying blob store.
func (s *Service) Blobs() storage.BlobStore {
	return s.blobs
}

// IngestRequest describes one source image. Exactly one of URL or Data must
// be set; with both set, Data wins and URL is recorded as provenance only.
type IngestRequest struct {
	URL              string
	Data             []byte
	OriginalFilename string
	UploadSource     string
	UploadedBy       string
	// ForceUpload stores a new canonical object even when the hash is
	// already catalogued.
	ForceUpload bool
}

// IngestResult reports what ingestion did.
type IngestResult struct {
	Asset       *storage.Asset
	IsDuplicate bool
	Warnings    []string
}

// Ingest runs the full pipeline: fetch, hash, dedup, store, catalogue, and
// queue post-processing. Duplicate content returns the existing record with
// its usage count bumped; no second blob is written.
//
// Uniqueness under concurrent ingests is enforced solely by the catalog's
// unique index on the SHA-256 column. When two ingests race, the loser
// detects the violation, removes its orphan blob and takes the duplicate
// path against the winner's row.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	data := req.Data
	originalFilename := strings.TrimSpace(req.OriginalFilename)

	if len(data) == 0 {
		if req.URL == "" {
			return nil, fmt.Errorf("ingest requires a url or raw bytes")
		}
		if s.fetcher == nil {
			return nil, fmt.Errorf("%w: no fetcher configured for %s", common.ErrFetch, req.URL)
		}
		fetched, err := s.fetcher.Fetch(ctx, req.URL)
		if err != nil {
			return nil, err
		}
		data = fetched.Data
		if originalFilename == "" {
			originalFilename = fetched.Filename
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s produced an empty body", common.ErrFetch, req.URL)
	}
	if originalFilename == "" {
		originalFilename = "upload"
	}

	uploadSource := req.UploadSource
	if uploadSource == "" {
		uploadSource = "manual"
	}

	md5Sum := md5.Sum(data)
	shaSum := sha256.Sum256(data)
	md5Hex := hex.EncodeToString(md5Sum[:])
	shaHex := hex.EncodeToString(shaSum[:])

	result := &IngestResult{}

	if !req.ForceUpload {
		existing, err := s.catalog.GetAssetByHash(ctx, shaHex)
		if err == nil {
			return s.finishDuplicate(ctx, existing, result)
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("failed to check for duplicate content: %w", err)
		}
	}

	now := time.Now()
	storagePath := common.CanonicalPath(uploadSource, originalFilename, now)

	if err := s.blobs.Put(ctx, storagePath, data); err != nil {
		return nil, err
	}

	meta, err := probeImage(data)
	if err != nil {
		result.Warnings = append(result.Warnings, err.Error())
		log.Warnf("[Ingest] Could not probe %s: %v", originalFilename, err)
		meta = metaFromExtension(originalFilename)
	}

	model := &storage.AssetModel{
		ContentHashMD5:    md5Hex,
		ContentHashSHA256: shaHex,
		FilePath:          storagePath,
		Filename:          common.BaseName(storagePath),
		OriginalFilename:  originalFilename,
		MimeType:          meta.MimeType,
		Format:            meta.Format,
		Width:             int64(meta.Width),
		Height:            int64(meta.Height),
		FileSize:          int64(len(data)),
		UploadSource:      uploadSource,
		UploadedBy:        req.UploadedBy,
		Status:            storage.StatusActive,
		UsageCount:        1,
		LastUsedAt:        now.Unix(),
		CreatedAt:         now.Unix(),
		UpdatedAt:         now.Unix(),
	}

	stored, inserted, err := s.catalog.InsertOrFetchAsset(ctx, model)
	if err != nil {
		// The blob is orphaned at this point; the duplicate audit will
		// surface it if cleanup below fails too.
		if delErr := s.blobs.Delete(ctx, storagePath); delErr != nil {
			log.Warnf("[Ingest] Failed to remove orphan blob %s: %v", storagePath, delErr)
		}
		return nil, err
	}
	if !inserted && !req.ForceUpload {
		// Lost the insert race. Drop our blob and defer to the winner.
		if delErr := s.blobs.Delete(ctx, storagePath); delErr != nil {
			log.Warnf("[Ingest] Failed to remove orphan blob %s: %v", storagePath, delErr)
		}
		return s.finishDuplicate(ctx, stored, result)
	}

	log.Debugf("[Ingest] Stored %s as %s (id=%d, %dx%d %s)",
		originalFilename, storagePath, stored.ID, meta.Width, meta.Height, meta.Format)

	s.publishPostProcessing(stored.ID, req.ForceUpload, result)

	result.Asset = stored.ToAsset()
	return result, nil
}

func (s *Service) finishDuplicate(ctx context.Context, existing *storage.AssetModel, result *IngestResult) (*IngestResult, error) {
	if err := s.catalog.IncrementUsage(ctx, existing.ID); err != nil {
		return nil, fmt.Errorf("failed to bump usage for asset %d: %w", existing.ID, err)
	}
	if existing.Status == storage.StatusArchived {
		// Re-ingesting archived content means it is wanted again; bring it
		// back so it shows up in search alongside the bumped usage.
		if err := s.catalog.SetStatus(ctx, existing.ID, storage.StatusActive); err != nil {
			return nil, fmt.Errorf("failed to reactivate asset %d: %w", existing.ID, err)
		}
	}
	log.Debugf("[Ingest] Duplicate content, reusing asset %d (%s)", existing.ID, existing.FilePath)

	loaded, err := s.catalog.LoadAsset(ctx, existing.ID)
	if err != nil {
		return nil, err
	}
	result.Asset = loaded
	result.IsDuplicate = true
	return result, nil
}

func (s *Service) publishPostProcessing(id int64, force bool, result *IngestResult) {
	if s.queue == nil {
		return
	}
	if err := s.queue.PublishVariantJob(tasks.VariantJob{AssetID: id, Force: force}); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("variant job not queued: %v", err))
		log.Warnf("[Ingest] Variant job for asset %d not queued: %v", id, err)
	}
	if err := s.queue.PublishTaggingJob(tasks.TaggingJob{AssetID: id}); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("tagging job not queued: %v", err))
		log.Warnf("[Ingest] Tagging job for asset %d not queued: %v", id, err)
	}
}
