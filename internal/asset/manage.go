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

package asset

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"mediastore/internal/storage"
)

// Pagination describes one page of search results.
type Pagination struct {
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// SearchResult is a page of assets plus pagination metadata.
type SearchResult struct {
	Images     []*storage.Asset
	Pagination Pagination
}

// Search queries the catalog. Catalog failures degrade to an empty result
// with a logged warning so a flaky catalog breaks browsing softly rather
// than erroring the whole dashboard page.
func (s *Service) Search(ctx context.Context, params storage.SearchParams) *SearchResult {
	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit <= 0 {
		limit = storage.DefaultSearchLimit
	}
	if limit > storage.MaxSearchLimit {
		limit = storage.MaxSearchLimit
	}

	assets, total, err := s.catalog.SearchAssets(ctx, params)
	if err != nil {
		log.Warnf("[Search] Catalog query failed, returning empty result: %v", err)
		return &SearchResult{
			Images:     []*storage.Asset{},
			Pagination: Pagination{Page: page, Limit: limit},
		}
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return &SearchResult{
		Images: assets,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}
}

// Get loads one asset with its tags and variants.
func (s *Service) Get(ctx context.Context, id int64) (*storage.Asset, error) {
	return s.catalog.LoadAsset(ctx, id)
}

// UpdateRequest carries the editable metadata. Nil pointers leave a field
// untouched. A non-nil Tags slice replaces the full manual tag set; AI tags
// are never affected by an update.
type UpdateRequest struct {
	AltText     *string
	Title       *string
	Caption     *string
	Description *string
	Tags        []string
}

// Update edits an asset's descriptive metadata. Unknown ids return
// common.ErrNotFound.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) error {
	fields := storage.UpdateFields{
		AltText:     req.AltText,
		Title:       req.Title,
		Caption:     req.Caption,
		Description: req.Description,
	}
	if fields.AltText != nil || fields.Title != nil || fields.Caption != nil || fields.Description != nil {
		if err := s.catalog.UpdateEditable(ctx, id, fields); err != nil {
			return err
		}
	} else {
		// Tag-only updates still need the existence check.
		if _, err := s.catalog.GetAssetByID(ctx, id); err != nil {
			return err
		}
	}

	if req.Tags != nil {
		if err := s.catalog.ReplaceManualTags(ctx, id, req.Tags); err != nil {
			return fmt.Errorf("failed to replace manual tags for asset %d: %w", id, err)
		}
	}
	log.Debugf("[Update] Asset %d metadata updated", id)
	return nil
}

// DeleteResult is the per-step accounting of a permanent delete. Each step
// runs independently so a stuck blob never strands the catalog rows or the
// other way round.
type DeleteResult struct {
	StorageDeleted  bool
	DeletedRows     int64
	MetadataDeleted bool
	Warnings        []string
}

// Delete removes an asset. Soft deletes archive the row; permanent deletes
// remove the original blob, every variant blob, the asset row, and the tag
// and variant rows, reporting each step's outcome in the result.
func (s *Service) Delete(ctx context.Context, id int64, permanent bool) (*DeleteResult, error) {
	result := &DeleteResult{}

	if !permanent {
		if err := s.catalog.SetStatus(ctx, id, storage.StatusArchived); err != nil {
			return nil, err
		}
		result.MetadataDeleted = true
		log.Debugf("[Delete] Asset %d archived", id)
		return result, nil
	}

	model, err := s.catalog.GetAssetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	variants, err := s.catalog.VariantsFor(ctx, id)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("could not list variants: %v", err))
	}

	// Step 1: blobs.
	storageOK := true
	if err := s.blobs.Delete(ctx, model.FilePath); err != nil {
		storageOK = false
		result.Warnings = append(result.Warnings, fmt.Sprintf("original %s not deleted: %v", model.FilePath, err))
	}
	for _, v := range variants {
		if err := s.blobs.Delete(ctx, v.FilePath); err != nil {
			storageOK = false
			result.Warnings = append(result.Warnings, fmt.Sprintf("variant %s not deleted: %v", v.FilePath, err))
		}
	}
	result.StorageDeleted = storageOK

	// Step 2: the asset row.
	rows, err := s.catalog.DeleteAssetRow(ctx, id)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("asset row not deleted: %v", err))
	}
	result.DeletedRows = rows

	// Step 3: dependent rows.
	metadataOK := true
	if _, err := s.catalog.DeleteTagRows(ctx, id); err != nil {
		metadataOK = false
		result.Warnings = append(result.Warnings, fmt.Sprintf("tag rows not deleted: %v", err))
	}
	if _, err := s.catalog.DeleteVariantRows(ctx, id); err != nil {
		metadataOK = false
		result.Warnings = append(result.Warnings, fmt.Sprintf("variant rows not deleted: %v", err))
	}
	result.MetadataDeleted = metadataOK

	log.Debugf("[Delete] Asset %d permanently deleted (storage=%t rows=%d metadata=%t warnings=%d)",
		id, result.StorageDeleted, result.DeletedRows, result.MetadataDeleted, len(result.Warnings))
	return result, nil
}
