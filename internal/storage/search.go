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

	"github.com/uptrace/bun"
)

// SearchParams filters and orders a catalog search.
type SearchParams struct {
	Query        string   // free text over title/alt/caption/description/extracted text
	Tags         []string // match any of these tag names (manual or ai)
	Format       string
	MinWidth     int
	MinHeight    int
	UploadSource string
	SortBy       string // whitelisted column, default created_at
	SortOrder    string // "asc" or "desc", default desc
	Page         int    // 1-based
	Limit        int
}

// sortColumns whitelists user-facing sort keys. Anything else falls back to
// created_at so a caller-supplied string never reaches the ORDER BY raw.
var sortColumns = map[string]string{
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"usage_count":  "usage_count",
	"last_used_at": "last_used_at",
	"file_size":    "file_size",
	"width":        "width",
	"height":       "height",
	"filename":     "filename",
}

const (
	DefaultSearchLimit = 24
	MaxSearchLimit     = 200
)

func (p *SearchParams) normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultSearchLimit
	}
	if p.Limit > MaxSearchLimit {
		p.Limit = MaxSearchLimit
	}
	if _, ok := sortColumns[p.SortBy]; !ok {
		p.SortBy = "created_at"
	}
	if p.SortOrder != "asc" {
		p.SortOrder = "desc"
	}
}

func (c *Catalog) applySearchFilters(q *bun.SelectQuery, p *SearchParams) *bun.SelectQuery {
	q = q.Where("status = ?", StatusActive)
	if p.Query != "" {
		pattern := "%" + p.Query + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("title LIKE ?", pattern).
				WhereOr("alt_text LIKE ?", pattern).
				WhereOr("caption LIKE ?", pattern).
				WhereOr("description LIKE ?", pattern).
				WhereOr("ai_text_extracted LIKE ?", pattern)
		})
	}
	if len(p.Tags) > 0 {
		q = q.Where(
			"EXISTS (SELECT 1 FROM image_tags t WHERE t.image_id = asset_model.id AND t.tag_name IN (?))",
			bun.In(p.Tags))
	}
	if p.Format != "" {
		q = q.Where("format = ?", p.Format)
	}
	if p.MinWidth > 0 {
		q = q.Where("width >= ?", p.MinWidth)
	}
	if p.MinHeight > 0 {
		q = q.Where("height >= ?", p.MinHeight)
	}
	if p.UploadSource != "" {
		q = q.Where("upload_source = ?", p.UploadSource)
	}
	return q
}

// SearchAssets runs a filtered, sorted, paginated query over active assets and
// returns the matching page plus the total match count.
func (c *Catalog) SearchAssets(ctx context.Context, p SearchParams) ([]*Asset, int, error) {
	p.normalize()

	var models []AssetModel
	q := c.applySearchFilters(c.bun.NewSelect().Model(&models), &p)

	total, err := q.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	// Secondary order by id keeps pagination stable when the sort column ties.
	err = q.
		OrderExpr("? ?", bun.Ident(sortColumns[p.SortBy]), bun.Safe(p.SortOrder)).
		Order("id ASC").
		Limit(p.Limit).
		Offset((p.Page - 1) * p.Limit).
		Scan(ctx)
	if err != nil {
		return nil, 0, err
	}

	assets, err := c.attachRelations(ctx, models)
	if err != nil {
		return nil, 0, err
	}
	return assets, total, nil
}

// attachRelations loads tags and variants for a page of asset models.
func (c *Catalog) attachRelations(ctx context.Context, models []AssetModel) ([]*Asset, error) {
	assets := make([]*Asset, len(models))
	ids := make([]int64, len(models))
	byID := make(map[int64]*Asset, len(models))
	for i := range models {
		assets[i] = models[i].ToAsset()
		ids[i] = models[i].ID
		byID[models[i].ID] = assets[i]
	}
	if len(ids) == 0 {
		return assets, nil
	}

	var tags []TagModel
	if err := c.bun.NewSelect().
		Model(&tags).
		Where("image_id IN (?)", bun.In(ids)).
		Order("image_id ASC", "tag_type ASC", "tag_name ASC").
		Scan(ctx); err != nil {
		return nil, err
	}
	for i := range tags {
		a := byID[tags[i].ImageID]
		a.Tags = append(a.Tags, *tags[i].ToTag())
	}

	var variants []VariantModel
	if err := c.bun.NewSelect().
		Model(&variants).
		Where("image_id IN (?)", bun.In(ids)).
		Order("image_id ASC", "name ASC").
		Scan(ctx); err != nil {
		return nil, err
	}
	for i := range variants {
		a := byID[variants[i].ImageID]
		a.Variants = append(a.Variants, *variants[i].ToVariant())
	}

	return assets, nil
}

// LoadAsset returns one asset with tags and variants attached.
func (c *Catalog) LoadAsset(ctx context.Context, id int64) (*Asset, error) {
	m, err := c.GetAssetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	assets, err := c.attachRelations(ctx, []AssetModel{*m})
	if err != nil {
		return nil, err
	}
	return assets[0], nil
}

// --- Retrieval strategies for the recommendation engine ---
// All are bounded, active-only, and deterministically ordered (sort key plus
// id ASC tiebreak) so repeated runs against an unchanged catalog return the
// same rows in the same order.

// ActiveByTagNames returns active assets carrying any of the given tag names,
// most used first.
func (c *Catalog) ActiveByTagNames(ctx context.Context, names []string, limit int) ([]*Asset, error) {
	if len(names) == 0 || limit <= 0 {
		return nil, nil
	}
	var models []AssetModel
	err := c.bun.NewSelect().
		Model(&models).
		Where("status = ?", StatusActive).
		Where("EXISTS (SELECT 1 FROM image_tags t WHERE t.image_id = asset_model.id AND t.tag_name IN (?))",
			bun.In(names)).
		Order("usage_count DESC", "id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return c.attachRelations(ctx, models)
}

// ActiveByAITagSubstring returns active assets with an AI tag containing any
// of the given terms, highest AI confidence first.
func (c *Catalog) ActiveByAITagSubstring(ctx context.Context, terms []string, limit int) ([]*Asset, error) {
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}
	var models []AssetModel
	q := c.bun.NewSelect().
		Model(&models).
		Where("status = ?", StatusActive)
	q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, term := range terms {
			q = q.WhereOr(
				"EXISTS (SELECT 1 FROM image_tags t WHERE t.image_id = asset_model.id AND t.tag_type = ? AND t.tag_name LIKE ?)",
				TagTypeAI, "%"+term+"%")
		}
		return q
	})
	err := q.
		OrderExpr("(SELECT COALESCE(MAX(confidence_score), 0) FROM image_tags t WHERE t.image_id = asset_model.id AND t.tag_type = ?) DESC", TagTypeAI).
		Order("id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return c.attachRelations(ctx, models)
}

// ActiveByMinDimensions returns recent active assets at or above the given
// dimensions.
func (c *Catalog) ActiveByMinDimensions(ctx context.Context, minWidth, minHeight, limit int) ([]*Asset, error) {
	if limit <= 0 {
		return nil, nil
	}
	var models []AssetModel
	err := c.bun.NewSelect().
		Model(&models).
		Where("status = ?", StatusActive).
		Where("width >= ?", minWidth).
		Where("height >= ?", minHeight).
		Order("created_at DESC", "id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return c.attachRelations(ctx, models)
}

// ActivePopular returns active assets that have been used at least once,
// most used first. The guaranteed-non-empty fallback strategy.
func (c *Catalog) ActivePopular(ctx context.Context, limit int) ([]*Asset, error) {
	if limit <= 0 {
		return nil, nil
	}
	var models []AssetModel
	err := c.bun.NewSelect().
		Model(&models).
		Where("status = ?", StatusActive).
		Where("usage_count >= 1").
		Order("usage_count DESC", "id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return c.attachRelations(ctx, models)
}

// ListAssetsByPathPrefix pages through assets under a storage prefix in id
// order. afterID is the resumable cursor: pass 0 to start, then the last id of
// the previous page.
func (c *Catalog) ListAssetsByPathPrefix(ctx context.Context, prefix string, afterID int64, limit int) ([]*Asset, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []AssetModel
	q := c.bun.NewSelect().
		Model(&models).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit)
	if prefix != "" {
		q = q.Where("file_path LIKE ?", prefix+"%")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return c.attachRelations(ctx, models)
}
