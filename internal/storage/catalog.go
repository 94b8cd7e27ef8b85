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
	"database/sql"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	_ "github.com/tursodatabase/go-libsql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"mediastore/internal/common"
	"mediastore/internal/util"
)

// Catalog is the SQLite-backed metadata catalog. One row per distinct content
// hash; uniqueness is enforced by the content_hash_sha256 unique index, not by
// application-level locking.
type Catalog struct {
	path string
	db   *sql.DB
	bun  *bun.DB
}

// execPragma runs a PRAGMA statement using Query (not Exec) because libsql
// returns rows for PRAGMA statements. The result rows are drained and closed.
func execPragma(db *sql.DB, pragma string) error {
	rows, err := db.Query(pragma)
	if err != nil {
		return err
	}
	rows.Close()
	return nil
}

// applyPragmas sets essential PRAGMAs after opening a libsql connection.
// libsql ignores DSN-based _pragma=value parameters, so all PRAGMAs must be
// set explicitly via SQL statements after the connection is opened.
func applyPragmas(db *sql.DB, ctx DBContext) error {
	// Busy timeout MUST be set first — all subsequent PRAGMAs (especially
	// journal_mode=WAL which needs exclusive access) will wait for locks
	// instead of failing immediately with "database is locked".
	busyTimeout := GetBusyTimeout(ctx)
	if err := execPragma(db, fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout)); err != nil {
		return fmt.Errorf("failed to set busy_timeout: %w", err)
	}

	// WAL mode: enables concurrent readers during writes, reduces lock contention.
	if err := execPragma(db, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to set journal_mode=WAL: %w", err)
	}

	// synchronous=NORMAL: safe against process crashes in WAL mode, avoids
	// fsync on every commit.
	if err := execPragma(db, "PRAGMA synchronous=NORMAL"); err != nil {
		return fmt.Errorf("failed to set synchronous=NORMAL: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Larger cache for search-heavy workloads (default is ~2MB, set to 8MB).
	if err := execPragma(db, "PRAGMA cache_size = -8000"); err != nil {
		return fmt.Errorf("failed to set cache_size: %w", err)
	}

	return nil
}

// CreateCatalog creates a new catalog file with default context
func CreateCatalog(path string) (*Catalog, error) {
	return CreateCatalogWithContext(path, DBContextDefault)
}

// CreateCatalogWithContext creates a new catalog file with the specified context.
func CreateCatalogWithContext(path string, ctx DBContext) (*Catalog, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("file already exists: %s", path)
	}

	db, err := sql.Open("libsql", BuildDSN(path, ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	if err := applyPragmas(db, ctx); err != nil {
		db.Close()
		os.Remove(path)
		return nil, err
	}

	// Create schema (execute statements individually for libsql compatibility)
	if err := execStatements(db, catalogSchema); err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := execStatements(db, initCatalog, SchemaVersion); err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	return &Catalog{
		path: path,
		db:   db,
		bun:  bun.NewDB(db, sqlitedialect.New()),
	}, nil
}

// OpenCatalog opens an existing catalog file with default context
func OpenCatalog(path string) (*Catalog, error) {
	return OpenCatalogWithContext(path, DBContextDefault)
}

// OpenCatalogWithContext opens an existing catalog file with the specified context.
func OpenCatalogWithContext(path string, ctx DBContext) (*Catalog, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	db, err := sql.Open("libsql", BuildDSN(path, ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := applyPragmas(db, ctx); err != nil {
		db.Close()
		return nil, err
	}

	c := &Catalog{
		path: path,
		db:   db,
		bun:  bun.NewDB(db, sqlitedialect.New()),
	}

	fileType, err := c.getSchemaInfo(context.Background(), "type")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read schema info: %w", err)
	}
	if fileType != "catalog" {
		db.Close()
		return nil, fmt.Errorf("not a catalog file (type=%s)", fileType)
	}

	return c, nil
}

// Close closes the database connection and cleans up WAL files.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}

	// Checkpoint WAL to merge all transactions into the main database.
	// PRAGMA wal_checkpoint returns rows, so Query() not Exec().
	rows, err := c.db.Query("PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		log.Warnf("[Catalog] WAL checkpoint failed: %v", err)
	} else {
		rows.Close()
	}

	if err := c.db.Close(); err != nil {
		return err
	}

	os.Remove(c.path + "-wal") // Ignore errors - files may not exist
	os.Remove(c.path + "-shm")
	return nil
}

// Path returns the catalog file path
func (c *Catalog) Path() string {
	return c.path
}

// DB exposes the raw database handle for tests
func (c *Catalog) DB() *sql.DB {
	return c.db
}

func (c *Catalog) getSchemaInfo(ctx context.Context, key string) (string, error) {
	var info SchemaInfoModel
	err := c.bun.NewSelect().
		Model(&info).
		Where("key = ?", key).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return info.Value, nil
}

// --- Asset Operations ---

// InsertOrFetchAsset inserts a new asset row, or — when the unique index on
// content_hash_sha256 reports a conflict — fetches the winning row instead.
// The returned bool is true when this call created the row. Two concurrent
// ingestions of identical bytes therefore converge on one canonical record:
// the loser observes the winner's row rather than an error.
func (c *Catalog) InsertOrFetchAsset(ctx context.Context, m *AssetModel) (*AssetModel, bool, error) {
	inserted, err := util.RetryWithResult(ctx,
		func() (bool, error) {
			// RETURNING because libsql doesn't support LastInsertId
			_, err := c.bun.NewInsert().
				Model(m).
				Returning("id").
				Exec(ctx)
			if err == nil {
				return true, nil
			}
			if util.IsUniqueViolation(err) {
				return false, nil
			}
			return false, err
		},
		util.DatabaseRetryOptions(ctx)...)
	if err != nil {
		return nil, false, err
	}
	if inserted {
		return m, true, nil
	}

	log.Debugf("[Catalog] hash conflict on %s, fetching winning row", m.ContentHashSHA256)
	existing, err := c.GetAssetByHash(ctx, m.ContentHashSHA256)
	if err != nil {
		// Row vanished between conflict and fetch (concurrent permanent
		// delete); surface the conflict so the caller can retry the insert.
		return nil, false, fmt.Errorf("%w: %s", common.ErrConflict, m.ContentHashSHA256)
	}
	return existing, false, nil
}

// GetAssetByHash retrieves an asset row by its SHA-256 content hash.
func (c *Catalog) GetAssetByHash(ctx context.Context, sha256Hex string) (*AssetModel, error) {
	var m AssetModel
	err := c.bun.NewSelect().
		Model(&m).
		Where("content_hash_sha256 = ?", sha256Hex).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetAssetByID retrieves an asset row by id.
func (c *Catalog) GetAssetByID(ctx context.Context, id int64) (*AssetModel, error) {
	var m AssetModel
	err := c.bun.NewSelect().
		Model(&m).
		Where("id = ?", id).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetAssetByPath retrieves an asset row by its canonical storage path.
func (c *Catalog) GetAssetByPath(ctx context.Context, filePath string) (*AssetModel, error) {
	var m AssetModel
	err := c.bun.NewSelect().
		Model(&m).
		Where("file_path = ?", filePath).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// IncrementUsage bumps usage_count and last_used_at for a duplicate hit.
// usage_count only ever grows here; ResetUsage is the explicit admin path.
func (c *Catalog) IncrementUsage(ctx context.Context, id int64) error {
	now := time.Now().Unix()
	return util.Retry(ctx, func() error {
		_, err := c.bun.NewUpdate().
			Model((*AssetModel)(nil)).
			Set("usage_count = usage_count + 1").
			Set("last_used_at = ?", now).
			Set("updated_at = ?", now).
			Where("id = ?", id).
			Exec(ctx)
		return err
	}, util.DatabaseRetryOptions(ctx)...)
}

// ResetUsage sets usage_count back to zero. Administrative use only.
func (c *Catalog) ResetUsage(ctx context.Context, id int64) error {
	_, err := c.bun.NewUpdate().
		Model((*AssetModel)(nil)).
		Set("usage_count = 0").
		Set("updated_at = ?", time.Now().Unix()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// UpdateFields carries the human-editable asset fields. Nil means "leave as is".
type UpdateFields struct {
	AltText     *string
	Title       *string
	Caption     *string
	Description *string
}

// UpdateEditable mutates only the human-editable fields of an asset.
// Returns common.ErrNotFound when the id doesn't exist.
func (c *Catalog) UpdateEditable(ctx context.Context, id int64, f UpdateFields) error {
	q := c.bun.NewUpdate().
		Model((*AssetModel)(nil)).
		Set("updated_at = ?", time.Now().Unix()).
		Where("id = ?", id)
	if f.AltText != nil {
		q = q.Set("alt_text = ?", *f.AltText)
	}
	if f.Title != nil {
		q = q.Set("title = ?", *f.Title)
	}
	if f.Caption != nil {
		q = q.Set("caption = ?", *f.Caption)
	}
	if f.Description != nil {
		q = q.Set("description = ?", *f.Description)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// SetStatus moves an asset between active and archived.
func (c *Catalog) SetStatus(ctx context.Context, id int64, status string) error {
	res, err := c.bun.NewUpdate().
		Model((*AssetModel)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().Unix()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// SetDimensions records decoded metadata on an asset after ingestion.
func (c *Catalog) SetDimensions(ctx context.Context, id int64, width, height int, format, mimeType string) error {
	_, err := c.bun.NewUpdate().
		Model((*AssetModel)(nil)).
		Set("width = ?", width).
		Set("height = ?", height).
		Set("format = ?", format).
		Set("mime_type = ?", mimeType).
		Set("updated_at = ?", time.Now().Unix()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// DeleteAssetRow removes the asset row and reports how many rows went away.
func (c *Catalog) DeleteAssetRow(ctx context.Context, id int64) (int64, error) {
	res, err := c.bun.NewDelete().
		Model((*AssetModel)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteTagRows removes all tag rows for an asset.
func (c *Catalog) DeleteTagRows(ctx context.Context, id int64) (int64, error) {
	res, err := c.bun.NewDelete().
		Model((*TagModel)(nil)).
		Where("image_id = ?", id).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteVariantRows removes all variant rows for an asset.
func (c *Catalog) DeleteVariantRows(ctx context.Context, id int64) (int64, error) {
	res, err := c.bun.NewDelete().
		Model((*VariantModel)(nil)).
		Where("image_id = ?", id).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// --- Tag Operations ---

// TagsFor returns all tag rows for an asset.
func (c *Catalog) TagsFor(ctx context.Context, id int64) ([]TagModel, error) {
	var tags []TagModel
	err := c.bun.NewSelect().
		Model(&tags).
		Where("image_id = ?", id).
		Order("tag_type ASC", "tag_name ASC").
		Scan(ctx)
	return tags, err
}

// ReplaceManualTags replaces the full manual-tag set for an asset. AI tags are
// an independent population and stay untouched.
func (c *Catalog) ReplaceManualTags(ctx context.Context, id int64, names []string) error {
	return c.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*TagModel)(nil)).
			Where("image_id = ?", id).
			Where("tag_type = ?", TagTypeManual).
			Exec(ctx); err != nil {
			return err
		}
		if len(names) == 0 {
			return nil
		}
		models := make([]TagModel, 0, len(names))
		seen := make(map[string]bool, len(names))
		for _, name := range names {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			models = append(models, TagModel{
				ImageID:         id,
				TagName:         name,
				TagType:         TagTypeManual,
				ConfidenceScore: 1.0,
			})
		}
		if len(models) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&models).Exec(ctx)
		return err
	})
}

// UpsertAITags attaches classifier suggestions as type=ai tags, replacing any
// previous score for the same name.
func (c *Catalog) UpsertAITags(ctx context.Context, id int64, tags []Tag) error {
	if len(tags) == 0 {
		return nil
	}
	models := make([]TagModel, 0, len(tags))
	for _, t := range tags {
		score := t.ConfidenceScore
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		models = append(models, TagModel{
			ImageID:         id,
			TagName:         t.Name,
			TagType:         TagTypeAI,
			ConfidenceScore: score,
		})
	}
	_, err := c.bun.NewInsert().
		Model(&models).
		On("CONFLICT (image_id, tag_name, tag_type) DO UPDATE").
		Set("confidence_score = EXCLUDED.confidence_score").
		Exec(ctx)
	return err
}

// SetExtractedText records OCR-style text found by the classifier.
func (c *Catalog) SetExtractedText(ctx context.Context, id int64, text string) error {
	_, err := c.bun.NewUpdate().
		Model((*AssetModel)(nil)).
		Set("ai_text_extracted = ?", text).
		Set("updated_at = ?", time.Now().Unix()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// --- Variant Operations ---

// VariantsFor returns all variant rows for an asset.
func (c *Catalog) VariantsFor(ctx context.Context, id int64) ([]VariantModel, error) {
	var variants []VariantModel
	err := c.bun.NewSelect().
		Model(&variants).
		Where("image_id = ?", id).
		Order("name ASC").
		Scan(ctx)
	return variants, err
}

// UpsertVariant records a generated rendition (upserts on image_id+name).
func (c *Catalog) UpsertVariant(ctx context.Context, v *VariantModel) error {
	_, err := c.bun.NewInsert().
		Model(v).
		On("CONFLICT (image_id, name) DO UPDATE").
		Set("file_path = EXCLUDED.file_path").
		Set("file_size = EXCLUDED.file_size").
		Set("width = EXCLUDED.width").
		Set("height = EXCLUDED.height").
		Exec(ctx)
	return err
}
