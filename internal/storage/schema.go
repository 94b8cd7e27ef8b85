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
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const SchemaVersion = "1"

// Default busy_timeout in milliseconds (30 seconds)
const DefaultBusyTimeout = 30000

// Environment variable names for busy_timeout configuration
const (
	// EnvBusyTimeout is the general busy_timeout override
	EnvBusyTimeout = "MEDIASTORE_BUSY_TIMEOUT"
	// EnvBatchBusyTimeout is the busy_timeout for batch jobs (audit, variant
	// regeneration) which hold longer read transactions
	EnvBatchBusyTimeout = "MEDIASTORE_BATCH_BUSY_TIMEOUT"
)

// DBContext indicates the context in which the catalog is being accessed
type DBContext int

const (
	// DBContextDefault uses the general busy_timeout
	DBContextDefault DBContext = iota
	// DBContextBatch uses the batch-job busy_timeout
	DBContextBatch
)

// Package-level config value (set via SetConfigBusyTimeout)
var configBusyTimeout int

// SetConfigBusyTimeout sets the config-based busy_timeout value.
// This should be called after loading the workspace config file.
// A value of 0 is ignored (use env var or default).
func SetConfigBusyTimeout(timeout int) {
	configBusyTimeout = timeout
}

// GetBusyTimeout returns the busy_timeout value for the given context.
// Priority: batch env > general env > config file > default
func GetBusyTimeout(ctx DBContext) int {
	if ctx == DBContextBatch {
		if val := os.Getenv(EnvBatchBusyTimeout); val != "" {
			if timeout, err := strconv.Atoi(val); err == nil && timeout > 0 {
				return timeout
			}
		}
	}
	if val := os.Getenv(EnvBusyTimeout); val != "" {
		if timeout, err := strconv.Atoi(val); err == nil && timeout > 0 {
			return timeout
		}
	}
	if configBusyTimeout > 0 {
		return configBusyTimeout
	}
	return DefaultBusyTimeout
}

// BuildDSN builds the SQLite DSN with the appropriate busy_timeout for the context
func BuildDSN(path string, ctx DBContext) string {
	timeout := GetBusyTimeout(ctx)
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=%d", path, timeout)
}

// Asset status values
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Tag type values
const (
	TagTypeManual = "manual"
	TagTypeAI     = "ai"
)

// Schema SQL for the catalog file
const catalogSchema = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- One row per distinct content hash. The unique index on content_hash_sha256
-- is the only cross-process coordination point for concurrent ingestion.
CREATE TABLE IF NOT EXISTS image_assets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    content_hash_md5 TEXT NOT NULL,
    content_hash_sha256 TEXT NOT NULL UNIQUE,
    file_path TEXT NOT NULL,
    filename TEXT NOT NULL,
    original_filename TEXT,
    mime_type TEXT,
    format TEXT,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    file_size INTEGER NOT NULL DEFAULT 0,
    upload_source TEXT NOT NULL DEFAULT 'manual',
    uploaded_by TEXT,
    status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'archived')),
    usage_count INTEGER NOT NULL DEFAULT 1,
    last_used_at INTEGER NOT NULL,
    alt_text TEXT,
    title TEXT,
    caption TEXT,
    description TEXT,
    ai_text_extracted TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assets_status ON image_assets(status);
CREATE INDEX IF NOT EXISTS idx_assets_md5 ON image_assets(content_hash_md5);
CREATE INDEX IF NOT EXISTS idx_assets_path ON image_assets(file_path);
CREATE INDEX IF NOT EXISTS idx_assets_usage ON image_assets(usage_count DESC);
CREATE INDEX IF NOT EXISTS idx_assets_source ON image_assets(upload_source);

-- Manual and AI tags are tracked as independent populations; tag_type is part
-- of the primary key so the same name may exist in both.
CREATE TABLE IF NOT EXISTS image_tags (
    image_id INTEGER NOT NULL,
    tag_name TEXT NOT NULL,
    tag_type TEXT NOT NULL DEFAULT 'manual' CHECK (tag_type IN ('manual', 'ai')),
    confidence_score REAL NOT NULL DEFAULT 1.0,
    PRIMARY KEY (image_id, tag_name, tag_type),
    FOREIGN KEY (image_id) REFERENCES image_assets(id)
);

CREATE INDEX IF NOT EXISTS idx_tags_name ON image_tags(tag_name);
CREATE INDEX IF NOT EXISTS idx_tags_image ON image_tags(image_id);

-- Named renditions of an original (thumbnail, medium, large, webp)
CREATE TABLE IF NOT EXISTS image_variants (
    image_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    file_path TEXT NOT NULL,
    file_size INTEGER NOT NULL DEFAULT 0,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (image_id, name),
    FOREIGN KEY (image_id) REFERENCES image_assets(id)
);
`

const initCatalog = `
INSERT OR IGNORE INTO schema_info (key, value) VALUES ('version', ?);
INSERT OR IGNORE INTO schema_info (key, value) VALUES ('type', 'catalog');
INSERT OR IGNORE INTO schema_info (key, value) VALUES ('created_at', datetime('now'));
`

// execStatements executes multiple SQL statements separated by semicolons.
// libsql driver doesn't support multi-statement Exec, so we split and execute individually.
func execStatements(db *sql.DB, sqlScript string, args ...interface{}) error {
	statements := splitStatements(sqlScript)
	argIdx := 0
	for _, stmt := range statements {
		if stmt == "" {
			continue
		}
		// Count placeholders in this statement
		placeholders := strings.Count(stmt, "?")
		stmtArgs := args[argIdx : argIdx+placeholders]
		argIdx += placeholders
		if _, err := db.Exec(stmt, stmtArgs...); err != nil {
			return err
		}
	}
	return nil
}

// splitStatements splits a SQL script into individual statements
func splitStatements(script string) []string {
	var statements []string
	var current strings.Builder

	lines := strings.Split(script, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		// Skip comments and empty lines
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			statements = append(statements, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	// Handle any remaining content
	if current.Len() > 0 {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
