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
	"time"

	"github.com/uptrace/bun"
)

// Bun ORM models for the catalog tables. Times are stored as Unix timestamps
// in the database; the domain structs carry time.Time.

// SchemaInfoModel represents the schema_info table
type SchemaInfoModel struct {
	bun.BaseModel `bun:"table:schema_info"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

// AssetModel represents the image_assets table
type AssetModel struct {
	bun.BaseModel `bun:"table:image_assets"`

	ID                int64  `bun:"id,pk,autoincrement"`
	ContentHashMD5    string `bun:"content_hash_md5,notnull"`
	ContentHashSHA256 string `bun:"content_hash_sha256,notnull"`
	FilePath          string `bun:"file_path,notnull"`
	Filename          string `bun:"filename,notnull"`
	OriginalFilename  string `bun:"original_filename"`
	MimeType          string `bun:"mime_type"`
	Format            string `bun:"format"`
	Width             int64  `bun:"width,notnull"`
	Height            int64  `bun:"height,notnull"`
	FileSize          int64  `bun:"file_size,notnull"`
	UploadSource      string `bun:"upload_source,notnull"`
	UploadedBy        string `bun:"uploaded_by"`
	Status            string `bun:"status,notnull"`
	UsageCount        int64  `bun:"usage_count,notnull"`
	LastUsedAt        int64  `bun:"last_used_at,notnull"`
	AltText           string `bun:"alt_text"`
	Title             string `bun:"title"`
	Caption           string `bun:"caption"`
	Description       string `bun:"description"`
	AITextExtracted   string `bun:"ai_text_extracted"`
	CreatedAt         int64  `bun:"created_at,notnull"`
	UpdatedAt         int64  `bun:"updated_at,notnull"`
}

// TagModel represents the image_tags table
type TagModel struct {
	bun.BaseModel `bun:"table:image_tags"`

	ImageID         int64   `bun:"image_id,pk"`
	TagName         string  `bun:"tag_name,pk"`
	TagType         string  `bun:"tag_type,pk"` // "manual" or "ai"
	ConfidenceScore float64 `bun:"confidence_score,notnull"`
}

// VariantModel represents the image_variants table
type VariantModel struct {
	bun.BaseModel `bun:"table:image_variants"`

	ImageID   int64  `bun:"image_id,pk"`
	Name      string `bun:"name,pk"` // "thumbnail", "medium", "large", "webp"
	FilePath  string `bun:"file_path,notnull"`
	FileSize  int64  `bun:"file_size,notnull"`
	Width     int64  `bun:"width,notnull"`
	Height    int64  `bun:"height,notnull"`
	CreatedAt int64  `bun:"created_at,notnull"`
}

// Asset is the canonical catalog record for one distinct content hash.
type Asset struct {
	ID                int64
	ContentHashMD5    string
	ContentHashSHA256 string
	FilePath          string
	Filename          string
	OriginalFilename  string
	MimeType          string
	Format            string
	Width             int
	Height            int
	FileSize          int64
	UploadSource      string
	UploadedBy        string
	Status            string
	UsageCount        int64
	LastUsedAt        time.Time
	AltText           string
	Title             string
	Caption           string
	Description       string
	AITextExtracted   string
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// Tags and Variants are loaded on demand by the catalog query methods.
	Tags     []Tag
	Variants []Variant
}

// Tag is a manual or AI-derived label attached to an asset.
type Tag struct {
	ImageID         int64
	Name            string
	Type            string // "manual" or "ai"
	ConfidenceScore float64
}

// Variant is a derived rendition of an original asset.
type Variant struct {
	ImageID   int64
	Name      string
	FilePath  string
	FileSize  int64
	Width     int
	Height    int
	CreatedAt time.Time
}

// ToAsset converts an AssetModel to the domain Asset struct
func (m *AssetModel) ToAsset() *Asset {
	return &Asset{
		ID:                m.ID,
		ContentHashMD5:    m.ContentHashMD5,
		ContentHashSHA256: m.ContentHashSHA256,
		FilePath:          m.FilePath,
		Filename:          m.Filename,
		OriginalFilename:  m.OriginalFilename,
		MimeType:          m.MimeType,
		Format:            m.Format,
		Width:             int(m.Width),
		Height:            int(m.Height),
		FileSize:          m.FileSize,
		UploadSource:      m.UploadSource,
		UploadedBy:        m.UploadedBy,
		Status:            m.Status,
		UsageCount:        m.UsageCount,
		LastUsedAt:        time.Unix(m.LastUsedAt, 0),
		AltText:           m.AltText,
		Title:             m.Title,
		Caption:           m.Caption,
		Description:       m.Description,
		AITextExtracted:   m.AITextExtracted,
		CreatedAt:         time.Unix(m.CreatedAt, 0),
		UpdatedAt:         time.Unix(m.UpdatedAt, 0),
	}
}

// ToTag converts a TagModel to the domain Tag struct
func (m *TagModel) ToTag() *Tag {
	return &Tag{
		ImageID:         m.ImageID,
		Name:            m.TagName,
		Type:            m.TagType,
		ConfidenceScore: m.ConfidenceScore,
	}
}

// ToVariant converts a VariantModel to the domain Variant struct
func (m *VariantModel) ToVariant() *Variant {
	return &Variant{
		ImageID:   m.ImageID,
		Name:      m.Name,
		FilePath:  m.FilePath,
		FileSize:  m.FileSize,
		Width:     int(m.Width),
		Height:    int(m.Height),
		CreatedAt: time.Unix(m.CreatedAt, 0),
	}
}
