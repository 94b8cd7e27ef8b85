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

// Package variants renders the derived WebP deliverables for catalogued
// originals. Rendering is idempotent: existing variants are skipped unless
// forced, and a re-run after a partial failure only redoes the missing ones.
package variants

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"mediastore/internal/common"
	"mediastore/internal/storage"
)

// DefaultQuality is the WebP encode quality for every deliverable.
const DefaultQuality = 85

// Deliverable is one rendition to produce. MaxEdge 0 keeps the original
// dimensions (the plain WebP re-encode).
type Deliverable struct {
	Name    string
	MaxEdge int
}

// Deliverables is the fixed rendition set, ordered smallest first so a
// partial run leaves the cheapest variants behind.
var Deliverables = []Deliverable{
	{Name: "thumbnail", MaxEdge: 150},
	{Name: "medium", MaxEdge: 600},
	{Name: "large", MaxEdge: 1200},
	{Name: "webp", MaxEdge: 0},
}

// Generator renders deliverables from original blobs into the blob store and
// records them in the catalog.
type Generator struct {
	catalog *storage.Catalog
	blobs   storage.BlobStore
	quality float32
}

// NewGenerator builds a Generator with the default WebP quality.
func NewGenerator(catalog *storage.Catalog, blobs storage.BlobStore) *Generator {
	return &Generator{catalog: catalog, blobs: blobs, quality: DefaultQuality}
}

// SetQuality overrides the WebP encode quality. Values outside (0,100] are
// ignored.
func (g *Generator) SetQuality(q int) {
	if q > 0 && q <= 100 {
		g.quality = float32(q)
	}
}

// Generate renders the missing deliverables for one asset. With force set,
// every deliverable is re-rendered and re-recorded. Failures are collected
// per deliverable; an error is returned only when at least one deliverable
// could not be produced, so the task router can retry just those.
func (g *Generator) Generate(ctx context.Context, assetID int64, force bool) error {
	model, err := g.catalog.GetAssetByID(ctx, assetID)
	if err != nil {
		return err
	}

	existing := map[string]bool{}
	if !force {
		recorded, err := g.catalog.VariantsFor(ctx, assetID)
		if err != nil {
			return fmt.Errorf("failed to list variants for asset %d: %w", assetID, err)
		}
		for _, v := range recorded {
			existing[v.Name] = true
		}
	}

	pending := make([]Deliverable, 0, len(Deliverables))
	for _, d := range Deliverables {
		if !existing[d.Name] {
			pending = append(pending, d)
		}
	}
	if len(pending) == 0 {
		log.Debugf("[Variants] Asset %d already has all deliverables", assetID)
		return nil
	}

	data, err := g.blobs.Get(ctx, model.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read original %s: %w", model.FilePath, err)
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode original %s: %w", model.FilePath, err)
	}

	// Ingest may have catalogued the asset without dimensions when the probe
	// failed; the full decode here is the chance to backfill them.
	if model.Width == 0 || model.Height == 0 {
		b := src.Bounds()
		if err := g.catalog.SetDimensions(ctx, assetID, b.Dx(), b.Dy(), format, "image/"+format); err != nil {
			log.Warnf("[Variants] Asset %d dimension backfill failed: %v", assetID, err)
		}
	}

	var failures []string
	for _, d := range pending {
		if err := g.render(ctx, model, src, d); err != nil {
			log.Warnf("[Variants] Asset %d deliverable %s failed: %v", assetID, d.Name, err)
			failures = append(failures, fmt.Sprintf("%s: %v", d.Name, err))
			continue
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("asset %d: %d deliverable(s) failed: %s",
			assetID, len(failures), strings.Join(failures, "; "))
	}

	log.Debugf("[Variants] Asset %d rendered %d deliverable(s)", assetID, len(pending))
	return nil
}

func (g *Generator) render(ctx context.Context, model *storage.AssetModel, src image.Image, d Deliverable) error {
	img := src
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	tw, th := fitInside(w, h, d.MaxEdge)
	if tw != w || th != h {
		img = scale(src, tw, th)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: g.quality}); err != nil {
		return fmt.Errorf("webp encode: %w", err)
	}

	path := common.VariantPath(model.FilePath, d.Name)
	if err := g.blobs.Put(ctx, path, buf.Bytes()); err != nil {
		return err
	}

	return g.catalog.UpsertVariant(ctx, &storage.VariantModel{
		ImageID:   model.ID,
		Name:      d.Name,
		FilePath:  path,
		FileSize:  int64(buf.Len()),
		Width:     int64(tw),
		Height:    int64(th),
		CreatedAt: time.Now().Unix(),
	})
}

// fitInside shrinks (w, h) so the longer edge is at most maxEdge, keeping
// aspect ratio. Images already within bounds keep their dimensions; nothing
// is ever upscaled. maxEdge 0 means keep the original size.
func fitInside(w, h, maxEdge int) (int, int) {
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return w, h
	}
	if w >= h {
		th := h * maxEdge / w
		if th < 1 {
			th = 1
		}
		return maxEdge, th
	}
	tw := w * maxEdge / h
	if tw < 1 {
		tw = 1
	}
	return tw, maxEdge
}

func scale(src image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}
