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

// Package tagging classifies assets and writes the resulting AI tags into
// the catalog. The classifier itself is pluggable; a vision API client and
// the built-in lexicon matcher both fit the same interface.
package tagging

import (
	"context"
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"mediastore/internal/storage"
)

// Suggestion is one proposed tag with the classifier's confidence.
type Suggestion struct {
	Name       string
	Confidence float64
}

// Classification is the classifier's full output for one asset.
type Classification struct {
	Tags          []Suggestion
	ExtractedText string
}

// Classifier produces tag suggestions for an asset. Implementations get the
// catalog record but fetch pixel data themselves if they need it.
type Classifier interface {
	Classify(ctx context.Context, a *storage.Asset) (*Classification, error)
}

// Tagger applies a classifier's output to the catalog. Manual tags are never
// touched; AI tags are upserted so re-analysis refreshes confidences.
type Tagger struct {
	catalog    *storage.Catalog
	classifier Classifier
}

func NewTagger(catalog *storage.Catalog, classifier Classifier) *Tagger {
	return &Tagger{catalog: catalog, classifier: classifier}
}

// Tag classifies one asset and persists the result.
func (t *Tagger) Tag(ctx context.Context, id int64) error {
	a, err := t.catalog.LoadAsset(ctx, id)
	if err != nil {
		return err
	}

	c, err := t.classifier.Classify(ctx, a)
	if err != nil {
		return fmt.Errorf("classification of asset %d failed: %w", id, err)
	}
	return t.Apply(ctx, id, c)
}

// Apply writes a classification into the catalog.
func (t *Tagger) Apply(ctx context.Context, id int64, c *Classification) error {
	if c == nil {
		return nil
	}
	tags := make([]storage.Tag, 0, len(c.Tags))
	for _, s := range c.Tags {
		tags = append(tags, storage.Tag{
			ImageID:         id,
			Name:            s.Name,
			Type:            storage.TagTypeAI,
			ConfidenceScore: s.Confidence,
		})
	}
	if err := t.catalog.UpsertAITags(ctx, id, tags); err != nil {
		return fmt.Errorf("failed to store ai tags for asset %d: %w", id, err)
	}
	if c.ExtractedText != "" {
		if err := t.catalog.SetExtractedText(ctx, id, c.ExtractedText); err != nil {
			return fmt.Errorf("failed to store extracted text for asset %d: %w", id, err)
		}
	}
	log.Debugf("[Tagging] Asset %d: %d ai tag(s) applied", id, len(tags))
	return nil
}

// LexiconClassifier matches the keyword lexicon against an asset's textual
// metadata. It needs no network and no pixels, which makes it the default
// classifier when no vision client is configured.
type LexiconClassifier struct{}

const (
	keywordConfidence = 0.8
	themeConfidence   = 0.9
)

// Classify scans filename, original filename, title and alt text for lexicon
// terms. Each matched term becomes a tag, and each group with at least one
// match contributes its theme tag. Output order is deterministic.
func (LexiconClassifier) Classify(_ context.Context, a *storage.Asset) (*Classification, error) {
	haystack := strings.ToLower(strings.Join([]string{
		a.Filename, a.OriginalFilename, a.Title, a.AltText,
	}, " "))

	found := map[string]float64{}
	match := func(terms []string, theme string) {
		hit := false
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				found[term] = keywordConfidence
				hit = true
			}
		}
		if hit {
			found[theme] = themeConfidence
		}
	}
	match(GolfKeywords, ThemeGolf)
	match(ProductKeywords, ThemeProduct)
	match(EventKeywords, ThemeEvent)

	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	sort.Strings(names)

	c := &Classification{}
	for _, name := range names {
		c.Tags = append(c.Tags, Suggestion{Name: name, Confidence: found[name]})
	}
	return c, nil
}
