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

// Package recommend ranks catalogued images for a draft piece of content.
// Scoring is pure arithmetic over catalog data, so the same catalog state
// and the same content always produce the same ranking. There is no trained
// model anywhere in here.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"mediastore/internal/storage"
	"mediastore/internal/tagging"
)

// DefaultMaxImages caps a recommendation set when the caller does not.
const DefaultMaxImages = 5

// Content is the draft the caller wants images for.
type Content struct {
	Title    string
	Body     string
	Category string
	Tags     []string
}

// Options tunes one recommendation run.
type Options struct {
	MaxImages int
	// ImageTypes hints at the desired placements (featured, content).
	// Any non-empty value enables the dimension heuristic strategy.
	ImageTypes []string
}

// Analysis is the content signature the strategies run on.
type Analysis struct {
	Keywords       []string
	Themes         []string
	ImageTypes     []string
	Priority       string
	GolfRelated    bool
	ProductRelated bool
	EventRelated   bool
}

// Recommendation is one ranked image.
type Recommendation struct {
	Asset     *storage.Asset
	MatchType string
	Score     float64
	Reason    string
	// AltText is the asset's alt text, synthesized from its tags when the
	// asset has none.
	AltText string
}

// Result is a full recommendation run.
type Result struct {
	Recommendations []Recommendation
	Analysis        Analysis
	// TotalFound counts strategy hits before dedup and truncation.
	TotalFound int
}

// Engine runs the recommendation strategies against a catalog.
type Engine struct {
	catalog *storage.Catalog
	now     func() time.Time
}

func NewEngine(catalog *storage.Catalog) *Engine {
	return &Engine{catalog: catalog, now: time.Now}
}

// Recommend analyzes the content and runs the four strategies: keyword tag
// match, theme match over AI tags, dimension heuristic, and the popularity
// fallback. Candidates are merged by asset id keeping the best score, bonus
// adjusted, clamped and sorted score-descending with id as the tiebreak.
func (e *Engine) Recommend(ctx context.Context, content Content, opts Options) (*Result, error) {
	if content.Title == "" && content.Body == "" {
		return nil, fmt.Errorf("recommendation needs a title or body")
	}
	maxImages := opts.MaxImages
	if maxImages <= 0 {
		maxImages = DefaultMaxImages
	}

	analysis := AnalyzeContent(content)
	log.Debugf("[Recommend] Signature: %d keyword(s), %d theme(s), priority=%s",
		len(analysis.Keywords), len(analysis.Themes), analysis.Priority)

	var candidates []Recommendation
	candidates = append(candidates, e.byKeywords(ctx, analysis, maxImages)...)
	candidates = append(candidates, e.byThemes(ctx, analysis, maxImages)...)
	candidates = append(candidates, e.byDimensions(ctx, analysis, opts.ImageTypes, maxImages)...)
	if len(candidates) < maxImages {
		candidates = append(candidates, e.popular(ctx, maxImages-len(candidates))...)
	}

	totalFound := len(candidates)
	merged := e.mergeAndScore(candidates, analysis)
	if len(merged) > maxImages {
		merged = merged[:maxImages]
	}
	for i := range merged {
		merged[i].AltText = altTextFor(merged[i].Asset, analysis)
	}

	return &Result{
		Recommendations: merged,
		Analysis:        analysis,
		TotalFound:      totalFound,
	}, nil
}

// AnalyzeContent extracts the keyword and theme signature from the draft.
func AnalyzeContent(content Content) Analysis {
	analysis := Analysis{Priority: "medium"}

	allText := strings.ToLower(strings.Join(append(
		[]string{content.Title, content.Body}, content.Tags...), " "))

	scan := func(terms []string) bool {
		hit := false
		for _, term := range terms {
			if strings.Contains(allText, term) {
				analysis.Keywords = append(analysis.Keywords, term)
				hit = true
			}
		}
		return hit
	}

	analysis.GolfRelated = scan(tagging.GolfKeywords)
	analysis.ProductRelated = scan(tagging.ProductKeywords)
	analysis.EventRelated = scan(tagging.EventKeywords)

	if analysis.GolfRelated {
		analysis.Themes = append(analysis.Themes, tagging.ThemeGolf)
		analysis.Priority = "high"
	}
	if analysis.ProductRelated {
		analysis.Themes = append(analysis.Themes, tagging.ThemeProduct)
	}
	if analysis.EventRelated {
		analysis.Themes = append(analysis.Themes, tagging.ThemeEvent)
	}
	for _, theme := range tagging.CategoryThemes[content.Category] {
		if !contains(analysis.Themes, theme) {
			analysis.Themes = append(analysis.Themes, theme)
		}
	}

	if analysis.GolfRelated {
		analysis.ImageTypes = append(analysis.ImageTypes, "golf_equipment", "golf_course", "golf_action")
	}
	if analysis.ProductRelated {
		analysis.ImageTypes = append(analysis.ImageTypes, "product_shot", "lifestyle")
	}
	if analysis.EventRelated {
		analysis.ImageTypes = append(analysis.ImageTypes, "event_banner", "promotion")
	}

	return analysis
}

func (e *Engine) byKeywords(ctx context.Context, analysis Analysis, limit int) []Recommendation {
	if len(analysis.Keywords) == 0 {
		return nil
	}
	assets, err := e.catalog.ActiveByTagNames(ctx, analysis.Keywords, limit)
	if err != nil {
		log.Warnf("[Recommend] Keyword strategy failed: %v", err)
		return nil
	}
	reason := fmt.Sprintf("키워드 \"%s\" 매칭", strings.Join(analysis.Keywords, ", "))
	out := make([]Recommendation, 0, len(assets))
	for _, a := range assets {
		out = append(out, Recommendation{
			Asset:     a,
			MatchType: "keyword",
			Score:     keywordScore(a, analysis.Keywords),
			Reason:    reason,
		})
	}
	return out
}

func (e *Engine) byThemes(ctx context.Context, analysis Analysis, limit int) []Recommendation {
	if len(analysis.Themes) == 0 {
		return nil
	}
	assets, err := e.catalog.ActiveByAITagSubstring(ctx, analysis.Themes, limit)
	if err != nil {
		log.Warnf("[Recommend] Theme strategy failed: %v", err)
		return nil
	}
	reason := fmt.Sprintf("테마 \"%s\" 매칭", strings.Join(analysis.Themes, ", "))
	out := make([]Recommendation, 0, len(assets))
	for _, a := range assets {
		out = append(out, Recommendation{
			Asset:     a,
			MatchType: "theme",
			Score:     themeScore(a, analysis.Themes),
			Reason:    reason,
		})
	}
	return out
}

func (e *Engine) byDimensions(ctx context.Context, analysis Analysis, imageTypes []string, limit int) []Recommendation {
	types := analysis.ImageTypes
	if len(imageTypes) > 0 {
		types = imageTypes
	}
	if len(types) == 0 {
		return nil
	}
	assets, err := e.catalog.ActiveByMinDimensions(ctx, 600, 400, limit)
	if err != nil {
		log.Warnf("[Recommend] Dimension strategy failed: %v", err)
		return nil
	}
	reason := fmt.Sprintf("이미지 타입 \"%s\" 적합", strings.Join(types, ", "))
	out := make([]Recommendation, 0, len(assets))
	for _, a := range assets {
		out = append(out, Recommendation{
			Asset:     a,
			MatchType: "type",
			Score:     dimensionScore(a),
			Reason:    reason,
		})
	}
	return out
}

func (e *Engine) popular(ctx context.Context, limit int) []Recommendation {
	if limit <= 0 {
		return nil
	}
	assets, err := e.catalog.ActivePopular(ctx, limit)
	if err != nil {
		log.Warnf("[Recommend] Popularity fallback failed: %v", err)
		return nil
	}
	out := make([]Recommendation, 0, len(assets))
	for _, a := range assets {
		out = append(out, Recommendation{
			Asset:     a,
			MatchType: "popular",
			Score:     0.5,
			Reason:    "인기 이미지",
		})
	}
	return out
}

// keywordScore averages the confidence of tags matching each keyword,
// capped at 1.0. Tags with no recorded confidence count as 0.5.
func keywordScore(a *storage.Asset, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	var score float64
	for _, keyword := range keywords {
		for _, tag := range a.Tags {
			if strings.Contains(strings.ToLower(tag.Name), strings.ToLower(keyword)) {
				c := tag.ConfidenceScore
				if c == 0 {
					c = 0.5
				}
				score += c
				break
			}
		}
	}
	return clamp(score / float64(len(keywords)))
}

// themeScore averages the confidence of AI tags containing each theme.
func themeScore(a *storage.Asset, themes []string) float64 {
	if len(themes) == 0 {
		return 0
	}
	var score float64
	for _, theme := range themes {
		for _, tag := range a.Tags {
			if tag.Type != storage.TagTypeAI {
				continue
			}
			if strings.Contains(strings.ToLower(tag.Name), strings.ToLower(theme)) {
				c := tag.ConfidenceScore
				if c == 0 {
					c = 0.5
				}
				score += c
				break
			}
		}
	}
	return clamp(score / float64(len(themes)))
}

// dimensionScore rates an image on shape and resolution alone.
func dimensionScore(a *storage.Asset) float64 {
	score := 0.3
	if a.Height > 0 {
		ratio := float64(a.Width) / float64(a.Height)
		if ratio > 1.3 && ratio < 2.0 {
			score += 0.3
		}
	}
	if a.Width >= 600 && a.Height >= 400 {
		score += 0.2
	}
	if a.Width >= 1200 && a.Height >= 800 {
		score += 0.2
	}
	return clamp(score)
}

// mergeAndScore dedups candidates by asset id keeping the highest-scoring
// entry, applies the bonus adjustments and sorts deterministically.
func (e *Engine) mergeAndScore(candidates []Recommendation, analysis Analysis) []Recommendation {
	best := map[int64]Recommendation{}
	for _, rec := range candidates {
		existing, ok := best[rec.Asset.ID]
		if !ok || rec.Score > existing.Score {
			best[rec.Asset.ID] = rec
		}
	}

	now := e.now()
	out := make([]Recommendation, 0, len(best))
	for _, rec := range best {
		if analysis.GolfRelated && rec.MatchType == "keyword" {
			rec.Score += 0.2
		}
		if rec.Asset.UsageCount > 5 {
			rec.Score += 0.1
		}
		if now.Sub(rec.Asset.CreatedAt) < 30*24*time.Hour {
			rec.Score += 0.1
		}
		rec.Score = clamp(rec.Score)
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Asset.ID < out[j].Asset.ID
	})
	return out
}

// altTextFor falls back to a synthesized alt text when the asset has none.
func altTextFor(a *storage.Asset, analysis Analysis) string {
	if a.AltText != "" {
		return a.AltText
	}
	mainTag := "이미지"
	if len(a.Tags) > 0 {
		mainTag = a.Tags[0].Name
	}
	switch {
	case analysis.GolfRelated:
		return mainTag + " - 골프 관련 이미지"
	case analysis.ProductRelated:
		return mainTag + " - 제품 이미지"
	default:
		return mainTag + " - 관련 이미지"
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
