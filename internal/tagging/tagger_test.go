package tagging

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediastore/internal/storage"
)

func TestLexiconClassifierMatches(t *testing.T) {
	t.Parallel()

	a := &storage.Asset{
		Filename: "img-1-aaaa-driver-swing.jpg",
		Title:    "신형 드라이버 리뷰",
		AltText:  "field shot",
	}

	c, err := LexiconClassifier{}.Classify(context.Background(), a)
	require.NoError(t, err)

	found := map[string]float64{}
	for _, s := range c.Tags {
		found[s.Name] = s.Confidence
	}

	// Keyword hits from filename, title and alt text.
	assert.Equal(t, 0.8, found["driver"])
	assert.Equal(t, 0.8, found["드라이버"])
	assert.Equal(t, 0.8, found["field"])
	assert.Equal(t, 0.8, found["리뷰"])

	// Theme tags from the matched groups.
	assert.Equal(t, 0.9, found[ThemeGolf])
	assert.Equal(t, 0.9, found[ThemeProduct])
	assert.NotContains(t, found, ThemeEvent)
}

func TestLexiconClassifierDeterministic(t *testing.T) {
	t.Parallel()

	a := &storage.Asset{Filename: "golf-event-promotion.png"}

	first, err := LexiconClassifier{}.Classify(context.Background(), a)
	require.NoError(t, err)
	second, err := LexiconClassifier{}.Classify(context.Background(), a)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.NotEmpty(t, first.Tags)
	for i := 1; i < len(first.Tags); i++ {
		assert.Less(t, first.Tags[i-1].Name, first.Tags[i].Name, "tags should be sorted")
	}
}

func TestLexiconClassifierNoMatch(t *testing.T) {
	t.Parallel()

	c, err := LexiconClassifier{}.Classify(context.Background(), &storage.Asset{Filename: "sunset.jpg"})
	require.NoError(t, err)
	assert.Empty(t, c.Tags)
}

func TestTaggerAppliesClassification(t *testing.T) {
	catalog, err := storage.CreateCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })
	ctx := context.Background()

	stored, _, err := catalog.InsertOrFetchAsset(ctx, &storage.AssetModel{
		ContentHashMD5:    "m",
		ContentHashSHA256: "s",
		FilePath:          "originals/blog/golf-driver.jpg",
		Filename:          "golf-driver.jpg",
		Status:            storage.StatusActive,
		UsageCount:        1,
	})
	require.NoError(t, err)

	// A manual tag that must survive re-tagging.
	require.NoError(t, catalog.ReplaceManualTags(ctx, stored.ID, []string{"hero"}))

	tagger := NewTagger(catalog, LexiconClassifier{})
	require.NoError(t, tagger.Tag(ctx, stored.ID))

	tags, err := catalog.TagsFor(ctx, stored.ID)
	require.NoError(t, err)

	var manual int
	aiNames := map[string]bool{}
	for _, tag := range tags {
		switch tag.TagType {
		case storage.TagTypeManual:
			manual++
		case storage.TagTypeAI:
			aiNames[tag.TagName] = true
		}
	}
	assert.Equal(t, 1, manual, "manual tags must survive")
	assert.True(t, aiNames["golf"])
	assert.True(t, aiNames["driver"])

	// Re-running refreshes rather than duplicates.
	require.NoError(t, tagger.Tag(ctx, stored.ID))
	again, err := catalog.TagsFor(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, len(tags), len(again))
}

func TestTaggerAppliesExtractedText(t *testing.T) {
	catalog, err := storage.CreateCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })
	ctx := context.Background()

	stored, _, err := catalog.InsertOrFetchAsset(ctx, &storage.AssetModel{
		ContentHashMD5:    "m2",
		ContentHashSHA256: "s2",
		FilePath:          "originals/blog/banner.jpg",
		Filename:          "banner.jpg",
		Status:            storage.StatusActive,
		UsageCount:        1,
	})
	require.NoError(t, err)

	tagger := NewTagger(catalog, nil)
	require.NoError(t, tagger.Apply(ctx, stored.ID, &Classification{
		Tags:          []Suggestion{{Name: "event", Confidence: 0.7}},
		ExtractedText: "봄맞이 특가 이벤트",
	}))

	a, err := catalog.LoadAsset(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "봄맞이 특가 이벤트", a.AITextExtracted)
}
