package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"mediastore/internal/common"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	c, err := CreateCatalog(dbPath)
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func testAsset(n int) *AssetModel {
	now := time.Now().Unix()
	return &AssetModel{
		ContentHashMD5:    fmt.Sprintf("md5-%d", n),
		ContentHashSHA256: fmt.Sprintf("sha-%d", n),
		FilePath:          fmt.Sprintf("originals/blog/2025-05/img-%d.jpg", n),
		Filename:          fmt.Sprintf("img-%d.jpg", n),
		OriginalFilename:  fmt.Sprintf("photo-%d.jpg", n),
		MimeType:          "image/jpeg",
		Format:            "jpeg",
		Width:             1200,
		Height:            800,
		FileSize:          1024,
		UploadSource:      "blog",
		Status:            StatusActive,
		UsageCount:        1,
		LastUsedAt:        now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestInsertOrFetchAsset(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	first, inserted, err := c.InsertOrFetchAsset(ctx, testAsset(1))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if !inserted {
		t.Fatal("Expected first insert to report inserted=true")
	}
	if first.ID == 0 {
		t.Fatal("Expected an assigned id")
	}

	// Same hash again: the existing row wins.
	dup := testAsset(1)
	dup.FilePath = "originals/blog/2025-05/other-path.jpg"
	second, inserted, err := c.InsertOrFetchAsset(ctx, dup)
	if err != nil {
		t.Fatalf("Second insert failed: %v", err)
	}
	if inserted {
		t.Error("Expected inserted=false for a duplicate hash")
	}
	if second.ID != first.ID {
		t.Errorf("Expected the original row (id %d), got %d", first.ID, second.ID)
	}
	if second.FilePath != first.FilePath {
		t.Errorf("Expected the original path %q, got %q", first.FilePath, second.FilePath)
	}
}

func TestGetAssetByHash(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	stored, _, err := c.InsertOrFetchAsset(ctx, testAsset(2))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := c.GetAssetByHash(ctx, "sha-2")
	if err != nil {
		t.Fatalf("GetAssetByHash failed: %v", err)
	}
	if got.ID != stored.ID {
		t.Errorf("Expected id %d, got %d", stored.ID, got.ID)
	}

	if _, err := c.GetAssetByHash(ctx, "sha-nope"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestIncrementUsage(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	stored, _, err := c.InsertOrFetchAsset(ctx, testAsset(3))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := c.IncrementUsage(ctx, stored.ID); err != nil {
			t.Fatalf("IncrementUsage failed: %v", err)
		}
	}

	got, err := c.GetAssetByID(ctx, stored.ID)
	if err != nil {
		t.Fatalf("GetAssetByID failed: %v", err)
	}
	if got.UsageCount != 4 {
		t.Errorf("Expected usage_count 4, got %d", got.UsageCount)
	}
}

func TestUpdateEditableNotFound(t *testing.T) {
	c := newTestCatalog(t)

	title := "new title"
	err := c.UpdateEditable(context.Background(), 9999, UpdateFields{Title: &title})
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestReplaceManualTagsKeepsAITags(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	stored, _, err := c.InsertOrFetchAsset(ctx, testAsset(4))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := c.UpsertAITags(ctx, stored.ID, []Tag{
		{Name: "golf", ConfidenceScore: 0.9},
	}); err != nil {
		t.Fatalf("UpsertAITags failed: %v", err)
	}
	if err := c.ReplaceManualTags(ctx, stored.ID, []string{"driver", "driver", "campaign"}); err != nil {
		t.Fatalf("ReplaceManualTags failed: %v", err)
	}
	if err := c.ReplaceManualTags(ctx, stored.ID, []string{"putter"}); err != nil {
		t.Fatalf("Second ReplaceManualTags failed: %v", err)
	}

	tags, err := c.TagsFor(ctx, stored.ID)
	if err != nil {
		t.Fatalf("TagsFor failed: %v", err)
	}

	var manual, ai []string
	for _, tag := range tags {
		switch tag.TagType {
		case TagTypeManual:
			manual = append(manual, tag.TagName)
		case TagTypeAI:
			ai = append(ai, tag.TagName)
		}
	}
	if len(manual) != 1 || manual[0] != "putter" {
		t.Errorf("Expected manual tags [putter], got %v", manual)
	}
	if len(ai) != 1 || ai[0] != "golf" {
		t.Errorf("Expected ai tags [golf] to survive, got %v", ai)
	}
}

func TestUpsertAITagsClampsConfidence(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	stored, _, err := c.InsertOrFetchAsset(ctx, testAsset(5))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := c.UpsertAITags(ctx, stored.ID, []Tag{
		{Name: "over", ConfidenceScore: 1.7},
		{Name: "under", ConfidenceScore: -0.3},
	}); err != nil {
		t.Fatalf("UpsertAITags failed: %v", err)
	}

	tags, err := c.TagsFor(ctx, stored.ID)
	if err != nil {
		t.Fatalf("TagsFor failed: %v", err)
	}
	for _, tag := range tags {
		if tag.ConfidenceScore < 0 || tag.ConfidenceScore > 1 {
			t.Errorf("Tag %s confidence %f outside [0,1]", tag.TagName, tag.ConfidenceScore)
		}
	}
}

func TestSearchAssets(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	for i := 10; i < 15; i++ {
		m := testAsset(i)
		m.Title = fmt.Sprintf("Driver review %d", i)
		if _, _, err := c.InsertOrFetchAsset(ctx, m); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	other := testAsset(20)
	other.Title = "Course scenery"
	other.Format = "png"
	stored, _, err := c.InsertOrFetchAsset(ctx, other)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Free text filter.
	assets, total, err := c.SearchAssets(ctx, SearchParams{Query: "driver"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 5 || len(assets) != 5 {
		t.Errorf("Expected 5 driver assets, got total=%d len=%d", total, len(assets))
	}

	// Format filter.
	assets, total, err = c.SearchAssets(ctx, SearchParams{Format: "png"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 1 || assets[0].ID != stored.ID {
		t.Errorf("Expected only the png asset, got total=%d", total)
	}

	// Archived assets disappear from search.
	if err := c.SetStatus(ctx, stored.ID, StatusArchived); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	_, total, err = c.SearchAssets(ctx, SearchParams{Format: "png"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 0 {
		t.Errorf("Expected archived asset to be hidden, got total=%d", total)
	}
}

func TestSearchByTagAfterTagging(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	stored, _, err := c.InsertOrFetchAsset(ctx, testAsset(30))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Not findable by tag yet.
	_, total, err := c.SearchAssets(ctx, SearchParams{Tags: []string{"golf"}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 0 {
		t.Fatalf("Expected no tag matches before tagging, got %d", total)
	}

	if err := c.UpsertAITags(ctx, stored.ID, []Tag{{Name: "golf", ConfidenceScore: 0.9}}); err != nil {
		t.Fatalf("UpsertAITags failed: %v", err)
	}

	assets, total, err := c.SearchAssets(ctx, SearchParams{Tags: []string{"golf"}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 1 || assets[0].ID != stored.ID {
		t.Errorf("Expected the tagged asset, got total=%d", total)
	}
	// Previously matching queries still match.
	_, total, err = c.SearchAssets(ctx, SearchParams{Format: "jpeg"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 1 {
		t.Errorf("Expected format search to keep matching, got %d", total)
	}
}

func TestSearchPagination(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	for i := 40; i < 47; i++ {
		if _, _, err := c.InsertOrFetchAsset(ctx, testAsset(i)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	page1, total, err := c.SearchAssets(ctx, SearchParams{Limit: 3, Page: 1, SortBy: "created_at"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 7 || len(page1) != 3 {
		t.Fatalf("Expected total=7 page of 3, got total=%d len=%d", total, len(page1))
	}
	page3, _, err := c.SearchAssets(ctx, SearchParams{Limit: 3, Page: 3, SortBy: "created_at"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(page3) != 1 {
		t.Errorf("Expected last page of 1, got %d", len(page3))
	}
}

func TestDeleteRowsAccounting(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	stored, _, err := c.InsertOrFetchAsset(ctx, testAsset(50))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := c.ReplaceManualTags(ctx, stored.ID, []string{"a", "b"}); err != nil {
		t.Fatalf("ReplaceManualTags failed: %v", err)
	}

	rows, err := c.DeleteAssetRow(ctx, stored.ID)
	if err != nil {
		t.Fatalf("DeleteAssetRow failed: %v", err)
	}
	if rows != 1 {
		t.Errorf("Expected 1 deleted row, got %d", rows)
	}
	tagRows, err := c.DeleteTagRows(ctx, stored.ID)
	if err != nil {
		t.Fatalf("DeleteTagRows failed: %v", err)
	}
	if tagRows != 2 {
		t.Errorf("Expected 2 deleted tag rows, got %d", tagRows)
	}

	// A re-ingest of the same content creates a fresh record.
	fresh, inserted, err := c.InsertOrFetchAsset(ctx, testAsset(50))
	if err != nil {
		t.Fatalf("Re-insert failed: %v", err)
	}
	if !inserted {
		t.Error("Expected re-insert after delete to create a new row")
	}
	if fresh.ID == stored.ID {
		t.Error("Expected a new id for the re-ingested asset")
	}
	if fresh.UsageCount != 1 {
		t.Errorf("Expected fresh usage_count 1, got %d", fresh.UsageCount)
	}
}
