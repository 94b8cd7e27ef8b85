package asset

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"mediastore/internal/common"
	"mediastore/internal/storage"
	"mediastore/internal/tasks"
)

func newTestService(t *testing.T) (*Service, *storage.Catalog, *storage.FSBlobStore) {
	t.Helper()
	catalog, err := storage.CreateCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}
	t.Cleanup(func() { catalog.Close() })
	blobs := storage.NewMemBlobStore()
	svc := NewService(catalog, blobs, nil, nil)
	return svc, catalog, blobs
}

// pngBytes renders a small solid-color PNG.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 120, B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test png: %v", err)
	}
	return buf.Bytes()
}

type recordingPublisher struct {
	variantJobs []tasks.VariantJob
	taggingJobs []tasks.TaggingJob
}

func (r *recordingPublisher) PublishVariantJob(job tasks.VariantJob) error {
	r.variantJobs = append(r.variantJobs, job)
	return nil
}

func (r *recordingPublisher) PublishTaggingJob(job tasks.TaggingJob) error {
	r.taggingJobs = append(r.taggingJobs, job)
	return nil
}

type stubFetcher struct {
	file *FetchedFile
	err  error
}

func (f stubFetcher) Fetch(context.Context, string) (*FetchedFile, error) {
	return f.file, f.err
}

func TestIngestStoresNewContent(t *testing.T) {
	svc, _, blobs := newTestService(t)
	ctx := context.Background()

	data := pngBytes(t, 800, 500)
	result, err := svc.Ingest(ctx, IngestRequest{
		Data:             data,
		OriginalFilename: "driver-shot.png",
		UploadSource:     "campaign",
		UploadedBy:       "editor",
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if result.IsDuplicate {
		t.Error("First ingest should not be a duplicate")
	}

	a := result.Asset
	if a.ID == 0 {
		t.Fatal("Expected an assigned id")
	}
	if a.Format != "png" || a.Width != 800 || a.Height != 500 {
		t.Errorf("Unexpected metadata: %s %dx%d", a.Format, a.Width, a.Height)
	}
	if a.UsageCount != 1 {
		t.Errorf("Expected usage_count 1, got %d", a.UsageCount)
	}
	if a.UploadedBy != "editor" {
		t.Errorf("Expected uploaded_by to be recorded, got %q", a.UploadedBy)
	}

	stored, err := blobs.Get(ctx, a.FilePath)
	if err != nil {
		t.Fatalf("Stored blob missing: %v", err)
	}
	if !bytes.Equal(stored, data) {
		t.Error("Stored bytes differ from the source")
	}
	sum := sha256.Sum256(stored)
	if got := hex.EncodeToString(sum[:]); got != a.ContentHashSHA256 {
		t.Errorf("Recorded sha256 %s does not match stored bytes (%s)", a.ContentHashSHA256, got)
	}
}

func TestIngestReactivatesArchivedDuplicate(t *testing.T) {
	svc, catalog, _ := newTestService(t)
	ctx := context.Background()

	data := pngBytes(t, 120, 90)
	first, err := svc.Ingest(ctx, IngestRequest{Data: data, OriginalFilename: "retired.png", UploadSource: "blog"})
	if err != nil {
		t.Fatalf("First ingest failed: %v", err)
	}
	if err := catalog.SetStatus(ctx, first.Asset.ID, storage.StatusArchived); err != nil {
		t.Fatalf("Failed to archive asset: %v", err)
	}

	second, err := svc.Ingest(ctx, IngestRequest{Data: data, OriginalFilename: "wanted-again.png", UploadSource: "campaign"})
	if err != nil {
		t.Fatalf("Second ingest failed: %v", err)
	}
	if !second.IsDuplicate {
		t.Fatal("Expected duplicate detection")
	}
	if second.Asset.Status != storage.StatusActive {
		t.Errorf("Expected re-ingest to reactivate the asset, status is %q", second.Asset.Status)
	}
	if second.Asset.UsageCount != 2 {
		t.Errorf("Expected usage_count 2, got %d", second.Asset.UsageCount)
	}
}

func TestIngestDeduplicatesByHash(t *testing.T) {
	svc, _, blobs := newTestService(t)
	ctx := context.Background()

	data := pngBytes(t, 100, 100)
	first, err := svc.Ingest(ctx, IngestRequest{Data: data, OriginalFilename: "a.png", UploadSource: "blog"})
	if err != nil {
		t.Fatalf("First ingest failed: %v", err)
	}

	// Same bytes under a different name: no new blob, usage bumped.
	second, err := svc.Ingest(ctx, IngestRequest{Data: data, OriginalFilename: "b.png", UploadSource: "campaign"})
	if err != nil {
		t.Fatalf("Second ingest failed: %v", err)
	}
	if !second.IsDuplicate {
		t.Fatal("Expected duplicate detection")
	}
	if second.Asset.ID != first.Asset.ID {
		t.Errorf("Expected the original record %d, got %d", first.Asset.ID, second.Asset.ID)
	}
	if second.Asset.UsageCount != 2 {
		t.Errorf("Expected usage_count 2, got %d", second.Asset.UsageCount)
	}

	infos, err := blobs.List(ctx, "originals/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 1 {
		t.Errorf("Expected exactly one stored blob, got %d", len(infos))
	}
}

func TestIngestForceStoresAgain(t *testing.T) {
	svc, _, blobs := newTestService(t)
	ctx := context.Background()

	data := pngBytes(t, 60, 60)
	if _, err := svc.Ingest(ctx, IngestRequest{Data: data, OriginalFilename: "a.png"}); err != nil {
		t.Fatalf("First ingest failed: %v", err)
	}
	result, err := svc.Ingest(ctx, IngestRequest{Data: data, OriginalFilename: "a.png", ForceUpload: true})
	if err != nil {
		t.Fatalf("Forced ingest failed: %v", err)
	}
	if result.IsDuplicate {
		t.Error("Forced ingest should not report a duplicate")
	}

	infos, err := blobs.List(ctx, "originals/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 2 {
		t.Errorf("Expected two stored blobs after force, got %d", len(infos))
	}
}

func TestIngestUndecodableFallsBackToExtension(t *testing.T) {
	svc, _, _ := newTestService(t)

	result, err := svc.Ingest(context.Background(), IngestRequest{
		Data:             []byte("definitely not an image"),
		OriginalFilename: "broken.jpg",
	})
	if err != nil {
		t.Fatalf("Ingest should tolerate undecodable content: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Error("Expected a warning about the unreadable image")
	}
	if result.Asset.Format != "jpeg" {
		t.Errorf("Expected extension fallback format jpeg, got %q", result.Asset.Format)
	}
	if result.Asset.Width != 0 || result.Asset.Height != 0 {
		t.Errorf("Expected zero dimensions, got %dx%d", result.Asset.Width, result.Asset.Height)
	}
}

func TestIngestFetchFailure(t *testing.T) {
	svc, catalog, blobs := newTestService(t)
	svc = NewService(catalog, blobs, stubFetcher{err: common.ErrFetch}, nil)

	_, err := svc.Ingest(context.Background(), IngestRequest{URL: "https://example.com/x.jpg"})
	if !errors.Is(err, common.ErrFetch) {
		t.Errorf("Expected ErrFetch, got %v", err)
	}
}

func TestIngestPublishesPostProcessing(t *testing.T) {
	svc, catalog, blobs := newTestService(t)
	rec := &recordingPublisher{}
	svc = NewService(catalog, blobs, nil, rec)
	ctx := context.Background()

	data := pngBytes(t, 50, 50)
	result, err := svc.Ingest(ctx, IngestRequest{Data: data, OriginalFilename: "a.png"})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if len(rec.variantJobs) != 1 || rec.variantJobs[0].AssetID != result.Asset.ID {
		t.Errorf("Expected one variant job for asset %d, got %v", result.Asset.ID, rec.variantJobs)
	}
	if len(rec.taggingJobs) != 1 {
		t.Errorf("Expected one tagging job, got %v", rec.taggingJobs)
	}

	// Duplicates skip post-processing.
	if _, err := svc.Ingest(ctx, IngestRequest{Data: data, OriginalFilename: "a.png"}); err != nil {
		t.Fatalf("Duplicate ingest failed: %v", err)
	}
	if len(rec.variantJobs) != 1 {
		t.Errorf("Duplicate ingest should not queue more jobs, got %d", len(rec.variantJobs))
	}
}

func TestUpdateMetadata(t *testing.T) {
	svc, catalog, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Ingest(ctx, IngestRequest{Data: pngBytes(t, 30, 30), OriginalFilename: "a.png"})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	id := result.Asset.ID

	if err := catalog.UpsertAITags(ctx, id, []storage.Tag{{Name: "golf", ConfidenceScore: 0.9}}); err != nil {
		t.Fatalf("UpsertAITags failed: %v", err)
	}

	title := "Spring campaign hero"
	if err := svc.Update(ctx, id, UpdateRequest{
		Title: &title,
		Tags:  []string{"driver", "hero"},
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	a, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if a.Title != title {
		t.Errorf("Expected title %q, got %q", title, a.Title)
	}

	var manual, ai int
	for _, tag := range a.Tags {
		switch tag.Type {
		case storage.TagTypeManual:
			manual++
		case storage.TagTypeAI:
			ai++
		}
	}
	if manual != 2 {
		t.Errorf("Expected 2 manual tags, got %d", manual)
	}
	if ai != 1 {
		t.Errorf("Expected the ai tag to survive, got %d", ai)
	}
}

func TestUpdateUnknownID(t *testing.T) {
	svc, _, _ := newTestService(t)

	title := "x"
	err := svc.Update(context.Background(), 424242, UpdateRequest{Title: &title})
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteSoft(t *testing.T) {
	svc, _, blobs := newTestService(t)
	ctx := context.Background()

	result, err := svc.Ingest(ctx, IngestRequest{Data: pngBytes(t, 40, 40), OriginalFilename: "a.png"})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	id := result.Asset.ID

	del, err := svc.Delete(ctx, id, false)
	if err != nil {
		t.Fatalf("Soft delete failed: %v", err)
	}
	if !del.MetadataDeleted {
		t.Error("Soft delete should report metadata change")
	}

	// Archived asset is hidden from search but the blob survives.
	search := svc.Search(ctx, storage.SearchParams{})
	if search.Pagination.Total != 0 {
		t.Errorf("Expected archived asset hidden from search, total=%d", search.Pagination.Total)
	}
	exists, _ := blobs.Exists(ctx, result.Asset.FilePath)
	if !exists {
		t.Error("Soft delete must not remove the stored file")
	}
}

func TestDeletePermanentAndReingest(t *testing.T) {
	svc, catalog, blobs := newTestService(t)
	ctx := context.Background()

	data := pngBytes(t, 70, 70)
	result, err := svc.Ingest(ctx, IngestRequest{Data: data, OriginalFilename: "a.png"})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	id := result.Asset.ID
	if err := catalog.ReplaceManualTags(ctx, id, []string{"x"}); err != nil {
		t.Fatalf("ReplaceManualTags failed: %v", err)
	}

	del, err := svc.Delete(ctx, id, true)
	if err != nil {
		t.Fatalf("Permanent delete failed: %v", err)
	}
	if !del.StorageDeleted || del.DeletedRows != 1 || !del.MetadataDeleted {
		t.Errorf("Unexpected delete accounting: %+v", del)
	}
	if len(del.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", del.Warnings)
	}
	exists, _ := blobs.Exists(ctx, result.Asset.FilePath)
	if exists {
		t.Error("Original blob should be gone")
	}

	// Re-ingesting the same bytes creates a fresh record, not a duplicate.
	fresh, err := svc.Ingest(ctx, IngestRequest{Data: data, OriginalFilename: "a.png"})
	if err != nil {
		t.Fatalf("Re-ingest failed: %v", err)
	}
	if fresh.IsDuplicate {
		t.Error("Re-ingest after permanent delete should not be a duplicate")
	}
	if fresh.Asset.ID == id {
		t.Error("Expected a new id after permanent delete")
	}
	if fresh.Asset.UsageCount != 1 {
		t.Errorf("Expected fresh usage_count 1, got %d", fresh.Asset.UsageCount)
	}
}
