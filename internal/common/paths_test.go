package common

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"root", "/", ""},
		{"dot", ".", ""},
		{"simple", "foo", "foo"},
		{"leading_slash", "/foo", "foo"},
		{"trailing_slash", "foo/", "foo"},
		{"nested", "originals/campaign/2025-05/a.jpg", "originals/campaign/2025-05/a.jpg"},
		{"double_slash", "foo//bar", "foo/bar"},
		{"backslashes", `foo\bar`, "foo/bar"},
		{"dot_middle", "foo/./bar", "foo/bar"},
		{"dotdot_middle", "foo/../bar", "bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.input))
		})
	}
}

func TestBaseName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "a.jpg", "a.jpg"},
		{"nested", "originals/blog/a.jpg", "a.jpg"},
		{"query_string", "https://cdn.example.com/a.jpg?width=600&format=webp", "a.jpg"},
		{"trailing_slash", "originals/blog/", "blog"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseName(tt.input))
		})
	}
}

func TestExt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "jpg", Ext("photo.JPG"))
	assert.Equal(t, "webp", Ext("originals/a/b.webp"))
	assert.Equal(t, "png", Ext("a.png?width=150"))
	assert.Equal(t, "", Ext("noext"))
}

func TestStripGeneratedPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"generated_with_original", "img-1715000000000-a1b2c3d4-driver-shot.jpg", "driver-shot.jpg"},
		{"uuid_prefixed", "123e4567-e89b-12d3-a456-426614174000-swing.png", "swing.png"},
		{"fully_generated", "img-1715000000000-a1b2c3d4.jpg", ""},
		{"plain", "driver-shot.jpg", "driver-shot.jpg"},
		{"short_numbers", "img-123-ab-x.jpg", "img-123-ab-x.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripGeneratedPrefix(tt.input))
		})
	}
}

func TestNormalizeFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase_strip", "Driver-Shot_01.JPG", "drivershot01"},
		{"hangul_preserved", "골프장-전경.jpg", "골프장전경"},
		{"generated_prefix_stripped", "img-1715000000000-a1b2c3d4-Drive Shot.jpg", "driveshot"},
		{"fully_generated_empty", "img-1715000000000-a1b2c3d4.jpg", ""},
		{"path_components_ignored", "originals/blog/Drive.jpg", "drive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFilename(tt.input))
		})
	}
}

func TestCanonicalPath(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 14, 10, 30, 0, 0, time.UTC)
	p := CanonicalPath("campaign", "Driver Shot.PNG", now)

	assert.True(t, strings.HasPrefix(p, "originals/campaign/2025-05/img-"), p)
	assert.True(t, strings.HasSuffix(p, ".png"), p)

	// Distinct calls must not collide even at the same instant.
	assert.NotEqual(t, p, CanonicalPath("campaign", "Driver Shot.PNG", now))

	// Unknown source and missing extension fall back.
	fallback := CanonicalPath("", "noext", now)
	assert.True(t, strings.HasPrefix(fallback, "originals/manual/2025-05/"), fallback)
	assert.True(t, strings.HasSuffix(fallback, ".jpg"), fallback)
}

func TestVariantPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"originals/blog/2025-05/img-1-aaaa-thumbnail.webp",
		VariantPath("originals/blog/2025-05/img-1-aaaa.jpg", "thumbnail"))
	assert.Equal(t,
		"originals/blog/noext-medium.webp",
		VariantPath("originals/blog/noext", "medium"))
}

func TestPublicURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"https://cdn.example.com/assets/originals/a.jpg",
		PublicURL("https://cdn.example.com/assets/", "originals/a.jpg"))
	assert.Equal(t, "/originals/a.jpg", PublicURL("", "originals/a.jpg"))
}

func TestPathFromURL(t *testing.T) {
	t.Parallel()

	base := "https://cdn.example.com/assets"
	assert.Equal(t, "originals/a.jpg", PathFromURL(base, base+"/originals/a.jpg"))
	assert.Equal(t, "originals/a.jpg", PathFromURL(base, base+"/originals/a.jpg?width=600"))
	assert.Equal(t, "", PathFromURL(base, "https://elsewhere.example.com/a.jpg"))

	// Object-store style URLs resolve without a configured base.
	assert.Equal(t,
		"originals/campaigns/2025-05/x.jpg",
		PathFromURL("", "https://x.example.co/storage/v1/object/public/blog-images/originals/campaigns/2025-05/x.jpg"))
}
