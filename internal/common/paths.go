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

package common

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// NormalizePath cleans a storage path, removing leading/trailing slashes.
func NormalizePath(p string) string {
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimSuffix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// JoinPath joins storage path components.
func JoinPath(parts ...string) string {
	return NormalizePath(path.Join(parts...))
}

// BaseName returns the final component of a storage path, with any query
// string stripped (public URLs may carry rendition parameters).
func BaseName(p string) string {
	p = strings.SplitN(p, "?", 2)[0]
	p = NormalizePath(p)
	if p == "" {
		return ""
	}
	return path.Base(p)
}

// Ext returns the lowercased extension without the leading dot, or "" if none.
func Ext(p string) string {
	e := path.Ext(BaseName(p))
	return strings.ToLower(strings.TrimPrefix(e, "."))
}

// generatedPrefixes match filenames produced by the store itself or by older
// migrations: "img-<unixmilli>-<rand>-" style names and UUID-prefixed names.
var generatedPrefixes = []*regexp.Regexp{
	regexp.MustCompile(`^img-\d{10,16}-[0-9a-zA-Z]{4,12}-`),
	regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}-`),
}

// fullyGenerated matches names that are nothing but a generated id plus an
// extension. They carry no human-meaningful part at all.
var fullyGenerated = regexp.MustCompile(`^img-\d{10,16}-[0-9a-zA-Z]{4,12}\.[0-9a-zA-Z]+$`)

// StripGeneratedPrefix removes a generated-id prefix from a filename, if any.
// The remainder is the human-meaningful part used for duplicate grouping;
// fully generated names reduce to "".
func StripGeneratedPrefix(name string) string {
	if fullyGenerated.MatchString(name) {
		return ""
	}
	for _, re := range generatedPrefixes {
		if loc := re.FindStringIndex(name); loc != nil {
			return name[loc[1]:]
		}
	}
	return name
}

// NormalizeFilename reduces a filename to a grouping key: generated prefix
// stripped, extension stripped, lowercased, everything but letters, digits and
// Hangul removed. Returns "" when nothing meaningful remains.
func NormalizeFilename(name string) string {
	name = StripGeneratedPrefix(BaseName(name))
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	name = strings.ToLower(name)
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || unicode.Is(unicode.Hangul, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CanonicalPath derives the storage path for a newly ingested original:
// originals/<source>/<YYYY-MM>/img-<unixmilli>-<uuid8>.<ext>. The random
// fragment keeps concurrent ingestions of distinct content from colliding on
// a path; content identity is handled by the hash, not the path.
func CanonicalPath(uploadSource, originalFilename string, now time.Time) string {
	ext := Ext(originalFilename)
	if ext == "" {
		ext = "jpg"
	}
	source := NormalizeFilename(uploadSource)
	if source == "" {
		source = "manual"
	}
	name := fmt.Sprintf("img-%d-%s.%s", now.UnixMilli(), uuid.New().String()[:8], ext)
	return JoinPath("originals", source, now.Format("2006-01"), name)
}

// VariantPath derives the storage path for a named rendition of an original.
// Renditions live next to the original: <base>-<name>.webp.
func VariantPath(originalPath, name string) string {
	base := originalPath
	if i := strings.LastIndex(path.Base(base), "."); i > 0 {
		base = base[:strings.LastIndex(base, ".")]
	}
	return base + "-" + name + ".webp"
}

// PublicURL derives the public URL for a storage path. URLs are never stored;
// they are always recomputed from the base URL and the canonical path.
func PublicURL(baseURL, storagePath string) string {
	if baseURL == "" {
		return "/" + NormalizePath(storagePath)
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + NormalizePath(storagePath)
}

// PathFromURL extracts the storage path back out of a public URL, if the URL
// points into the given base. Returns "" when it does not.
func PathFromURL(baseURL, url string) string {
	url = strings.SplitN(url, "?", 2)[0]
	base := strings.TrimSuffix(baseURL, "/")
	if base != "" && strings.HasPrefix(url, base+"/") {
		return NormalizePath(strings.TrimPrefix(url, base+"/"))
	}
	// Object-store style URLs keep the path after /object/public/<bucket>/.
	if i := strings.Index(url, "/object/public/"); i >= 0 {
		rest := url[i+len("/object/public/"):]
		if j := strings.Index(rest, "/"); j >= 0 {
			return NormalizePath(rest[j+1:])
		}
	}
	return ""
}
