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

package audit

import (
	"context"
	"regexp"
	"strings"

	"mediastore/internal/common"
)

// ReferenceChecker decides whether published content still points at a
// stored file. Implementations range from the built-in ContentProbe to a
// client querying the live CMS.
type ReferenceChecker interface {
	Referenced(ctx context.Context, storagePath, filename string) (bool, error)
}

// Artifact is one piece of published content to probe for image references.
type Artifact struct {
	Name string
	Body string
}

var (
	imgTagRe   = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"']+)["']`)
	bgImageRe  = regexp.MustCompile(`(?i)background-image:\s*url\(["']?([^"')]+)["']?\)`)
	markdownRe = regexp.MustCompile(`!\[[^\]]*\]\(([^)]+)\)`)
	// Storage object URLs carry the object path after the bucket segment.
	objectURLRe  = regexp.MustCompile(`/storage/v1/object/public/[^/]+/(.+)$`)
	uuidPrefixRe = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}-(.+)$`)
)

// ExtractImageRefs pulls every image reference out of an artifact body:
// HTML img tags, CSS background-image urls, and markdown image syntax.
func ExtractImageRefs(body string) []string {
	var refs []string
	for _, re := range []*regexp.Regexp{imgTagRe, bgImageRe, markdownRe} {
		for _, m := range re.FindAllStringSubmatch(body, -1) {
			refs = append(refs, strings.TrimSpace(m[1]))
		}
	}
	return refs
}

// ContentProbe is the built-in ReferenceChecker. It extracts image
// references from a fixed artifact set once and answers membership queries
// with the layered filename match.
type ContentProbe struct {
	refs []string
}

// NewContentProbe extracts references from every artifact up front.
func NewContentProbe(artifacts []Artifact) *ContentProbe {
	p := &ContentProbe{}
	for _, a := range artifacts {
		p.refs = append(p.refs, ExtractImageRefs(a.Body)...)
	}
	return p
}

// RefCount reports how many extracted references there are.
func (p *ContentProbe) RefCount() int {
	return len(p.refs)
}

// Referenced reports whether any extracted reference matches the file.
func (p *ContentProbe) Referenced(_ context.Context, storagePath, filename string) (bool, error) {
	for _, ref := range p.refs {
		if MatchesImage(ref, storagePath, filename) {
			return true, nil
		}
	}
	return false, nil
}

// MatchesImage decides whether an extracted reference points at the stored
// file. Published URLs are messy, so the comparison is layered: exact object
// path, relative path containment, plain filename, normalized filename, and
// finally both sides with generated prefixes stripped.
func MatchesImage(ref, storagePath, filename string) bool {
	if ref == "" {
		return false
	}

	if m := objectURLRe.FindStringSubmatch(ref); m != nil {
		objectPath := m[1]
		if i := strings.IndexByte(objectPath, '?'); i >= 0 {
			objectPath = objectPath[:i]
		}
		if objectPath == storagePath {
			return true
		}
		if sameFilename(common.BaseName(objectPath), filename) {
			return true
		}
	}

	if strings.HasPrefix(ref, "/originals/") || strings.HasPrefix(ref, "/campaigns/") {
		relative := strings.TrimPrefix(ref, "/")
		if strings.Contains(storagePath, relative) || strings.Contains(relative, storagePath) {
			return true
		}
		if sameFilename(common.BaseName(relative), filename) {
			return true
		}
	}

	refName := common.BaseName(ref)
	if sameFilename(refName, filename) {
		return true
	}
	if strings.Contains(ref, storagePath) {
		return true
	}

	// Prefix-stripped comparison catches re-uploads whose generated
	// filename fragment differs but whose original name survives.
	refBase := stripUUIDPrefix(common.StripGeneratedPrefix(refName))
	fileBase := stripUUIDPrefix(common.StripGeneratedPrefix(filename))
	if refBase != refName || fileBase != filename {
		if sameFilename(refBase, fileBase) {
			return true
		}
	}

	return false
}

func sameFilename(a, b string) bool {
	if a == b {
		return true
	}
	na, nb := common.NormalizeFilename(a), common.NormalizeFilename(b)
	return na != "" && nb != "" && na == nb
}

func stripUUIDPrefix(name string) string {
	if m := uuidPrefixRe.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return name
}
