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

// Package audit plans duplicate cleanup over the blob store. The planner
// only reports; removal stays a human decision executed through the normal
// permanent-delete path.
package audit

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	log "github.com/sirupsen/logrus"

	"mediastore/internal/common"
	"mediastore/internal/storage"
)

// DefaultChunkSize bounds how many blobs one Plan call will hash.
const DefaultChunkSize = 200

// FileEntry is one scanned and hashed blob.
type FileEntry struct {
	Path       string
	Name       string
	Size       int64
	SHA256     string
	MD5        string
	Referenced bool
}

// Group is a set of files sharing a duplicate key.
type Group struct {
	// Key is the shared SHA-256 for hash groups, or the normalized
	// filename for name groups.
	Key   string
	Files []FileEntry
}

// Removal is one file the planner considers safe to delete, with the group
// member that should be kept in its place.
type Removal struct {
	File     FileEntry
	KeepFile string
}

// Summary is the headline accounting of one plan.
type Summary struct {
	TotalFiles      int
	FilesHashed     int
	DuplicateGroups int
	TotalDuplicates int
	NameGroups      int
	SafeToRemove    int
	Partial         bool
}

// Plan is the full audit output.
type Plan struct {
	Summary      Summary
	HashGroups   []Group
	NameGroups   []Group
	SafeToRemove []Removal
	KeepImages   []FileEntry
	// NextCursor resumes a partial scan; empty when the scan completed.
	NextCursor string
}

// PlanRequest scopes one audit run.
type PlanRequest struct {
	Prefix string
	Cursor string
	// Limit overrides the planner's chunk size when positive.
	Limit int
}

// Planner scans a blob store prefix, hashes the content, groups duplicates
// and partitions them by reference status.
type Planner struct {
	blobs    storage.BlobStore
	checker  ReferenceChecker
	excludes *ignore.GitIgnore
	chunk    int
	timeout  time.Duration
}

// NewPlanner builds a planner. excludePatterns use gitignore syntax and are
// matched against storage paths; checker may be nil, in which case nothing
// counts as referenced and each group keeps its first member.
func NewPlanner(blobs storage.BlobStore, checker ReferenceChecker, excludePatterns []string, timeout time.Duration) *Planner {
	return &Planner{
		blobs:    blobs,
		checker:  checker,
		excludes: ignore.CompileIgnoreLines(excludePatterns...),
		chunk:    DefaultChunkSize,
		timeout:  timeout,
	}
}

// SetChunkSize overrides the per-call hashing budget.
func (p *Planner) SetChunkSize(n int) {
	if n > 0 {
		p.chunk = n
	}
}

// Plan runs one chunk of the audit. Large stores are walked incrementally:
// when the chunk budget or the deadline is hit the plan is marked partial
// and NextCursor picks up where this call stopped. Groupings only cover the
// files hashed so far in this call.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (*Plan, error) {
	deadline := time.Now().Add(p.timeout)
	if p.timeout <= 0 {
		deadline = time.Time{}
	}

	blobs, err := p.blobs.List(ctx, req.Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs under %q: %w", req.Prefix, err)
	}

	plan := &Plan{}
	limit := p.chunk
	if req.Limit > 0 {
		limit = req.Limit
	}

	var entries []FileEntry
	for _, info := range blobs {
		if p.excludes.MatchesPath(info.Path) {
			continue
		}
		plan.Summary.TotalFiles++
		// List is sorted, so everything at or before the cursor is done.
		if req.Cursor != "" && info.Path <= req.Cursor {
			continue
		}
		// The deadline only applies once something was hashed so that a
		// resuming caller always advances past at least one entry.
		if len(entries) >= limit || (len(entries) > 0 && !deadline.IsZero() && time.Now().After(deadline)) {
			plan.NextCursor = req.Cursor
			if len(entries) > 0 {
				plan.NextCursor = entries[len(entries)-1].Path
			}
			plan.Summary.Partial = true
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := p.blobs.Get(ctx, info.Path)
		if err != nil {
			log.Warnf("[Audit] Skipping unreadable blob %s: %v", info.Path, err)
			continue
		}
		shaSum := sha256.Sum256(data)
		md5Sum := md5.Sum(data)
		entries = append(entries, FileEntry{
			Path:   info.Path,
			Name:   common.BaseName(info.Path),
			Size:   int64(len(data)),
			SHA256: hex.EncodeToString(shaSum[:]),
			MD5:    hex.EncodeToString(md5Sum[:]),
		})
	}
	plan.Summary.FilesHashed = len(entries)

	for i := range entries {
		if p.checker == nil {
			continue
		}
		referenced, err := p.checker.Referenced(ctx, entries[i].Path, entries[i].Name)
		if err != nil {
			return nil, fmt.Errorf("reference check for %s failed: %w", entries[i].Path, err)
		}
		entries[i].Referenced = referenced
	}

	plan.HashGroups = groupBy(entries, func(e FileEntry) string { return e.SHA256 })
	plan.NameGroups = groupBy(entries, func(e FileEntry) string {
		return common.NormalizeFilename(common.StripGeneratedPrefix(e.Name))
	})
	plan.Summary.DuplicateGroups = len(plan.HashGroups)
	plan.Summary.NameGroups = len(plan.NameGroups)
	for _, g := range plan.HashGroups {
		plan.Summary.TotalDuplicates += len(g.Files) - 1
	}

	// Removal candidates come from hash groups only. Name collisions are
	// advisory; identical bytes are the only thing safe to deduplicate.
	for _, g := range plan.HashGroups {
		keeps, removals := partition(g)
		plan.KeepImages = append(plan.KeepImages, keeps...)
		plan.SafeToRemove = append(plan.SafeToRemove, removals...)
	}
	plan.Summary.SafeToRemove = len(plan.SafeToRemove)

	log.Debugf("[Audit] Hashed %d/%d file(s): %d hash group(s), %d name group(s), %d safe to remove",
		plan.Summary.FilesHashed, plan.Summary.TotalFiles,
		plan.Summary.DuplicateGroups, plan.Summary.NameGroups, plan.Summary.SafeToRemove)
	return plan, nil
}

// groupBy buckets entries sharing a non-empty key and keeps only buckets
// with at least two members, ordered by key for stable output.
func groupBy(entries []FileEntry, key func(FileEntry) string) []Group {
	buckets := map[string][]FileEntry{}
	for _, e := range entries {
		k := key(e)
		if k == "" {
			continue
		}
		buckets[k] = append(buckets[k], e)
	}

	keys := make([]string, 0, len(buckets))
	for k, files := range buckets {
		if len(files) > 1 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	groups := make([]Group, 0, len(keys))
	for _, k := range keys {
		files := buckets[k]
		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
		groups = append(groups, Group{Key: k, Files: files})
	}
	return groups
}

// partition applies the keep rules to one duplicate group. Referenced files
// are always kept. With at least one referenced member, every unreferenced
// member is removable. With none referenced, the first member by path order
// is kept and the rest are removable.
func partition(g Group) (keeps []FileEntry, removals []Removal) {
	var used, unused []FileEntry
	for _, f := range g.Files {
		if f.Referenced {
			used = append(used, f)
		} else {
			unused = append(unused, f)
		}
	}

	switch {
	case len(used) > 0:
		keeps = append(keeps, used...)
		for _, f := range unused {
			removals = append(removals, Removal{File: f, KeepFile: used[0].Name})
		}
	case len(unused) > 0:
		keeps = append(keeps, unused[0])
		for _, f := range unused[1:] {
			removals = append(removals, Removal{File: f, KeepFile: unused[0].Name})
		}
	}
	return keeps, removals
}
