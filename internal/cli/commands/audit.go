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

package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mediastore/internal/audit"
)

var (
	auditPrefix     string
	auditCursor     string
	auditLimit      int
	auditContentDir string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Plan duplicate cleanup over stored files",
	Long: `Plan duplicate cleanup over stored files.

Scans the media store, hashes content, and groups duplicates two ways: by
exact content hash and by normalized filename. Files referenced from
published content (pass --content-dir with the HTML or markdown exports)
are never marked removable. The audit only reports; actual removal goes
through 'mediastore delete --permanent' after review.

Large stores are scanned in chunks. A partial run prints a cursor to pass
back via --cursor to continue where it stopped.`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditPrefix, "prefix", "originals/", "storage path prefix to scan")
	auditCmd.Flags().StringVar(&auditCursor, "cursor", "", "resume cursor from a previous partial run")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 0, "files hashed this run (default from config)")
	auditCmd.Flags().StringVar(&auditContentDir, "content-dir", "", "directory of .html/.md artifacts to check references against")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	e, err := openEnv(false)
	if err != nil {
		return err
	}
	defer e.close()

	var checker audit.ReferenceChecker
	if auditContentDir != "" {
		artifacts, err := loadArtifacts(auditContentDir)
		if err != nil {
			return err
		}
		probe := audit.NewContentProbe(artifacts)
		fmt.Printf("Loaded %d artifact(s), %d image reference(s)\n", len(artifacts), probe.RefCount())
		checker = probe
	}

	planner := audit.NewPlanner(e.blobs, checker, e.cfg.ScanExcludes, e.auditTimeout())
	planner.SetChunkSize(e.cfg.AuditChunk)

	plan, err := planner.Plan(cmd.Context(), audit.PlanRequest{
		Prefix: auditPrefix,
		Cursor: auditCursor,
		Limit:  auditLimit,
	})
	if err != nil {
		return err
	}

	s := plan.Summary
	fmt.Printf("Scanned %d file(s), hashed %d\n", s.TotalFiles, s.FilesHashed)
	fmt.Printf("Duplicate groups: %d by content (%d duplicate file(s)), %d by name\n",
		s.DuplicateGroups, s.TotalDuplicates, s.NameGroups)

	for _, g := range plan.HashGroups {
		fmt.Printf("\ncontent %s:\n", g.Key[:12])
		printGroup(g)
	}
	for _, g := range plan.NameGroups {
		fmt.Printf("\nname %q:\n", g.Key)
		printGroup(g)
	}

	if len(plan.SafeToRemove) > 0 {
		fmt.Printf("\nSafe to remove (%d):\n", len(plan.SafeToRemove))
		for _, r := range plan.SafeToRemove {
			// Catalogued files can go through 'delete --permanent'; anything
			// else is an orphan blob with no row behind it.
			if m, err := e.catalog.GetAssetByPath(cmd.Context(), r.File.Path); err == nil {
				fmt.Printf("  %s (asset %d, keep %s)\n", r.File.Path, m.ID, r.KeepFile)
			} else {
				fmt.Printf("  %s (orphan, keep %s)\n", r.File.Path, r.KeepFile)
			}
		}
	} else {
		fmt.Println("\nNothing safe to remove.")
	}

	if s.Partial {
		fmt.Fprintf(os.Stderr, "\nPartial scan. Continue with: --cursor %q\n", plan.NextCursor)
	}
	return nil
}

func printGroup(g audit.Group) {
	for _, f := range g.Files {
		marker := " "
		if f.Referenced {
			marker = "*"
		}
		fmt.Printf("  %s %s (%d bytes)\n", marker, f.Path, f.Size)
	}
}

// loadArtifacts reads every .html and .md file under dir, recursively.
func loadArtifacts(dir string) ([]audit.Artifact, error) {
	var artifacts []audit.Artifact
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".html" && ext != ".md" && ext != ".htm" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, audit.Artifact{Name: d.Name(), Body: string(data)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load artifacts from %s: %w", dir, err)
	}
	return artifacts, nil
}
