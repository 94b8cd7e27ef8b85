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
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediastore/internal/asset"
	"mediastore/internal/common"
	"mediastore/internal/tagging"
	"mediastore/internal/tasks"
	"mediastore/internal/variants"
)

var (
	ingestSource    string
	ingestBy        string
	ingestFilename  string
	ingestForce     bool
	ingestNoProcess bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <url|file>",
	Short: "Ingest an image into the asset store",
	Long: `Ingest an image into the asset store.

The argument is a source URL or a local file path. Content is hashed before
storage: re-ingesting bytes the catalog already knows returns the existing
record and bumps its usage count instead of storing a second copy.

After a new original is stored, web deliverables and AI tags are produced by
background tasks in the same process. Pass --no-process to skip them.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "manual", "upload source recorded on the asset (campaign, blog, manual)")
	ingestCmd.Flags().StringVar(&ingestBy, "by", "", "uploader recorded on the asset")
	ingestCmd.Flags().StringVar(&ingestFilename, "filename", "", "original filename override")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "store a new object even if the content hash already exists")
	ingestCmd.Flags().BoolVar(&ingestNoProcess, "no-process", false, "skip variant rendering and tagging")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	e, err := openEnv(true)
	if err != nil {
		return err
	}
	defer e.close()

	req := asset.IngestRequest{
		OriginalFilename: ingestFilename,
		UploadSource:     ingestSource,
		UploadedBy:       ingestBy,
		ForceUpload:      ingestForce,
	}
	source := args[0]
	if _, statErr := os.Stat(source); statErr == nil {
		data, err := os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", source, err)
		}
		req.Data = data
		if req.OriginalFilename == "" {
			req.OriginalFilename = common.BaseName(source)
		}
	} else {
		req.URL = source
	}

	ctx := cmd.Context()

	var queue *tasks.Queue
	completed := make(chan string, 2)
	if !ingestNoProcess {
		queue, err = tasks.NewQueue()
		if err != nil {
			return err
		}
		defer queue.Close()

		gen := variants.NewGenerator(e.catalog, e.blobs)
		gen.SetQuality(int(e.cfg.WebPQuality))
		tagger := tagging.NewTagger(e.catalog, tagging.LexiconClassifier{})

		queue.OnVariantJob(func(ctx context.Context, job tasks.VariantJob) error {
			if err := gen.Generate(ctx, job.AssetID, job.Force); err != nil {
				return err
			}
			completed <- "variants"
			return nil
		})
		queue.OnTaggingJob(func(ctx context.Context, job tasks.TaggingJob) error {
			if err := tagger.Tag(ctx, job.AssetID); err != nil {
				return err
			}
			completed <- "tagging"
			return nil
		})

		routerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			_ = queue.Run(routerCtx)
		}()
		<-queue.Running()
	}

	svc := newService(e, queue)
	result, err := svc.Ingest(ctx, req)
	if err != nil {
		return err
	}

	a := result.Asset
	if result.IsDuplicate {
		fmt.Printf("Duplicate content, reusing asset %d (usage count now %d)\n", a.ID, a.UsageCount)
	} else {
		fmt.Printf("Stored asset %d: %s (%dx%d %s, %d bytes)\n",
			a.ID, a.FilePath, a.Width, a.Height, a.Format, a.FileSize)
	}
	if e.cfg.PublicBaseURL != "" {
		fmt.Printf("Public URL: %s\n", common.PublicURL(e.cfg.PublicBaseURL, a.FilePath))
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}

	// Wait for the post-processing tasks queued for a newly stored asset.
	if queue != nil && !result.IsDuplicate {
		waitForTasks(completed, 2, 60*time.Second)
	}
	return nil
}

func waitForTasks(completed <-chan string, n int, timeout time.Duration) {
	var done []string
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for len(done) < n {
		select {
		case name := <-completed:
			done = append(done, name)
		case <-timer.C:
			fmt.Fprintf(os.Stderr, "Warning: post-processing incomplete (finished: %s)\n",
				strings.Join(done, ", "))
			return
		}
	}
}
