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

	"github.com/spf13/cobra"

	"mediastore/internal/storage"
	"mediastore/internal/tagging"
)

var tagCmd = &cobra.Command{
	Use:   "tag <id|url>",
	Short: "Run the classifier against an asset",
	Long: `Run the classifier against an asset, addressed by catalog id,
public URL, or storage path.

Re-analyzes the asset with the built-in lexicon classifier and upserts the
resulting AI tags. Manual tags are never touched. Re-running refreshes the
confidence scores of tags that already exist.`,
	Args: cobra.ExactArgs(1),
	RunE: runTag,
}

func init() {
	rootCmd.AddCommand(tagCmd)
}

func runTag(cmd *cobra.Command, args []string) error {
	e, err := openEnv(true)
	if err != nil {
		return err
	}
	defer e.close()

	id, err := e.resolveAssetID(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	tagger := tagging.NewTagger(e.catalog, tagging.LexiconClassifier{})
	if err := tagger.Tag(cmd.Context(), id); err != nil {
		return err
	}

	a, err := e.catalog.LoadAsset(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Printf("Asset %d tags:\n", id)
	for _, t := range a.Tags {
		if t.Type == storage.TagTypeAI {
			fmt.Printf("  %s (%.2f)\n", t.Name, t.ConfidenceScore)
		} else {
			fmt.Printf("  %s (manual)\n", t.Name)
		}
	}
	return nil
}
