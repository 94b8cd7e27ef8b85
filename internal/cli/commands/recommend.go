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
	"strings"

	"github.com/spf13/cobra"

	"mediastore/internal/common"
	"mediastore/internal/recommend"
)

var (
	recommendTitle    string
	recommendBody     string
	recommendBodyFile string
	recommendCategory string
	recommendTags     []string
	recommendMax      int
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend catalog images for a draft",
	Long: `Recommend catalog images for a draft.

Analyzes the draft's title, body, category and tags, then ranks active
catalog images by keyword, theme, shape and popularity. The ranking is a
deterministic function of the catalog state; the same draft against the same
catalog always produces the same list.`,
	Args: cobra.NoArgs,
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().StringVar(&recommendTitle, "title", "", "draft title")
	recommendCmd.Flags().StringVar(&recommendBody, "body", "", "draft body text")
	recommendCmd.Flags().StringVar(&recommendBodyFile, "body-file", "", "file containing the draft body")
	recommendCmd.Flags().StringVar(&recommendCategory, "category", "", "editorial category")
	recommendCmd.Flags().StringSliceVar(&recommendTags, "tags", nil, "draft tags")
	recommendCmd.Flags().IntVar(&recommendMax, "max", recommend.DefaultMaxImages, "maximum recommendations")
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	body := recommendBody
	if recommendBodyFile != "" {
		data, err := os.ReadFile(recommendBodyFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", recommendBodyFile, err)
		}
		body = string(data)
	}

	e, err := openEnv(false)
	if err != nil {
		return err
	}
	defer e.close()

	engine := recommend.NewEngine(e.catalog)
	result, err := engine.Recommend(cmd.Context(), recommend.Content{
		Title:    recommendTitle,
		Body:     body,
		Category: recommendCategory,
		Tags:     recommendTags,
	}, recommend.Options{MaxImages: recommendMax})
	if err != nil {
		return err
	}

	a := result.Analysis
	fmt.Printf("Signature: keywords=[%s] themes=[%s] priority=%s\n",
		strings.Join(a.Keywords, ", "), strings.Join(a.Themes, ", "), a.Priority)

	if len(result.Recommendations) == 0 {
		fmt.Println("No recommendations.")
		return nil
	}
	for i, rec := range result.Recommendations {
		fmt.Printf("%d. asset %d  score=%.2f  [%s]  %s\n",
			i+1, rec.Asset.ID, rec.Score, rec.MatchType, rec.Reason)
		fmt.Printf("   alt: %s\n", rec.AltText)
		if e.cfg.PublicBaseURL != "" {
			fmt.Printf("   url: %s\n", common.PublicURL(e.cfg.PublicBaseURL, rec.Asset.FilePath))
		} else {
			fmt.Printf("   path: %s\n", rec.Asset.FilePath)
		}
	}
	fmt.Printf("(%d candidate(s) before merge)\n", result.TotalFound)
	return nil
}
