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
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mediastore/internal/storage"
)

var (
	searchQuery     string
	searchTags      []string
	searchFormat    string
	searchMinWidth  int
	searchMinHeight int
	searchSource    string
	searchSortBy    string
	searchOrder     string
	searchPage      int
	searchLimit     int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the asset catalog",
	Long: `Search the asset catalog.

Free text matches title, alt text, caption, description and extracted text.
Only active assets are returned.`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "free text query")
	searchCmd.Flags().StringSliceVar(&searchTags, "tags", nil, "match any of these tag names")
	searchCmd.Flags().StringVar(&searchFormat, "format", "", "image format filter (jpeg, png, webp, ...)")
	searchCmd.Flags().IntVar(&searchMinWidth, "min-width", 0, "minimum pixel width")
	searchCmd.Flags().IntVar(&searchMinHeight, "min-height", 0, "minimum pixel height")
	searchCmd.Flags().StringVar(&searchSource, "source", "", "upload source filter")
	searchCmd.Flags().StringVar(&searchSortBy, "sort", "created_at", "sort column")
	searchCmd.Flags().StringVar(&searchOrder, "order", "desc", "sort order (asc or desc)")
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "result page (1-based)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", storage.DefaultSearchLimit, "results per page")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	e, err := openEnv(false)
	if err != nil {
		return err
	}
	defer e.close()

	svc := newService(e, nil)
	result := svc.Search(cmd.Context(), storage.SearchParams{
		Query:        searchQuery,
		Tags:         searchTags,
		Format:       searchFormat,
		MinWidth:     searchMinWidth,
		MinHeight:    searchMinHeight,
		UploadSource: searchSource,
		SortBy:       searchSortBy,
		SortOrder:    searchOrder,
		Page:         searchPage,
		Limit:        searchLimit,
	})

	if len(result.Images) == 0 {
		fmt.Println("No matching assets.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSIZE\tFORMAT\tUSAGE\tTAGS\tPATH")
	for _, a := range result.Images {
		names := make([]string, 0, len(a.Tags))
		for _, t := range a.Tags {
			names = append(names, t.Name)
		}
		fmt.Fprintf(w, "%d\t%dx%d\t%s\t%d\t%s\t%s\n",
			a.ID, a.Width, a.Height, a.Format, a.UsageCount,
			strings.Join(names, ","), a.FilePath)
	}
	w.Flush()

	p := result.Pagination
	fmt.Printf("\nPage %d/%d (%d asset(s) total)\n", p.Page, p.TotalPages, p.Total)
	return nil
}
