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

	"github.com/spf13/cobra"

	"mediastore/internal/variants"
)

var (
	variantsForce bool
	variantsAll   bool
)

var variantsCmd = &cobra.Command{
	Use:   "variants [id]",
	Short: "Render web deliverables for stored originals",
	Long: `Render web deliverables for stored originals.

Produces the thumbnail, medium, large and full-size WebP renditions for one
asset, or walks the whole catalog with --all to backfill whatever is missing.
Existing variants are skipped unless --force is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVariants,
}

func init() {
	variantsCmd.Flags().BoolVar(&variantsForce, "force", false, "re-render variants that already exist")
	variantsCmd.Flags().BoolVar(&variantsAll, "all", false, "process every asset in the catalog")
	rootCmd.AddCommand(variantsCmd)
}

func runVariants(cmd *cobra.Command, args []string) error {
	if variantsAll == (len(args) == 1) {
		return fmt.Errorf("pass an asset id or --all, not both")
	}

	e, err := openEnv(true)
	if err != nil {
		return err
	}
	defer e.close()

	gen := variants.NewGenerator(e.catalog, e.blobs)
	gen.SetQuality(int(e.cfg.WebPQuality))
	ctx := cmd.Context()

	if !variantsAll {
		id, err := e.resolveAssetID(ctx, args[0])
		if err != nil {
			return err
		}
		if err := gen.Generate(ctx, id, variantsForce); err != nil {
			return err
		}
		fmt.Printf("Rendered deliverables for asset %d\n", id)
		return nil
	}

	// Backfill walks the catalog in pages so huge catalogs never load at
	// once. Failures are reported per asset and the walk continues.
	const pageSize = 100
	var afterID int64
	processed, failed := 0, 0
	for {
		page, err := e.catalog.ListAssetsByPathPrefix(ctx, "originals/", afterID, pageSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}
		for _, a := range page {
			if err := gen.Generate(ctx, a.ID, variantsForce); err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "Warning: asset %d: %v\n", a.ID, err)
			} else {
				processed++
			}
			afterID = a.ID
		}
	}
	fmt.Printf("Rendered deliverables for %d asset(s), %d failed\n", processed, failed)
	return nil
}
