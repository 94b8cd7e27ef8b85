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

	"mediastore/internal/common"
)

var deletePermanent bool

var deleteCmd = &cobra.Command{
	Use:   "delete <id|url>",
	Short: "Archive or permanently delete an asset",
	Long: `Archive or permanently delete an asset, addressed by catalog id,
public URL, or storage path.

Without --permanent the asset is archived: it disappears from search but the
stored file and catalog row survive. With --permanent the original, every
variant, and all catalog rows are removed. The steps run independently, so a
failure in one never blocks the others; anything skipped is reported.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVar(&deletePermanent, "permanent", false, "remove stored files and catalog rows")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	e, err := openEnv(true)
	if err != nil {
		return err
	}
	defer e.close()

	id, err := e.resolveAssetID(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	svc := newService(e, nil)
	result, err := svc.Delete(cmd.Context(), id, deletePermanent)
	if err != nil {
		return err
	}

	if !deletePermanent {
		fmt.Printf("Archived asset %d\n", id)
		return nil
	}

	fmt.Printf("Deleted asset %d: storage=%t rows=%d metadata=%t\n",
		id, result.StorageDeleted, result.DeletedRows, result.MetadataDeleted)
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	if len(result.Warnings) > 0 {
		return fmt.Errorf("%w: %d step(s) incomplete for asset %d", common.ErrPartialDelete, len(result.Warnings), id)
	}
	return nil
}
