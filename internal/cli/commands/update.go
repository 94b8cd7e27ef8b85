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

	"mediastore/internal/asset"
)

var (
	updateAlt         string
	updateTitle       string
	updateCaption     string
	updateDescription string
	updateTags        []string
	updateResetUsage  bool
)

var updateCmd = &cobra.Command{
	Use:   "update <id|url>",
	Short: "Edit an asset's descriptive metadata",
	Long: `Edit an asset's descriptive metadata. The asset is addressed by
catalog id, public URL, or storage path.

Only flags that are set change anything. --tags replaces the full manual tag
set; AI-generated tags are never touched by this command.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().StringVar(&updateAlt, "alt", "", "alt text")
	updateCmd.Flags().StringVar(&updateTitle, "title", "", "title")
	updateCmd.Flags().StringVar(&updateCaption, "caption", "", "caption")
	updateCmd.Flags().StringVar(&updateDescription, "description", "", "description")
	updateCmd.Flags().StringSliceVar(&updateTags, "tags", nil, "replacement manual tag set (empty clears all manual tags)")
	updateCmd.Flags().BoolVar(&updateResetUsage, "reset-usage", false, "set the usage counter back to zero")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	req := asset.UpdateRequest{}
	changed := false
	if cmd.Flags().Changed("alt") {
		req.AltText = &updateAlt
		changed = true
	}
	if cmd.Flags().Changed("title") {
		req.Title = &updateTitle
		changed = true
	}
	if cmd.Flags().Changed("caption") {
		req.Caption = &updateCaption
		changed = true
	}
	if cmd.Flags().Changed("description") {
		req.Description = &updateDescription
		changed = true
	}
	if cmd.Flags().Changed("tags") {
		if updateTags == nil {
			updateTags = []string{}
		}
		req.Tags = updateTags
		changed = true
	}
	if !changed && !updateResetUsage {
		return fmt.Errorf("nothing to update, set at least one flag")
	}

	e, err := openEnv(true)
	if err != nil {
		return err
	}
	defer e.close()

	id, err := e.resolveAssetID(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if changed {
		svc := newService(e, nil)
		if err := svc.Update(cmd.Context(), id, req); err != nil {
			return err
		}
	}
	if updateResetUsage {
		if err := e.catalog.ResetUsage(cmd.Context(), id); err != nil {
			return err
		}
	}
	fmt.Printf("Updated asset %d\n", id)
	return nil
}
