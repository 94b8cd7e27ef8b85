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

	"mediastore/internal/config"
	"mediastore/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the mediastore workspace",
	Long: `Initialize the mediastore workspace.

Creates the workspace directory with a default configuration file, an empty
asset catalog, and the media storage root. The workspace location comes from
the MEDIASTORE_DIR environment variable, defaulting to ~/.mediastore.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := config.EnsureWorkspaceDir(); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}

	catalogPath := config.CatalogPath()
	if _, err := os.Stat(catalogPath); err == nil {
		fmt.Printf("Reinitialized existing mediastore workspace in %s\n", config.WorkspaceDir())
	} else {
		catalog, err := storage.CreateCatalog(catalogPath)
		if err != nil {
			return fmt.Errorf("failed to create catalog: %w", err)
		}
		if err := catalog.Close(); err != nil {
			return err
		}
		fmt.Printf("Initialized mediastore workspace in %s\n", config.WorkspaceDir())
	}

	if err := os.MkdirAll(config.MediaRoot(), 0755); err != nil {
		return fmt.Errorf("failed to create media root: %w", err)
	}

	if _, err := os.Stat(config.ConfigPath()); os.IsNotExist(err) {
		cfg := &config.Config{}
		cfg.ApplyDefaults()
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to write default config: %w", err)
		}
	}
	return nil
}
