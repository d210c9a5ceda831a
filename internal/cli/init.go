package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"rlm/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write rlm.yaml with the current settings and create .rlm/",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rootDir := GetRootDir()
		path := filepath.Join(rootDir, "rlm.yaml")
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := config.EnsureRLMDir(rootDir); err != nil {
			return fmt.Errorf("failed to create .rlm directory: %w", err)
		}
		if err := GetConfig().Save(path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing rlm.yaml")
}
