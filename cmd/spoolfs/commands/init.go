package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spoolfs/spoolfs/internal/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write a default configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
		}

		if err := config.NewDefault().SaveToFile(path); err != nil {
			return err
		}

		fmt.Printf("Configuration file created at: %s\n", path)
		fmt.Println("Start the filesystem with: spoolfs mount --config", path, "<mountpoint>")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")
}
