package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/gnolang/undertaker/analyze"
)

// newInitCmd: undertaker init
func newInitCmd(root *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new configuration file",
		// the file to create may not parse yet
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return root.setupLogger()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := root.cfgFile
			if path == "" {
				path = analyze.DefaultConfigFile
			}
			if err := initConfigurationFile(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created: %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func initConfigurationFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return analyze.WriteConfigurationFile(path, analyze.DefaultConfig())
}
