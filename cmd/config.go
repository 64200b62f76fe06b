package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/samuelfneumann/sweeper/experiment"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration that train and play would use, after the
configuration file and flags are applied. The output can be saved and
passed back with --config.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return experiment.WriteConfig(os.Stdout, c)
	},
}
