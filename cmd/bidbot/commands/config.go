package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"bidbot-engine/internal/config"
)

// ConfigCmd groups the configuration commands.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or show the configuration",
	Long: `The configuration lives in <data-dir>/config.yml. Environment variables
(MAX_PROPOSALS_PER_WEEK, SPEED_MODE, ...) and a .env file in the working
directory override it.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write config.yml with defaults if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp()
		if err != nil {
			return err
		}
		abs, _ := filepath.Abs(app.CfgPath)
		fmt.Fprintln(cmd.OutOrStdout(), abs)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with warnings",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n", app.CfgPath)
		b, err := yaml.Marshal(app.Cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(out, string(b))

		_, res := config.NormalizeAndValidate(app.Cfg)
		for _, w := range res.Warnings {
			fmt.Fprintf(out, "# warning: %s\n", w)
		}
		return nil
	},
}

func init() {
	ConfigCmd.AddCommand(configInitCmd)
	ConfigCmd.AddCommand(configShowCmd)
}
