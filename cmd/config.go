package cmd

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/PolarWolf314/inkseal/internal/configs"
	"github.com/PolarWolf314/inkseal/internal/ui"
	"github.com/PolarWolf314/inkseal/internal/utils"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize inkseal configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Prints the effective configuration as TOML",
	RunE: func(cmd *cobra.Command, args []string) error {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(Config); err != nil {
			return Logger.ErrorfAndReturn("Failed to render config: %v", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), buf.String())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Writes the effective configuration to the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			var err error
			if path, err = configs.DefaultConfigPath(); err != nil {
				return Logger.ErrorfAndReturn("Failed to locate config: %v", err)
			}
		}
		exists, err := utils.FileExists(path)
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to check %s: %v", path, err)
		}
		if exists {
			fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("⚠") + " " + ui.Path.Sprint(path) + " already exists")
			return nil
		}
		if err := configs.Save(path, Config); err != nil {
			return Logger.ErrorfAndReturn("%v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓") + " Wrote " + ui.Path.Sprint(path))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
