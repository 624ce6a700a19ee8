package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/emuwl/internal/config"
	"github.com/bnema/emuwl/internal/logger"
	"github.com/bnema/emuwl/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage emuwl configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, ui.FormatHeader("Current Configuration"))
		fmt.Fprintln(out, ui.FormatKeyValue("config file", config.GetConfigPath()))

		fmt.Fprintln(out, "\n"+ui.FormatSection("window"))
		fmt.Fprintln(out, ui.FormatKeyValue("width", cfg.Window.Width))
		fmt.Fprintln(out, ui.FormatKeyValue("height", cfg.Window.Height))
		fmt.Fprintln(out, ui.FormatKeyValue("title", cfg.Window.Title))
		fmt.Fprintln(out, ui.FormatKeyValue("app_id", cfg.Window.AppID))
		fmt.Fprintln(out, ui.FormatKeyValue("escape_closes", cfg.Window.EscapeCloses))

		fmt.Fprintln(out, "\n"+ui.FormatSection("input"))
		fmt.Fprintln(out, ui.FormatKeyValue("enabled", cfg.Input.Enabled))
		fmt.Fprintln(out, ui.FormatKeyValue("poll_interval_ms", cfg.Input.PollIntervalMs))
		fmt.Fprintln(out, ui.FormatKeyValue("scale_x", cfg.Input.ScaleX))
		fmt.Fprintln(out, ui.FormatKeyValue("scale_y", cfg.Input.ScaleY))

		fmt.Fprintln(out, "\n"+ui.FormatSection("render"))
		fmt.Fprintln(out, ui.FormatKeyValue("gl", cfg.Render.GL))
		fmt.Fprintln(out, ui.FormatKeyValue("prefer_platform_display", cfg.Render.PreferPlatformDisplay))
		fmt.Fprintln(out, ui.FormatKeyValue("refresh_rate", cfg.Render.RefreshRate))

		fmt.Fprintln(out, "\n"+ui.FormatSection("logging"))
		level := cfg.Logging.LogLevel
		if level == "" {
			level = "(LOG_LEVEL)"
		}
		fmt.Fprintln(out, ui.FormatKeyValue("log_level", level))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.GetConfigPath())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Check if config already exists
		configPath := config.GetConfigPath()
		if _, err := os.Stat(configPath); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				logger.Infof("Configuration file already exists at: %s", configPath)
				logger.Info("Use --force to overwrite")
				return nil
			}
		}

		if err := config.Save(); err != nil {
			return err
		}

		logger.Infof("Configuration initialized at: %s", configPath)
		return nil
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
}
