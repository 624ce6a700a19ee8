package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bnema/emuwl/internal/config"
	"github.com/bnema/emuwl/internal/logger"
)

var (
	// Version is set during build
	Version = "0.1.0-dev"

	configPath  string
	logLevel    string
	displayName string

	rootCmd = &cobra.Command{
		Use:   "emuwl",
		Short: "emuwl - Wayland presentation for the emulator",
		Long: `emuwl opens the emulator's render window on a Wayland compositor,
hands the surface to the EGL render context and turns Wayland seats into
keyboard and mouse input devices.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

// Execute runs the root command
func Execute() error {
	rootCmd.Version = Version
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/emuwl/emuwl.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&displayName, "display", "", "Wayland display name (default $WAYLAND_DISPLAY)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(seatsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	config.SetConfigPath(configPath)
	if err := config.Init(); err != nil {
		return err
	}

	// --log-level beats the config file, which beats LOG_LEVEL
	switch {
	case logLevel != "":
		logger.SetLevel(logLevel)
	case config.Get().Logging.LogLevel != "":
		logger.SetLevel(config.Get().Logging.LogLevel)
	}
	return nil
}
