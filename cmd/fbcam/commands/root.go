package commands

import (
	"fmt"
	"os"

	"github.com/bryanchriswhite/fbcam/internal/config"
	"github.com/bryanchriswhite/fbcam/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "fbcam",
		Short: "fbcam - camera to framebuffer streamer",
		Long: `fbcam streams camera frames straight onto a Linux framebuffer console.

Features:
  • BGR565 and BGRX8888 framebuffers, file or mmap access
  • V4L2, GStreamer, X11 and test-pattern sources
  • Screenshots of the last displayed frame
  • Fixed-aspect MJPEG recordings with timestamp overlay
  • Optional HTTP control API with live preview`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/fbcam/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "force console log output")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// loadConfig opens the config manager and applies the global flag
// overrides to the returned copy. The file itself is left untouched.
func loadConfig() (*config.Manager, *config.Config, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := configMgr.Get()

	if viper.IsSet("log_level") {
		if level := viper.GetString("log_level"); level != "" {
			cfg.LogLevel = level
		}
	}
	pretty := logger.PrettyDefault()
	if cfg.LogPretty != nil {
		pretty = *cfg.LogPretty
	}
	if rootCmd.PersistentFlags().Changed("log-pretty") {
		pretty = viper.GetBool("log_pretty")
	}
	logger.Init(cfg.LogLevel, pretty)

	return configMgr, cfg, nil
}
