package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/aweris/ocicopy/internal/dlogger"
)

var rootCmd = &cobra.Command{
	Use:   "ocicopy",
	Short: "Copy OCI artifact graphs between registries and local stores",
	Long:  "CLI for copying content-addressable artifact graphs between OCI registries and local file stores.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/ocicopy/config.yaml)")
	rootCmd.PersistentFlags().String("store-dir", "", "local store directory (default: ~/.local/share/ocicopy)")
	rootCmd.PersistentFlags().String("log-level", dlogger.LevelInfo, "log level (debug, info, none)")
	rootCmd.PersistentFlags().Bool("plain-http", false, "allow http registries")

	viper.BindPFlag("store_dir", rootCmd.PersistentFlags().Lookup("store-dir"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("plain_http", rootCmd.PersistentFlags().Lookup("plain-http"))
}

func initConfig() {
	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("OCICOPY")
	viper.AutomaticEnv()
	viper.SetDefault("store_dir", defaultStoreDir())

	viper.ReadInConfig()
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ocicopy")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "ocicopy")
	}
	return ".ocicopy"
}

func defaultStoreDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "ocicopy")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "ocicopy")
	}
	return ".ocicopy"
}

func getStoreDir() string {
	return viper.GetString("store_dir")
}

func getLogger() *zap.Logger {
	logger, err := dlogger.New(viper.GetString("log_level"))
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func plainHTTP() bool {
	return viper.GetBool("plain_http")
}
