// Package cmd implements the taskbridge command line.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/taskbridge/internal/config"
)

// Execute runs the root command
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "taskbridge",
		Short: "Bridge to cloud tasks and a local conversation engine",
		Long: `taskbridge connects a terminal to two collaborators: the cloud task
backend (list, create, inspect and apply tasks) and a local conversation
engine (stream a session over stdin/stdout).

Credentials come from configuration, $CODEX_HOME/auth.json, or a refreshing
token manager, in that order.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initConfig()
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default is $HOME/.config/taskbridge/config.yaml)")
	rootCmd.PersistentFlags().Bool("mock", false, "serve canned tasks instead of calling the backend")
	rootCmd.PersistentFlags().Bool("debug", false, "log credential resolution diagnostics")
	rootCmd.PersistentFlags().String("log-level", "", "log level: "+strings.Join(config.ValidLogLevels(), ", "))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("cloud.mock", rootCmd.PersistentFlags().Lookup("mock"))
	_ = viper.BindPFlag("logging.debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(
		newAuthCmd(),
		newSessionCmd(),
		newEnvsCmd(),
		newTasksCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/taskbridge")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("TASKBRIDGE")
	// Replace dots with underscores for nested keys in env vars
	// e.g., TASKBRIDGE_CLOUD_BASE_URL for cloud.base_url
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
