// Package cmd defines the troupe CLI.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/troupe-dev/troupe/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "troupe",
	Short: "Multi-agent task orchestrator",
	Long: `Troupe coordinates a team of independent worker agents on a single
task: each agent plans, the team negotiates a division of work, and every
agent executes its share. In variant mode each agent instead builds a
complete solution in an isolated workspace and a selection step picks the
winner.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/troupe/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/troupe")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("TROUPE")
	// Nested keys map to env vars with underscores,
	// e.g. TROUPE_SESSION_MODE for session.mode
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Missing config file is fine; defaults and env cover everything
	_ = viper.ReadInConfig()
}
