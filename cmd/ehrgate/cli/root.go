package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ehrgate/ehrgate/internal/config"
)

var (
	cfgFile    string
	devMode    bool
	appVersion string // set in Execute, used by serve and mcp
	appCommit  string
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion, appCommit = version, commit
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ehrgate",
		Short: "Authenticated gateway to electronic health records",
		Long: `ehrgate: an authenticated gateway that exposes patient, appointment, medication,
lab, vitals, allergy, and provider records to AI agents.

Client applications register credentials, exchange them for short-lived access
tokens, and call record operations over MCP, plain HTTP, server-sent events, or a
persistent socket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ehrgate.yaml)")
	cmd.PersistentFlags().BoolVar(&devMode, "dev", false, "development mode (debug logging)")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newClientCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newOpenAPICmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ehrgate")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.ehrgate")
	}

	viper.ReadInConfig() // Ignore error - config file is optional
}
