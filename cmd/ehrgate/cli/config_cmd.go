package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ehrgate/ehrgate/internal/config"
	"github.com/ehrgate/ehrgate/internal/connector"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage ehrgate configuration",
		Long:  "Initialize a default configuration file or display the current effective configuration.",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

// ---------- config init ----------

func newConfigInitCmd() *cobra.Command {
	var (
		force bool
		path  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default ehrgate.yaml configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")
	cmd.Flags().StringVar(&path, "path", "ehrgate.yaml", "Where to write the file")

	return cmd
}

func runConfigInit(cmd *cobra.Command, path string, force bool) error {
	if _, err := os.Stat(path); err == nil {
		if !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("replace %s: %w", path, err)
		}
	}

	if err := config.WriteDefaultConfig(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n", path)
	fmt.Fprintln(out, "Set auth.jwt_secret (or JWT_SECRET_KEY) before serving real traffic, then run 'ehrgate serve'.")
	return nil
}

// ---------- config show ----------

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current effective configuration",
		Long:  "Validate the config file, then print the merged configuration (defaults, file, environment, flags). Secrets are masked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	if configFile := viper.ConfigFileUsed(); configFile != "" {
		if _, err := config.LoadYAMLConfig(configFile); err != nil {
			return err
		}
		fmt.Fprintf(out, "# Config file: %s\n", configFile)
	} else {
		fmt.Fprintln(out, "# Config file: (none found, using defaults)")
	}

	data, err := yaml.Marshal(redactSettings(viper.AllSettings()))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// redactSettings masks the signing key and the DSN password in a copy of
// the viper settings tree.
func redactSettings(settings map[string]interface{}) map[string]interface{} {
	if auth, ok := settings["auth"].(map[string]interface{}); ok {
		if s, _ := auth["jwt_secret"].(string); s != "" {
			auth["jwt_secret"] = "****"
		}
	}
	if db, ok := settings["database"].(map[string]interface{}); ok {
		driver, _ := db["driver"].(string)
		if dsn, _ := db["dsn"].(string); dsn != "" {
			db["dsn"] = connector.RedactDSN(driver, dsn)
		}
	}
	return settings
}
