package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lumenforge/lumenforge/cmd/iam"
	"github.com/lumenforge/lumenforge/cmd/roles"
	"github.com/lumenforge/lumenforge/cmd/users"
	"github.com/lumenforge/lumenforge/internal/config"
)

var (
	cfg     *config.Config
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "lumenapi",
	Short: "LumenForge API server",
	Long: `LumenForge API serves the role-based access control surface of the
inventory and rental backend: users, groups, group roles and memberships.

Bearer tokens are issued by an external OpenID Connect provider; this service
validates them and resolves application roles from group memberships.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := readConfigFile(); err != nil {
			return err
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

// readConfigFile loads --config when given. Environment variables still win.
func readConfigFile() error {
	if cfgFile == "" {
		return nil
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", cfgFile, err)
	}
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	flags.String("db-url", "", "Database connection URL (env: LUMEN_DATABASE_URL)")
	flags.String("server-addr", "", "Server bind address (env: LUMEN_SERVER_ADDR)")
	flags.String("server-url", "", "Public base URL (env: LUMEN_SERVER_URL)")
	flags.Bool("debug", false, "Enable debug logging (env: LUMEN_DEBUG)")
	flags.String("log-format", "", "Log format: text or json (env: LUMEN_LOG_FORMAT)")

	_ = viper.BindPFlag("database_url", flags.Lookup("db-url"))
	_ = viper.BindPFlag("server_addr", flags.Lookup("server-addr"))
	_ = viper.BindPFlag("server_url", flags.Lookup("server-url"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("log_format", flags.Lookup("log-format"))

	rootCmd.AddCommand(users.UsersCmd)
	rootCmd.AddCommand(iam.IamCmd)
	rootCmd.AddCommand(roles.RolesCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
