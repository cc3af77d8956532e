package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fish-not-phish/pixurebyte/internal/config"
)

var Version = "0.1.0"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pixure",
		Short:         "Client for the pixurebyte website scanner",
		Long:          "pixure starts website scans, follows them until they finish and renders the results: script risk tiers, certificate status, links and downloads.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig()
		},
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file (default "+filepath.Join(config.Dir(), "config.yaml")+")")
	pf.String("api-url", "", "Scan API base URL")
	pf.StringP("output", "o", "", "Output directory")
	pf.String("team", "", "Team id (defaults to the team chosen with `pixure teams use`)")
	pf.Bool("debug", false, "Verbose logging")
	_ = viper.BindPFlag("config", pf.Lookup("config"))
	_ = viper.BindPFlag(config.KeyAPIURL, pf.Lookup("api-url"))
	_ = viper.BindPFlag(config.KeyOutput, pf.Lookup("output"))
	_ = viper.BindPFlag("team", pf.Lookup("team"))
	_ = viper.BindPFlag(config.KeyDebug, pf.Lookup("debug"))

	// Environment variable support (PIXURE_API_URL, PIXURE_POLL_INTERVAL, ...)
	viper.SetEnvPrefix("PIXURE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	config.SetDefaults(viper.GetViper())

	// Subcommands
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newPasswordCmd())
	rootCmd.AddCommand(newTeamsCmd())
	rootCmd.AddCommand(newMembersCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newAnalyticsCmd())
	rootCmd.AddCommand(newSettingsCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// initConfig reads the config file named by --config, or config.yaml in the
// user config dir when it exists.
func initConfig() error {
	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.Dir())
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && viper.GetString("config") == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
