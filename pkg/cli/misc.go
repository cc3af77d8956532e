package cli

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fish-not-phish/pixurebyte/internal/dashboard"
	"github.com/fish-not-phish/pixurebyte/internal/report"
	"github.com/fish-not-phish/pixurebyte/internal/ui"
)

func newAnalyticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show scan volume, success rate and top domains for the team",
		RunE: withTeam(func(cmd *cobra.Command, a *app, team string, _ []string) error {
			ctx := cmd.Context()
			window, _ := cmd.Flags().GetInt("window-days")
			limit, _ := cmd.Flags().GetInt("limit")

			overview, err := a.client.Overview(ctx, team)
			if err != nil {
				return err
			}
			ts, err := a.client.Timeseries(ctx, team, window)
			if err != nil {
				return err
			}
			status, err := a.client.StatusBreakdown(ctx, team)
			if err != nil {
				return err
			}
			domains, err := a.client.TopDomains(ctx, team, limit)
			if err != nil {
				return err
			}
			ui.Analytics(cmd.OutOrStdout(), overview, ts, status, domains)
			return nil
		}),
	}
	cmd.Flags().Int("window-days", 30, "Days covered by the per-day series")
	cmd.Flags().Int("limit", 10, "Number of top domains")
	return cmd
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change site settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show site settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			s, err := a.client.GetSettings(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "allow_registration: %t\n", s.AllowRegistration)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set allow_registration <true|false>",
		Short: "Change a site setting (admins only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "allow_registration" {
				return fmt.Errorf("unknown setting %q", args[0])
			}
			allow, err := strconv.ParseBool(args[1])
			if err != nil {
				return errors.New("value must be true or false")
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			s, err := a.client.UpdateSettings(cmd.Context(), allow)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "allow_registration: %t\n", s.AllowRegistration)
			return nil
		},
	})
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the results dashboard locally",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = a.cfg.ServeAddr
			}
			srv := dashboard.New(a.client, dashboard.Options{
				PollInterval: a.cfg.PollInterval,
				WindowDays:   a.cfg.WindowDays,
				Print:        report.PrintPDF,
				Metrics:      a.metrics,
				Logger:       a.log,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "Dashboard on http://%s\n", displayAddr(addr))
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default serve.addr)")
	return cmd
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pixure %s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
