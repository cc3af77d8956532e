package cli

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fish-not-phish/pixurebyte/internal/poller"
	"github.com/fish-not-phish/pixurebyte/internal/report"
	"github.com/fish-not-phish/pixurebyte/internal/schema"
	"github.com/fish-not-phish/pixurebyte/internal/ui"
	"github.com/fish-not-phish/pixurebyte/pkg/utils"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Start, list and follow website scans",
	}

	start := &cobra.Command{
		Use:     "start <url>",
		Short:   "Queue a scan of a URL",
		Example: "pixure scan start https://example.com --watch --save",
		Args:    cobra.ExactArgs(1),
		RunE: withTeam(func(cmd *cobra.Command, a *app, team string, args []string) error {
			target, err := normalizeTarget(args[0])
			if err != nil {
				return err
			}
			scan, err := a.client.InitiateScan(cmd.Context(), team, target)
			if err != nil {
				return err
			}
			h := poller.ScanHandle{TeamID: team, ScanID: scan.ScanID}
			fmt.Fprintf(cmd.OutOrStdout(), "🚀 Scan %s queued for %s\n", scan.ScanID, target)

			if watch, _ := cmd.Flags().GetBool("watch"); !watch {
				fmt.Fprintf(cmd.OutOrStdout(), "   Follow it with: pixure scan watch %s\n", scan.ScanID)
				return nil
			}
			save, _ := cmd.Flags().GetBool("save")
			return watchScan(cmd, a, h, save)
		}),
	}
	start.Flags().Bool("watch", false, "Wait for the scan to finish and show the results")
	start.Flags().Bool("save", false, "Save results.json under --output once complete")
	cmd.AddCommand(start)

	watch := &cobra.Command{
		Use:   "watch <scan-id>",
		Short: "Poll a scan until it completes or fails",
		Args:  cobra.ExactArgs(1),
		RunE: withTeam(func(cmd *cobra.Command, a *app, team string, args []string) error {
			id, err := parseID("scan", args[0])
			if err != nil {
				return err
			}
			save, _ := cmd.Flags().GetBool("save")
			return watchScan(cmd, a, poller.ScanHandle{TeamID: team, ScanID: id}, save)
		}),
	}
	watch.Flags().Bool("save", false, "Save results.json under --output once complete")
	cmd.AddCommand(watch)

	results := &cobra.Command{
		Use:   "results <scan-id>",
		Short: "Show the results of a finished scan",
		Args:  cobra.ExactArgs(1),
		RunE: withTeam(func(cmd *cobra.Command, a *app, team string, args []string) error {
			id, err := parseID("scan", args[0])
			if err != nil {
				return err
			}
			save, _ := cmd.Flags().GetBool("save")
			return showResults(cmd, a, poller.ScanHandle{TeamID: team, ScanID: id}, save)
		}),
	}
	results.Flags().Bool("save", false, "Save results.json under --output")
	cmd.AddCommand(results)

	list := &cobra.Command{
		Use:   "list",
		Short: "List the team's scans, newest first",
		RunE: withTeam(func(cmd *cobra.Command, a *app, team string, _ []string) error {
			page, _ := cmd.Flags().GetInt("page")
			size, _ := cmd.Flags().GetInt("page-size")
			res, err := a.client.ListScans(cmd.Context(), team, page, size)
			if err != nil {
				return err
			}
			ui.ScanList(cmd.OutOrStdout(), res, max(page, 1))
			return nil
		}),
	}
	list.Flags().Int("page", 1, "Page number")
	list.Flags().Int("page-size", 10, "Scans per page")
	cmd.AddCommand(list)

	return cmd
}

// watchScan polls until the scan resolves, then renders the results view or
// reports the failure.
func watchScan(cmd *cobra.Command, a *app, h poller.ScanHandle, save bool) error {
	nav := poller.NavigatorFunc(func(path string) {
		a.log.Debugw("scan resolved", "view", path)
	})
	p := poller.New(a.client, nav,
		poller.WithInterval(a.cfg.PollInterval),
		poller.WithMaxWait(a.cfg.PollMaxWait),
		poller.WithLogger(a.log),
		poller.WithMetrics(a.metrics),
	)

	fmt.Fprintf(cmd.ErrOrStderr(), "⏳ Waiting for scan %s ...\n", h.ScanID)
	task := p.Start(cmd.Context(), h)
	defer task.Stop()

	status, err := task.Wait(cmd.Context())
	switch {
	case errors.Is(err, poller.ErrTimeout):
		return fmt.Errorf("scan %s still running after %s", h.ScanID, a.cfg.PollMaxWait)
	case err != nil:
		return err
	case status == schema.StatusFailed:
		return fmt.Errorf("scan %s failed", h.ScanID)
	}
	return showResults(cmd, a, h, save)
}

func showResults(cmd *cobra.Command, a *app, h poller.ScanHandle, save bool) error {
	ctx := cmd.Context()
	scan, err := a.client.FetchScan(ctx, h.TeamID, h.ScanID)
	if err != nil {
		return err
	}
	if scan.Status != schema.StatusComplete {
		return fmt.Errorf("scan %s is %s", h.ScanID, scan.Status)
	}

	opts := report.Options{Now: time.Now(), WindowDays: a.cfg.WindowDays}
	if (len(scan.Scripts) == 0 || len(scan.Links) == 0) && scan.FullCode != "" {
		if snap, err := a.client.FetchSnapshot(ctx, scan.FullCode); err != nil {
			a.log.Warnw("snapshot unavailable", "scan", h.ScanID, "error", err)
		} else {
			opts.Snapshot = snap
		}
	}
	ui.ScanView(cmd.OutOrStdout(), report.BuildView(*scan, opts))

	if save {
		file, err := utils.SaveResult(*scan, a.cfg.Output, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n✅ Results saved to %s\n", file)
	}
	return nil
}

// normalizeTarget adds https:// to bare hosts and rejects anything that is
// not an http(s) URL.
func normalizeTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid target URL %q", raw)
	}
	return u.String(), nil
}
