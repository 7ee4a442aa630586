package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gridconv/internal/archive"
	"github.com/sells-group/gridconv/internal/config"
	"github.com/sells-group/gridconv/internal/griddata"
)

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Manage the reference grid data",
	Long:  "Inspect, download, and clean up the WRS-2 and MGRS reference shapefiles under grid.data_root.",
}

var gridStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which reference layers are installed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("convert"); err != nil {
			return err
		}
		return runGridStatus(os.Stdout, outputFormat, griddata.Layout{Root: cfg.Grid.DataRoot})
	},
}

var gridFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the reference grid data from a mirror",
	Long: `Downloads the WRS-2 master layer, the MGRS grid-zone master layer, and the per-zone
100 km square archives from grid.fetch_base_url (http, https, ftp, or file). Files that
are already installed are skipped.

By default every zone listed in the grid-zone master is fetched; use --zones to restrict.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if base, _ := cmd.Flags().GetString("base-url"); base != "" {
			cfg.Grid.FetchBaseURL = base
		}
		if concurrency, _ := cmd.Flags().GetInt("concurrency"); concurrency > 0 {
			cfg.Fetch.Concurrency = concurrency
		}
		zonesStr, _ := cmd.Flags().GetString("zones")
		return runGridFetch(ctx, cfg, os.Stdout, outputFormat, toUpper(splitAndTrim(zonesStr)))
	},
}

var gridPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove leftover archive extractions from the scratch directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cache, err := archive.New(archive.Options{
			Layout:     griddata.Layout{Root: cfg.Grid.DataRoot},
			ScratchDir: cfg.Grid.ScratchDir,
			Logger:     zap.L(),
		})
		if err != nil {
			return err
		}
		n, err := cache.Purge()
		if err != nil {
			return err
		}
		res := map[string]any{"scratch_dir": cache.ScratchDir(), "removed": n}
		return render(os.Stdout, outputFormat, res, func(w io.Writer) {
			_, _ = fmt.Fprintf(w, "removed %d directories from %s\n", n, cache.ScratchDir())
		})
	},
}

func init() {
	gridFetchCmd.Flags().String("base-url", "", "mirror base URL (default from grid.fetch_base_url)")
	gridFetchCmd.Flags().String("zones", "", "comma-separated grid zones to fetch (default: all)")
	gridFetchCmd.Flags().Int("concurrency", 0, "parallel zone downloads (default from fetch.concurrency)")

	gridCmd.AddCommand(gridStatusCmd, gridFetchCmd, gridPurgeCmd)
	rootCmd.AddCommand(gridCmd)
}

func runGridStatus(out io.Writer, format string, layout griddata.Layout) error {
	rep := griddata.Status(layout)
	return render(out, format, rep, func(w io.Writer) {
		zones := "-"
		if len(rep.Zones) > 0 {
			zones = strings.Join(rep.Zones, ",")
		}
		table(w, []string{"LAYER", "INSTALLED"}, [][]string{
			{"wrs master", yesNo(rep.WRSMaster)},
			{"zone master", yesNo(rep.ZoneMaster)},
			{"zone archives", fmt.Sprintf("%d (%s)", len(rep.Zones), zones)},
		})
		if !rep.Complete() {
			_, _ = fmt.Fprintf(w, "\nreference data incomplete under %s; run 'gridconv grid fetch'\n", rep.Root)
		}
	})
}

func runGridFetch(ctx context.Context, c *config.Config, out io.Writer, format string, zones []string) error {
	if err := c.Validate("fetch"); err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "grid fetch"))
	log.Info("fetching reference data",
		zap.String("base_url", c.Grid.FetchBaseURL),
		zap.String("root", c.Grid.DataRoot),
		zap.Strings("zones", zones),
		zap.Int("concurrency", c.Fetch.Concurrency),
	)

	rep, err := griddata.Install(ctx, griddata.InstallOptions{
		Layout:      griddata.Layout{Root: c.Grid.DataRoot},
		BaseURL:     c.Grid.FetchBaseURL,
		Zones:       zones,
		Fetcher:     newFetcher(c),
		Concurrency: c.Fetch.Concurrency,
		Logger:      zap.L(),
	})
	if err != nil {
		return eris.Wrap(err, "grid fetch")
	}

	return render(out, format, rep, func(w io.Writer) {
		_, _ = fmt.Fprintf(w, "downloaded %d, already present %d\n", len(rep.Downloaded), len(rep.Skipped))
		for _, name := range rep.Downloaded {
			_, _ = fmt.Fprintln(w, "  "+name)
		}
	})
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// toUpper returns a copy of ss with every element upper-cased.
func toUpper(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToUpper(s)
	}
	return out
}
