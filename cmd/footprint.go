package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gridconv/internal/convert"
	"github.com/sells-group/gridconv/internal/export"
	"github.com/sells-group/gridconv/internal/footprint"
	"github.com/sells-group/gridconv/internal/tileid"
)

var footprintCmd = &cobra.Command{
	Use:   "footprint [tile]...",
	Short: "Print tile or file footprints as WKT",
	Long: `Prints the WGS84 footprint of each WRS-2 path/row or MGRS 100 km square.

With --file, prints the footprint of a shapefile or GeoJSON file instead: every polygon
is simplified and the parts are unioned. --save also writes that footprint as GeoJSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file != "" {
			tolerance, _ := cmd.Flags().GetFloat64("tolerance")
			save, _ := cmd.Flags().GetString("save")
			return runFileFootprint(cmd.Context(), os.Stdout, outputFormat, file, tolerance, save)
		}
		if len(args) == 0 {
			return eris.New("footprint: give tile ids or --file")
		}

		env, err := initGrid(cfg, "convert", false)
		if err != nil {
			return err
		}
		return runFootprint(cmd.Context(), env.Service, os.Stdout, outputFormat, tileArgs(args))
	},
}

func init() {
	footprintCmd.Flags().String("file", "", "shapefile or GeoJSON file to derive a footprint from")
	footprintCmd.Flags().Float64("tolerance", footprint.DefaultTolerance, "simplification tolerance in degrees (with --file)")
	footprintCmd.Flags().String("save", "", "write the file footprint to this GeoJSON path (with --file)")
	rootCmd.AddCommand(footprintCmd)
}

func runFootprint(ctx context.Context, svc *convert.Service, out io.Writer, format string, ids []string) error {
	found := make([]*convert.Footprint, 0, len(ids))
	var missing []string
	for _, raw := range ids {
		id := strings.ToUpper(strings.TrimSpace(raw))

		var (
			fp  *convert.Footprint
			err error
		)
		switch tileid.Classify(id) {
		case tileid.KindWRS:
			fp, err = svc.FootprintForWrsTile(ctx, id)
		case tileid.KindMGRS:
			fp, err = svc.FootprintForMgrsTile(ctx, id)
		}
		if err != nil {
			return eris.Wrapf(err, "footprint %s", id)
		}
		if fp == nil {
			zap.L().Warn("no footprint for tile", zap.String("tile_id", id))
			missing = append(missing, id)
			continue
		}
		found = append(found, fp)
	}

	err := render(out, format, found, func(w io.Writer) {
		for _, fp := range found {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", fp.TileID, fp.WKT)
		}
	})
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return eris.Errorf("footprint: no footprint for %s", strings.Join(missing, ", "))
	}
	return nil
}

func runFileFootprint(ctx context.Context, out io.Writer, format, path string, tolerance float64, save string) error {
	res, err := footprint.FromFile(ctx, path, footprint.Options{Tolerance: tolerance, Logger: zap.L()})
	if err != nil {
		return err
	}
	if save != "" {
		if err := export.FootprintGeoJSON(save, res.WKT); err != nil {
			return err
		}
		zap.L().Info("footprint saved", zap.String("path", save))
	}
	return render(out, format, res, func(w io.Writer) {
		_, _ = fmt.Fprintln(w, res.WKT)
	})
}
