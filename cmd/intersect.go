package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gridconv/internal/convert"
	"github.com/sells-group/gridconv/internal/footprint"
	"github.com/sells-group/gridconv/internal/tileid"
)

var intersectCmd = &cobra.Command{
	Use:   "intersect",
	Short: "List the tiles of a grid intersecting a footprint",
	Long: `Lists the tiles of one grid that intersect a WGS84 footprint, given as WKT (--wkt)
or derived from a shapefile or GeoJSON file (--file).

--grid selects the target: wrs (path/rows), gzd (MGRS grid zones), or mgrs (100 km
squares). For mgrs, --zone restricts the search to one grid zone.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		wkt, _ := cmd.Flags().GetString("wkt")
		file, _ := cmd.Flags().GetString("file")
		grid, _ := cmd.Flags().GetString("grid")
		zone, _ := cmd.Flags().GetString("zone")

		switch {
		case wkt == "" && file == "":
			return eris.New("intersect: one of --wkt or --file is required")
		case wkt != "" && file != "":
			return eris.New("intersect: --wkt and --file are mutually exclusive")
		}
		if file != "" {
			res, err := footprint.FromFile(cmd.Context(), file, footprint.Options{Logger: zap.L()})
			if err != nil {
				return err
			}
			wkt = res.WKT
		}

		env, err := initGrid(cfg, "convert", false)
		if err != nil {
			return err
		}
		return runIntersect(cmd.Context(), env.Service, os.Stdout, outputFormat, wkt, grid, zone)
	},
}

func init() {
	intersectCmd.Flags().String("wkt", "", "footprint as WKT (WGS84)")
	intersectCmd.Flags().String("file", "", "shapefile or GeoJSON file to derive the footprint from")
	intersectCmd.Flags().String("grid", "mgrs", "target grid: wrs, mgrs, gzd")
	intersectCmd.Flags().String("zone", "", "restrict mgrs results to one grid zone (e.g. 11U)")
	rootCmd.AddCommand(intersectCmd)
}

// intersection is the result of runIntersect.
type intersection struct {
	Grid  string   `json:"grid" yaml:"grid"`
	Zone  string   `json:"zone,omitempty" yaml:"zone,omitempty"`
	Tiles []string `json:"tiles" yaml:"tiles"`
}

func runIntersect(ctx context.Context, svc *convert.Service, out io.Writer, format, wkt, grid, zone string) error {
	res := intersection{
		Grid: strings.ToLower(strings.TrimSpace(grid)),
		Zone: strings.ToUpper(strings.TrimSpace(zone)),
	}
	if res.Zone != "" && res.Grid != "mgrs" {
		return eris.New("intersect: --zone applies to --grid mgrs only")
	}

	var err error
	switch {
	case res.Grid == "wrs":
		res.Tiles, err = svc.WrsIntersections(ctx, wkt)
	case res.Grid == "gzd":
		res.Tiles, err = svc.GzdIntersections(ctx, wkt)
	case res.Grid == "mgrs" && res.Zone == "":
		res.Tiles, err = svc.AllMgrsIntersections(ctx, wkt)
	case res.Grid == "mgrs":
		if !tileid.IsZone(res.Zone) {
			return eris.Errorf("intersect: invalid grid zone %q", res.Zone)
		}
		res.Tiles, err = svc.Mgrs100kmIntersections(ctx, wkt, res.Zone)
	default:
		return eris.Errorf("intersect: unknown grid %q (want wrs, mgrs or gzd)", grid)
	}
	if err != nil {
		return err
	}
	return render(out, format, res, printLines(res.Tiles))
}
