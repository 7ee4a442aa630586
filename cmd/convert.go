package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/gridconv/internal/convert"
	"github.com/sells-group/gridconv/internal/tileid"
)

var convertCmd = &cobra.Command{
	Use:   "convert <tile>...",
	Short: "Convert tiles between the WRS-2 and MGRS grids",
	Long: `Converts each WRS-2 path/row (e.g. 044023) into the MGRS 100 km squares it overlaps,
and each MGRS id (e.g. 11UNU) into the path/rows it overlaps. Ids may be given as
separate arguments or comma-separated.

With --list the results are merged: one sorted, de-duplicated list per target grid.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initGrid(cfg, "convert", false)
		if err != nil {
			return err
		}
		list, _ := cmd.Flags().GetBool("list")
		ids := tileArgs(args)
		if list {
			return runConvertList(cmd.Context(), env.Service, os.Stdout, outputFormat, ids)
		}
		return runConvert(cmd.Context(), env.Service, os.Stdout, outputFormat, ids)
	},
}

func init() {
	convertCmd.Flags().Bool("list", false, "merge the results of all tiles")
	rootCmd.AddCommand(convertCmd)
}

// conversion is the result for one input tile.
type conversion struct {
	TileID   string   `json:"tile_id" yaml:"tile_id"`
	TileType string   `json:"tile_type" yaml:"tile_type"`
	Overlaps []string `json:"overlaps" yaml:"overlaps"`
}

func runConvert(ctx context.Context, svc *convert.Service, out io.Writer, format string, ids []string) error {
	results := make([]conversion, 0, len(ids))
	for _, raw := range ids {
		id := strings.ToUpper(strings.TrimSpace(raw))
		kind := tileid.Classify(id)
		c := conversion{TileID: id, TileType: kind.String(), Overlaps: []string{}}

		var err error
		switch kind {
		case tileid.KindWRS:
			c.Overlaps, err = svc.ConvertWrsToMgrs(ctx, id)
		case tileid.KindMGRS:
			c.Overlaps, err = svc.ConvertMgrsToWrs(ctx, id)
		}
		if err != nil {
			return eris.Wrapf(err, "convert %s", id)
		}
		results = append(results, c)
	}

	return render(out, format, results, func(w io.Writer) {
		rows := make([][]string, 0, len(results))
		for _, c := range results {
			overlaps := strings.Join(c.Overlaps, ",")
			if overlaps == "" {
				overlaps = "-"
			}
			rows = append(rows, []string{c.TileID, c.TileType, overlaps})
		}
		table(w, []string{"TILE", "TYPE", "OVERLAPS"}, rows)
	})
}

// mergedConversion is the --list result.
type mergedConversion struct {
	MGRS    []string `json:"mgrs" yaml:"mgrs"`
	WRS     []string `json:"wrs" yaml:"wrs"`
	Unknown []string `json:"unknown" yaml:"unknown"`
}

func runConvertList(ctx context.Context, svc *convert.Service, out io.Writer, format string, ids []string) error {
	var wrs, mgrs []string
	res := mergedConversion{Unknown: []string{}}
	for _, raw := range ids {
		id := strings.ToUpper(strings.TrimSpace(raw))
		switch tileid.Classify(id) {
		case tileid.KindWRS:
			wrs = append(wrs, id)
		case tileid.KindMGRS:
			mgrs = append(mgrs, id)
		default:
			res.Unknown = append(res.Unknown, id)
		}
	}

	var err error
	if res.MGRS, err = svc.ConvertWrsListToMgrs(ctx, wrs); err != nil {
		return err
	}
	if res.WRS, err = svc.ConvertMgrsListToWrs(ctx, mgrs); err != nil {
		return err
	}

	return render(out, format, res, func(w io.Writer) {
		printLines(res.MGRS)(w)
		printLines(res.WRS)(w)
		for _, id := range res.Unknown {
			_, _ = io.WriteString(w, "# unrecognised: "+id+"\n")
		}
	})
}
