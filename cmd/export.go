package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/gridconv/internal/convert"
)

var exportCmd = &cobra.Command{
	Use:   "export <tile>...",
	Short: "Write tile footprints to a shapefile or GeoJSON file",
	Long: `Writes the footprints of the given WRS-2 and MGRS tiles to one vector file with the
attributes id, tile_id and tile_type. The format follows the --dest extension: .shp
(the default when there is none), .geojson or .json. Tiles that cannot be resolved
are skipped and reported.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initGrid(cfg, "convert", false)
		if err != nil {
			return err
		}
		dest, _ := cmd.Flags().GetString("dest")
		return runExport(cmd.Context(), env.Service, os.Stdout, outputFormat, tileArgs(args), dest)
	},
}

func init() {
	exportCmd.Flags().String("dest", "", "output path (default from export.default_name)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(ctx context.Context, svc *convert.Service, out io.Writer, format string, ids []string, dest string) error {
	for i, id := range ids {
		ids[i] = strings.ToUpper(strings.TrimSpace(id))
	}
	rep, err := svc.TileListToVectorFile(ctx, ids, dest)
	if err != nil {
		return err
	}
	return render(out, format, rep, func(w io.Writer) {
		_, _ = fmt.Fprintf(w, "wrote %d tiles to %s\n", rep.Written, rep.Path)
		if len(rep.Skipped) > 0 {
			_, _ = fmt.Fprintf(w, "skipped: %s\n", strings.Join(rep.Skipped, ", "))
		}
	})
}
