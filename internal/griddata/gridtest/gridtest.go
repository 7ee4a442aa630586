// Package gridtest builds a small synthetic grid-data root for tests.
//
// Geography (WGS84 unless noted):
//
//	WRS-2 master     044023 lon[-117.5,-116.5] lat[52,53]
//	                 044024 lon[-116.5,-115.5] lat[52,53]
//	                 040025 lon[-114.5,-113.5] lat[50,51]   (straddles 11U/12U)
//	                 050050 lon[10,11]         lat[0,1]     (no zone coverage)
//	zone master      10U lon[-126,-120], 11U lon[-120,-114], 12U lon[-114,-108]; lat[48,56]
//	11U archive      UTM 11N squares NU, MU, NT and a distant decoy, nested in a folder
//	                 whose shapefile stem differs from the archive name
//	10U, 12U         no archive installed
package gridtest

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/gridconv/internal/griddata"
	"github.com/sells-group/gridconv/internal/shapefile"
	"github.com/sells-group/gridconv/internal/srs"
)

// Square is a 100 km square given by its UTM extent.
type Square struct {
	ID                     string // two-letter 100kmSQ_ID
	MinE, MinN, MaxE, MaxN float64
}

// Squares11U are written to the 11U archive in this order.
var Squares11U = []Square{
	{ID: "NU", MinE: 500000, MinN: 5800000, MaxE: 600000, MaxN: 5900000},
	{ID: "MU", MinE: 400000, MinN: 5800000, MaxE: 500000, MaxN: 5900000},
	{ID: "NT", MinE: 500000, MinN: 5700000, MaxE: 600000, MaxN: 5800000},
	{ID: "QP", MinE: 800000, MinN: 5000000, MaxE: 834000, MaxN: 5100000},
}

// MemberStem is the shapefile stem inside the 11U archive.
const MemberStem = "MGRS_100kmSQ_ID11U"

type box struct {
	id                     string
	minX, minY, maxX, maxY float64
}

var wrsTiles = []box{
	{"044023", -117.5, 52, -116.5, 53},
	{"044024", -116.5, 52, -115.5, 53},
	{"040025", -114.5, 50, -113.5, 51},
	{"050050", 10, 0, 11, 1},
}

var zones = []box{
	{"10U", -126, 48, -120, 56},
	{"11U", -120, 48, -114, 56},
	{"12U", -114, 48, -108, 56},
}

func rect(minX, minY, maxX, maxY float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		minX, minY, maxX, minY, maxX, maxY, minX, maxY, minX, minY,
	}, []int{10})
}

// Build writes the complete fixture into a fresh temp dir and returns its layout.
func Build(t testing.TB) griddata.Layout {
	t.Helper()
	layout := griddata.Layout{Root: t.TempDir()}
	WriteWRSMaster(t, layout)
	WriteZoneMaster(t, layout)
	WriteZoneArchive(t, layout, "11U", MemberStem, Squares11U)
	return layout
}

// WriteWRSMaster writes the WRS-2 master with a numeric PR field, as distributed.
func WriteWRSMaster(t testing.TB, layout griddata.Layout) {
	t.Helper()
	feats := make([]shapefile.Feature, 0, len(wrsTiles))
	for _, b := range wrsTiles {
		pr := 0
		for _, c := range b.id {
			pr = pr*10 + int(c-'0')
		}
		feats = append(feats, shapefile.Feature{
			Geometry: rect(b.minX, b.minY, b.maxX, b.maxY),
			Values:   []any{pr, b.id[:3], b.id[3:]},
		})
	}
	fields := []shapefile.Field{
		{Name: griddata.FieldPR, Kind: shapefile.FieldInteger, Size: 9},
		{Name: "PATH", Kind: shapefile.FieldString, Size: 3},
		{Name: "ROW", Kind: shapefile.FieldString, Size: 3},
	}
	require.NoError(t, shapefile.WritePolygons(layout.WRSMasterPath(), srs.WGS84, fields, feats))
}

// WriteZoneMaster writes the grid-zone master layer.
func WriteZoneMaster(t testing.TB, layout griddata.Layout) {
	t.Helper()
	feats := make([]shapefile.Feature, 0, len(zones))
	for _, b := range zones {
		feats = append(feats, shapefile.Feature{
			Geometry: rect(b.minX, b.minY, b.maxX, b.maxY),
			Values:   []any{b.id},
		})
	}
	fields := []shapefile.Field{{Name: griddata.FieldGZD, Kind: shapefile.FieldString, Size: 3}}
	require.NoError(t, shapefile.WritePolygons(layout.ZoneMasterPath(), srs.WGS84, fields, feats))
}

// WriteZoneArchive zips a UTM layer of squares for zone, with the members nested in a
// folder named after stem.
func WriteZoneArchive(t testing.TB, layout griddata.Layout, zone, stem string, squares []Square) {
	t.Helper()
	ref, err := srs.FromZoneCode(zone)
	require.NoError(t, err)

	feats := make([]shapefile.Feature, 0, len(squares))
	for _, sq := range squares {
		feats = append(feats, shapefile.Feature{
			Geometry: rect(sq.MinE, sq.MinN, sq.MaxE, sq.MaxN),
			Values:   []any{sq.ID, zone + sq.ID},
		})
	}
	fields := []shapefile.Field{
		{Name: griddata.FieldSquareID, Kind: shapefile.FieldString, Size: 2},
		{Name: griddata.FieldMGRS, Kind: shapefile.FieldString, Size: 5},
	}
	staging := t.TempDir()
	require.NoError(t, shapefile.WritePolygons(filepath.Join(staging, stem+".shp"), ref, fields, feats))

	members := make([]string, 0, 4)
	for _, ext := range []string{".shp", ".shx", ".dbf", ".prj"} {
		members = append(members, filepath.Join(staging, stem+ext))
	}
	ZipFiles(t, layout.ZoneArchivePath(zone), stem+"/", members...)
}

// ZipFiles writes files into a new archive under prefix (e.g. "folder/"), preceded by a
// directory entry when prefix is non-empty.
func ZipFiles(t testing.TB, zipPath, prefix string, files ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(zipPath), 0o755))
	out, err := os.Create(zipPath)
	require.NoError(t, err)
	defer out.Close() //nolint:errcheck

	w := zip.NewWriter(out)
	if prefix != "" {
		_, err := w.Create(prefix)
		require.NoError(t, err)
	}
	for _, path := range files {
		fw, err := w.Create(prefix + filepath.Base(path))
		require.NoError(t, err)
		in, err := os.Open(path)
		require.NoError(t, err)
		_, err = io.Copy(fw, in)
		_ = in.Close()
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}
