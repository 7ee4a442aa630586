package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/gridconv/internal/shapefile"
	"github.com/sells-group/gridconv/internal/tileid"
)

func square(minX, minY, size float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		minX, minY, minX + size, minY, minX + size, minY + size, minX, minY + size, minX, minY,
	}, []int{10})
}

func sampleTiles() []Tile {
	return []Tile{
		{ID: "044023", Kind: tileid.KindWRS, Geometry: square(-117.5, 52, 1)},
		{ID: "12UAA", Kind: tileid.KindMGRS},
		{ID: "AAB003", Kind: tileid.KindUnknown},
		{ID: "11UNU", Kind: tileid.KindMGRS, Geometry: square(-117, 52.3, 1.5)},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		dest string
		path string
		f    format
	}{
		{"", DefaultName, formatShapefile},
		{"out/cover", "out/cover.shp", formatShapefile},
		{"cover.SHP", "cover.SHP", formatShapefile},
		{"cover.geojson", "cover.geojson", formatGeoJSON},
		{"cover.json", "cover.json", formatGeoJSON},
	}
	for _, tt := range tests {
		t.Run(tt.dest, func(t *testing.T) {
			path, f, err := resolve(tt.dest)
			require.NoError(t, err)
			assert.Equal(t, tt.path, path)
			assert.Equal(t, tt.f, f)
		})
	}

	_, _, err := resolve("cover.kml")
	assert.Error(t, err)
}

func TestTileCoverage_Shapefile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "coverage.shp")

	report, err := TileCoverage(dest, sampleTiles())
	require.NoError(t, err)
	assert.Equal(t, dest, report.Path)
	assert.Equal(t, 2, report.Written)
	assert.Equal(t, []string{"12UAA", "AAB003"}, report.Skipped)

	layer, err := shapefile.Read(dest)
	require.NoError(t, err)
	require.True(t, layer.HasSRS)
	assert.True(t, layer.SRS.Geographic)
	require.Len(t, layer.Records, 2)

	assert.Equal(t, "1", layer.Records[0].Attr(FieldID))
	assert.Equal(t, "044023", layer.Records[0].Attr(FieldTileID))
	assert.Equal(t, "wrs", layer.Records[0].Attr(FieldTileType))

	// Ids stay contiguous over written features.
	assert.Equal(t, "2", layer.Records[1].Attr(FieldID))
	assert.Equal(t, "11UNU", layer.Records[1].Attr(FieldTileID))
	assert.Equal(t, "mgrs", layer.Records[1].Attr(FieldTileType))
}

func TestTileCoverage_NoExtension(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "coverage")
	report, err := TileCoverage(dest, sampleTiles()[:1])
	require.NoError(t, err)
	assert.Equal(t, dest+".shp", report.Path)
	assert.FileExists(t, dest+".shp")
	assert.FileExists(t, dest+".dbf")
	assert.FileExists(t, dest+".prj")
}

func TestTileCoverage_GeoJSON(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "coverage.geojson")

	report, err := TileCoverage(dest, sampleTiles())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Written)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	first := fc.Features[0]
	assert.EqualValues(t, 1, first.Properties[FieldID])
	assert.Equal(t, "044023", first.Properties[FieldTileID])
	assert.Equal(t, "wrs", first.Properties[FieldTileType])
	poly, ok := first.Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{-117.5, 52}, Max: orb.Point{-116.5, 53}}, poly.Bound())

	assert.EqualValues(t, 2, fc.Features[1].Properties[FieldID])
}

func TestTileCoverage_Empty(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "empty.geojson")
	report, err := TileCoverage(dest, nil)
	require.NoError(t, err)
	assert.Zero(t, report.Written)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	assert.Empty(t, fc.Features)
}

func TestTileCoverage_UnsupportedFormat(t *testing.T) {
	_, err := TileCoverage(filepath.Join(t.TempDir(), "coverage.kml"), sampleTiles())
	assert.Error(t, err)
}

func TestFootprintGeoJSON(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "footprint.geojson")
	require.NoError(t, FootprintGeoJSON(dest, "POLYGON ((0 0, 1 0, 1 1, 0 1, 0 0))"))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	f, err := geojson.UnmarshalFeature(data)
	require.NoError(t, err)
	poly, ok := f.Geometry.(orb.Polygon)
	require.True(t, ok)
	require.Len(t, poly, 1)
	assert.Len(t, poly[0], 5)

	assert.Error(t, FootprintGeoJSON(dest, "not wkt"))
}
