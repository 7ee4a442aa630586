package footprint

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/gridconv/internal/geometry"
	"github.com/sells-group/gridconv/internal/shapefile"
	"github.com/sells-group/gridconv/internal/srs"
)

func rect(minX, minY, maxX, maxY float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		minX, minY, maxX, minY, maxX, maxY, minX, maxY, minX, minY,
	}, []int{10})
}

func writeShapefile(t *testing.T, ref srs.SpatialRef, polys ...geom.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aoi.shp")
	fields := []shapefile.Field{{Name: "name", Kind: shapefile.FieldString, Size: 8}}
	feats := make([]shapefile.Feature, 0, len(polys))
	for _, p := range polys {
		feats = append(feats, shapefile.Feature{Geometry: p, Values: []any{"aoi"}})
	}
	require.NoError(t, shapefile.WritePolygons(path, ref, fields, feats))
	return path
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func opts() Options {
	return Options{Logger: zap.NewNop()}
}

func extent(t *testing.T, wkt string) geometry.Extent {
	t.Helper()
	g, err := geometry.New().ParseWKT(wkt)
	require.NoError(t, err)
	e, ok := geometry.ExtentOf(g)
	require.True(t, ok)
	return e
}

func TestFromFile_Shapefile(t *testing.T) {
	sliver := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 0.001, 0.0001, 0.002, 0, 0, 0}, []int{8})
	path := writeShapefile(t, srs.WGS84,
		rect(10, 10, 11, 11),
		rect(20, 20, 21, 21),
		rect(10.2, 10.2, 10.4, 10.4), // inside the first square
		sliver,
	)

	res, err := FromFile(context.Background(), path, opts())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Parts)
	assert.Equal(t, 1, res.Dropped)
	assert.True(t, strings.HasPrefix(res.WKT, "MULTIPOLYGON ((("), res.WKT)
	assert.Equal(t, geometry.Extent{MinX: 10, MinY: 10, MaxX: 21, MaxY: 21}, extent(t, res.WKT))
}

func TestFromFile_ShapefileReprojected(t *testing.T) {
	ref, err := srs.FromZoneCode("11U")
	require.NoError(t, err)
	path := writeShapefile(t, ref, rect(500000, 5800000, 600000, 5900000))

	res, err := FromFile(context.Background(), path, opts())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Parts)

	e := extent(t, res.WKT)
	assert.InDelta(t, -117.0, e.MinX, 1e-6)
	assert.InDelta(t, 52.34, e.MinY, 0.02)
}

const collection = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[2,0],[2,2],[0,2],[0,0]]]}},
    {"type": "Feature", "properties": {},
     "geometry": {"type": "LineString", "coordinates": [[5,5],[6,6]]}}
  ]
}`

func TestFromFile_GeoJSONCollection(t *testing.T) {
	path := writeFile(t, "aoi.geojson", collection)

	res, err := FromFile(context.Background(), path, opts())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Parts)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, "POLYGON ((0.0 0.0, 2.0 0.0, 2.0 2.0, 0.0 2.0, 0.0 0.0))", res.WKT)
}

func TestFromFile_GeoJSONFeature(t *testing.T) {
	path := writeFile(t, "aoi.json", `{"type": "Feature", "properties": {},
	  "geometry": {"type": "MultiPolygon", "coordinates": [
	    [[[0,0],[1,0],[1,1],[0,1],[0,0]]],
	    [[[3,3],[4,3],[4,4],[3,4],[3,3]]]
	  ]}}`)

	res, err := FromFile(context.Background(), path, opts())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Parts)
	assert.Zero(t, res.Dropped)
	assert.True(t, strings.HasPrefix(res.WKT, "MULTIPOLYGON"), res.WKT)
}

func TestFromFile_NoUsablePolygon(t *testing.T) {
	path := writeFile(t, "line.geojson", `{"type": "Feature", "properties": {},
	  "geometry": {"type": "LineString", "coordinates": [[5,5],[6,6]]}}`)

	_, err := FromFile(context.Background(), path, opts())
	assert.ErrorIs(t, err, ErrAmbiguousSource)
}

func TestFromFile_Errors(t *testing.T) {
	path := writeFile(t, "aoi.geojson", collection)

	_, err := FromFile(context.Background(), path, Options{Tolerance: -1})
	assert.Error(t, err)

	_, err = FromFile(context.Background(), writeFile(t, "aoi.kml", "<kml/>"), opts())
	assert.Error(t, err)

	_, err = FromFile(context.Background(), writeFile(t, "bad.geojson", "{"), opts())
	assert.Error(t, err)

	_, err = FromFile(context.Background(), filepath.Join(t.TempDir(), "missing.shp"), opts())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = FromFile(ctx, path, opts())
	assert.ErrorIs(t, err, context.Canceled)
}
