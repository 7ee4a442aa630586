package convert_test

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/gridconv/internal/archive"
	"github.com/sells-group/gridconv/internal/convert"
	"github.com/sells-group/gridconv/internal/geometry"
	"github.com/sells-group/gridconv/internal/grid"
	"github.com/sells-group/gridconv/internal/griddata"
	"github.com/sells-group/gridconv/internal/griddata/gridtest"
	"github.com/sells-group/gridconv/internal/shapefile"
)

func newService(t *testing.T, layout griddata.Layout, opts convert.Options) (*convert.Service, *archive.Cache) {
	t.Helper()
	cache, err := archive.New(archive.Options{
		Layout:     layout,
		ScratchDir: filepath.Join(t.TempDir(), "scratch"),
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	opts.Loader = grid.NewLoader(grid.Options{Layout: layout, Cache: cache, Logger: zap.NewNop()})
	opts.Logger = zap.NewNop()
	return convert.New(opts), cache
}

func extentOf(t *testing.T, wkt string) geometry.Extent {
	t.Helper()
	g, err := geometry.New().ParseWKT(wkt)
	require.NoError(t, err)
	e, ok := geometry.ExtentOf(g)
	require.True(t, ok)
	return e
}

func footprintWKT(t *testing.T, svc *convert.Service, id string) string {
	t.Helper()
	ctx := context.Background()
	var (
		fp  *convert.Footprint
		err error
	)
	if len(id) == 6 {
		fp, err = svc.FootprintForWrsTile(ctx, id)
	} else {
		fp, err = svc.FootprintForMgrsTile(ctx, id)
	}
	require.NoError(t, err)
	require.NotNil(t, fp, id)
	return fp.WKT
}

func assertScratchEmpty(t *testing.T, cache *archive.Cache) {
	t.Helper()
	assert.Zero(t, cache.Active())
	entries, err := os.ReadDir(cache.ScratchDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFootprintForWrsTile(t *testing.T) {
	svc, _ := newService(t, gridtest.Build(t), convert.Options{})

	fp, err := svc.FootprintForWrsTile(context.Background(), "044023")
	require.NoError(t, err)
	require.NotNil(t, fp)
	assert.Equal(t, "044023", fp.TileID)
	assert.Equal(t, "wrs", fp.Kind)
	assert.True(t, strings.HasPrefix(fp.WKT, "POLYGON (("), fp.WKT)
	assert.Equal(t, geometry.Extent{MinX: -117.5, MinY: 52, MaxX: -116.5, MaxY: 53}, extentOf(t, fp.WKT))

	fp, err = svc.FootprintForWrsTile(context.Background(), "999999")
	require.NoError(t, err)
	assert.Nil(t, fp)
}

func TestFootprintForMgrsTile(t *testing.T) {
	svc, cache := newService(t, gridtest.Build(t), convert.Options{})

	fp, err := svc.FootprintForMgrsTile(context.Background(), "11UNU")
	require.NoError(t, err)
	require.NotNil(t, fp)
	assert.Equal(t, "mgrs", fp.Kind)

	e := extentOf(t, fp.WKT)
	assert.True(t, geometry.WorldExtent.Contains(e.MinX, e.MinY))
	assert.True(t, geometry.WorldExtent.Contains(e.MaxX, e.MaxY))
	// The fixture square spans the real 11UNU corners, written clockwise.
	assert.Equal(t, "POLYGON ((-117.0 52.3502933488509, -117.0 53.2492669055972, "+
		"-115.501552128341 53.2398489094304, -115.532121800527 52.341175347143, "+
		"-117.0 52.3502933488509))", fp.WKT)

	// The EWKB form decodes to the same outline, tagged WGS84.
	bin, err := hex.DecodeString(fp.WKB)
	require.NoError(t, err)
	decoded, err := ewkb.Unmarshal(bin)
	require.NoError(t, err)
	assert.Equal(t, 4326, decoded.SRID())
	text, err := geometry.New().WKT(decoded)
	require.NoError(t, err)
	assert.Equal(t, fp.WKT, text)
	assertScratchEmpty(t, cache)

	// Valid id, no such square in the zone.
	fp, err = svc.FootprintForMgrsTile(context.Background(), "11UAA")
	require.NoError(t, err)
	assert.Nil(t, fp)
	assertScratchEmpty(t, cache)

	_, err = svc.FootprintForMgrsTile(context.Background(), "12UAA")
	assert.ErrorIs(t, err, griddata.ErrReferenceDataMissing)
}

func TestFootprint_MalformedIDReadsNothing(t *testing.T) {
	// No reference data at all: any read would fail with ErrReferenceDataMissing.
	svc, _ := newService(t, griddata.Layout{Root: t.TempDir()}, convert.Options{})
	ctx := context.Background()

	for _, id := range []string{"AAB003", "", "61UNU", "11UNW", "11UIU", "x11UNU"} {
		fp, err := svc.FootprintForMgrsTile(ctx, id)
		require.NoError(t, err, id)
		assert.Nil(t, fp, id)
	}
	for _, id := range []string{"44023", "0440234", "04402a"} {
		fp, err := svc.FootprintForWrsTile(ctx, id)
		require.NoError(t, err, id)
		assert.Nil(t, fp, id)
	}
}

func TestGzdIntersections(t *testing.T) {
	svc, _ := newService(t, gridtest.Build(t), convert.Options{})
	ctx := context.Background()

	got, err := svc.GzdIntersections(ctx, footprintWKT(t, svc, "040025"))
	require.NoError(t, err)
	assert.Equal(t, []string{"11U", "12U"}, got)

	got, err = svc.GzdIntersections(ctx, "POLYGON ((-130 40, -100 40, -100 60, -130 60, -130 40))")
	require.NoError(t, err)
	assert.Equal(t, []string{"10U", "11U", "12U"}, got)

	got, err = svc.GzdIntersections(ctx, footprintWKT(t, svc, "050050"))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = svc.GzdIntersections(ctx, "POLYGON ((")
	assert.Error(t, err)
}

func TestMgrs100kmIntersections(t *testing.T) {
	svc, cache := newService(t, gridtest.Build(t), convert.Options{})

	got, err := svc.Mgrs100kmIntersections(context.Background(), footprintWKT(t, svc, "044023"), "11U")
	require.NoError(t, err)
	assert.Equal(t, []string{"11UNU", "11UMU", "11UNT"}, got)
	assertScratchEmpty(t, cache)

	_, err = svc.Mgrs100kmIntersections(context.Background(), footprintWKT(t, svc, "044023"), "12U")
	assert.ErrorIs(t, err, griddata.ErrReferenceDataMissing)
}

func TestAllMgrsIntersections(t *testing.T) {
	svc, cache := newService(t, gridtest.Build(t), convert.Options{})
	ctx := context.Background()

	got, err := svc.AllMgrsIntersections(ctx, footprintWKT(t, svc, "044024"))
	require.NoError(t, err)
	assert.Equal(t, []string{"11UNU", "11UNT"}, got)

	// 040025 reaches into 12U, whose archive is not installed.
	_, err = svc.AllMgrsIntersections(ctx, footprintWKT(t, svc, "040025"))
	assert.ErrorIs(t, err, griddata.ErrReferenceDataMissing)
	assertScratchEmpty(t, cache)
}

func TestWrsIntersections(t *testing.T) {
	svc, _ := newService(t, gridtest.Build(t), convert.Options{})

	got, err := svc.WrsIntersections(context.Background(), footprintWKT(t, svc, "11UNU"))
	require.NoError(t, err)
	assert.Equal(t, []string{"044023", "044024"}, got)
}

func TestConvertWrsToMgrs(t *testing.T) {
	svc, cache := newService(t, gridtest.Build(t), convert.Options{})
	ctx := context.Background()

	tests := []struct {
		pathrow string
		want    []string
	}{
		{"044023", []string{"11UNU", "11UMU", "11UNT"}},
		{"044024", []string{"11UNU", "11UNT"}},
		{"050050", []string{}},
		{"999999", []string{}},
		{"11UNU", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.pathrow, func(t *testing.T) {
			got, err := svc.ConvertWrsToMgrs(ctx, tt.pathrow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assertScratchEmpty(t, cache)
}

func TestConvertMgrsToWrs(t *testing.T) {
	svc, _ := newService(t, gridtest.Build(t), convert.Options{})
	ctx := context.Background()

	tests := []struct {
		id   string
		want []string
	}{
		{"11UNU", []string{"044023", "044024"}},
		{"11UMU", []string{"044023"}},
		{"11UNT", []string{"044023", "044024"}},
		{"11UAA", []string{}},
		{"AAB003", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := svc.ConvertMgrsToWrs(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertLists(t *testing.T) {
	svc, cache := newService(t, gridtest.Build(t), convert.Options{Concurrency: 3})
	ctx := context.Background()

	got, err := svc.ConvertWrsListToMgrs(ctx, []string{"044023", "044024", "050050", "bogus"})
	require.NoError(t, err)
	assert.Equal(t, []string{"11UMU", "11UNT", "11UNU"}, got)

	got, err = svc.ConvertMgrsListToWrs(ctx, []string{"11UNU", "11UMU", "11UNT"})
	require.NoError(t, err)
	assert.Equal(t, []string{"044023", "044024"}, got)

	got, err = svc.ConvertWrsListToMgrs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = svc.ConvertWrsListToMgrs(ctx, []string{"044023", "040025"})
	assert.ErrorIs(t, err, griddata.ErrReferenceDataMissing)
	assertScratchEmpty(t, cache)
}

func TestRoundTripContainsOrigin(t *testing.T) {
	svc, _ := newService(t, gridtest.Build(t), convert.Options{})
	ctx := context.Background()

	for _, pr := range []string{"044023", "044024"} {
		ids, err := svc.ConvertWrsToMgrs(ctx, pr)
		require.NoError(t, err)
		back, err := svc.ConvertMgrsListToWrs(ctx, ids)
		require.NoError(t, err)
		assert.Contains(t, back, pr)
	}
}

func TestConcurrentConversions(t *testing.T) {
	svc, cache := newService(t, gridtest.Build(t), convert.Options{KeepMasters: true})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			pr := "044023"
			want := []string{"11UNU", "11UMU", "11UNT"}
			if i%2 == 1 {
				pr = "044024"
				want = []string{"11UNU", "11UNT"}
			}
			got, err := svc.ConvertWrsToMgrs(ctx, pr)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
	assertScratchEmpty(t, cache)
}

func TestTileListToVectorFile(t *testing.T) {
	svc, _ := newService(t, gridtest.Build(t), convert.Options{})
	dest := filepath.Join(t.TempDir(), "coverage.shp")

	report, err := svc.TileListToVectorFile(context.Background(), []string{"044023", "11UNU", "AAB003", "11UAA"}, dest)
	require.NoError(t, err)
	assert.Equal(t, dest, report.Path)
	assert.Equal(t, 2, report.Written)
	assert.Equal(t, []string{"AAB003", "11UAA"}, report.Skipped)

	layer, err := shapefile.Read(dest)
	require.NoError(t, err)
	require.Len(t, layer.Records, 2)
	assert.Equal(t, "044023", layer.Records[0].Attr("tile_id"))
	assert.Equal(t, "wrs", layer.Records[0].Attr("tile_type"))
	assert.Equal(t, "11UNU", layer.Records[1].Attr("tile_id"))
	assert.Equal(t, "mgrs", layer.Records[1].Attr("tile_type"))
	assert.Equal(t, "2", layer.Records[1].Attr("id"))
}

func TestTileListToVectorFile_DefaultName(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "default.geojson")
	svc, _ := newService(t, gridtest.Build(t), convert.Options{ExportName: dest})

	report, err := svc.TileListToVectorFile(context.Background(), []string{"044024"}, "")
	require.NoError(t, err)
	assert.Equal(t, dest, report.Path)
	assert.FileExists(t, dest)
}
