package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/gridconv/internal/srs"
)

func mustParse(t *testing.T, s string) geom.T {
	t.Helper()
	g, err := New().ParseWKT(s)
	require.NoError(t, err)
	return g
}

func TestMarshalWKT(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "polygon integral ordinates",
			in:   "POLYGON ((-116 52,-115.5 52,-115.5 52.5,-116 52))",
			want: "POLYGON ((-116.0 52.0, -115.5 52.0, -115.5 52.5, -116.0 52.0))",
		},
		{
			name: "polygon with hole",
			in:   "POLYGON ((0 0,10 0,10 10,0 10,0 0),(2 2,3 2,3 3,2 2))",
			want: "POLYGON ((0.0 0.0, 10.0 0.0, 10.0 10.0, 0.0 10.0, 0.0 0.0), (2.0 2.0, 3.0 2.0, 3.0 3.0, 2.0 2.0))",
		},
		{
			name: "multipolygon",
			in:   "MULTIPOLYGON (((0 0,1 0,1 1,0 0)),((5 5,6 5,6 6,5 5)))",
			want: "MULTIPOLYGON (((0.0 0.0, 1.0 0.0, 1.0 1.0, 0.0 0.0)), ((5.0 5.0, 6.0 5.0, 6.0 6.0, 5.0 5.0)))",
		},
		{
			name: "point",
			in:   "POINT (-117.25 52.125)",
			want: "POINT (-117.25 52.125)",
		},
		{
			name: "linestring",
			in:   "LINESTRING (0 0,1 1)",
			want: "LINESTRING (0.0 0.0, 1.0 1.0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalWKT(mustParse(t, tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarshalWKT_Precision(t *testing.T) {
	p := geom.NewPointFlat(geom.XY, []float64{-115.51807462930306, 0.1 + 0.2})
	got, err := MarshalWKT(p)
	require.NoError(t, err)
	assert.Equal(t, "POINT (-115.518074629303 0.3)", got)
}

func TestMarshalWKT_Empty(t *testing.T) {
	got, err := MarshalWKT(geom.NewPolygon(geom.XY))
	require.NoError(t, err)
	assert.Equal(t, "POLYGON EMPTY", got)

	_, err = MarshalWKT(nil)
	assert.Error(t, err)
}

func TestParseWKT_Invalid(t *testing.T) {
	e := New()
	_, err := e.ParseWKT("")
	assert.Error(t, err)

	_, err = e.ParseWKT("POLYGON ((0 0, 1 1")
	assert.Error(t, err)
}

func TestIntersects(t *testing.T) {
	square := "POLYGON ((0 0,10 0,10 10,0 10,0 0))"
	tests := []struct {
		name  string
		other string
		want  bool
	}{
		{name: "overlap", other: "POLYGON ((5 5,15 5,15 15,5 15,5 5))", want: true},
		{name: "shared edge", other: "POLYGON ((10 0,20 0,20 10,10 10,10 0))", want: true},
		{name: "shared vertex", other: "POLYGON ((10 10,20 10,20 20,10 20,10 10))", want: true},
		{name: "disjoint", other: "POLYGON ((11 11,20 11,20 20,11 20,11 11))", want: false},
		{name: "bbox overlap but disjoint", other: "POLYGON ((9.5 11,11 9.5,20 20,9.5 11))", want: false},
		{name: "contained", other: "POLYGON ((2 2,3 2,3 3,2 3,2 2))", want: true},
		{name: "containing", other: "POLYGON ((-5 -5,15 -5,15 15,-5 15,-5 -5))", want: true},
		{name: "point inside", other: "POINT (5 5)", want: true},
		{name: "point on boundary", other: "POINT (10 5)", want: true},
		{name: "point outside", other: "POINT (10.5 5)", want: false},
		{name: "line crossing", other: "LINESTRING (-1 5,11 5)", want: true},
		{name: "line inside", other: "LINESTRING (1 1,2 2)", want: true},
		{name: "line along edge", other: "LINESTRING (2 0,5 0)", want: true},
		{name: "line from corner", other: "LINESTRING (10 10,12 12)", want: true},
		{name: "line ending on edge", other: "LINESTRING (12 4,10 6)", want: true},
		{name: "line parallel to edge", other: "LINESTRING (2 -0.5,5 -0.5)", want: false},
		{name: "line past corner", other: "LINESTRING (10.5 9,12 10)", want: false},
	}

	e := New()
	a := mustParse(t, square)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := mustParse(t, tt.other)
			got, err := e.Intersects(a, b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			got, err = e.Intersects(b, a)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "symmetry")
		})
	}
}

func TestIntersects_Hole(t *testing.T) {
	e := New()
	donut := mustParse(t, "POLYGON ((0 0,10 0,10 10,0 10,0 0),(3 3,7 3,7 7,3 7,3 3))")

	inHole := mustParse(t, "POLYGON ((4 4,6 4,6 6,4 6,4 4))")
	got, err := e.Intersects(donut, inHole)
	require.NoError(t, err)
	assert.False(t, got)

	acrossHole := mustParse(t, "POLYGON ((2 4,6 4,6 6,2 6,2 4))")
	got, err = e.Intersects(donut, acrossHole)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestIntersects_Empty(t *testing.T) {
	e := New()
	got, err := e.Intersects(geom.NewPolygon(geom.XY), mustParse(t, "POINT (0 0)"))
	require.NoError(t, err)
	assert.False(t, got)
}

func TestUnion(t *testing.T) {
	e := New()

	t.Run("disjoint members kept", func(t *testing.T) {
		u, err := e.Union([]geom.T{
			mustParse(t, "POLYGON ((0 0,1 0,1 1,0 1,0 0))"),
			mustParse(t, "POLYGON ((5 5,6 5,6 6,5 6,5 5))"),
		})
		require.NoError(t, err)
		mp, ok := u.(*geom.MultiPolygon)
		require.True(t, ok)
		assert.Equal(t, 2, mp.NumPolygons())
	})

	t.Run("covered member dropped", func(t *testing.T) {
		u, err := e.Union([]geom.T{
			mustParse(t, "POLYGON ((2 2,3 2,3 3,2 3,2 2))"),
			mustParse(t, "MULTIPOLYGON (((0 0,10 0,10 10,0 10,0 0)))"),
		})
		require.NoError(t, err)
		_, ok := u.(*geom.Polygon)
		assert.True(t, ok)
		wkt, err := e.WKT(u)
		require.NoError(t, err)
		assert.Equal(t, "POLYGON ((0.0 0.0, 10.0 0.0, 10.0 10.0, 0.0 10.0, 0.0 0.0))", wkt)
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		sq := "POLYGON ((0 0,1 0,1 1,0 1,0 0))"
		u, err := e.Union([]geom.T{mustParse(t, sq), mustParse(t, sq)})
		require.NoError(t, err)
		_, ok := u.(*geom.Polygon)
		assert.True(t, ok)
	})

	t.Run("point rejected", func(t *testing.T) {
		_, err := e.Union([]geom.T{mustParse(t, "POINT (0 0)")})
		assert.Error(t, err)
	})

	t.Run("empty rejected", func(t *testing.T) {
		_, err := e.Union(nil)
		assert.Error(t, err)
	})
}

func TestSimplify(t *testing.T) {
	e := New()

	noisy := mustParse(t, "POLYGON ((0 0,5 0.0001,10 0,10 10,0 10,0 0))")
	s, err := e.Simplify(noisy, 0.001)
	require.NoError(t, err)
	require.True(t, IsPolygonal(s))
	assert.Len(t, s.FlatCoords(), 10)

	sliver := mustParse(t, "POLYGON ((0 0,1 0.0001,2 0,0 0))")
	s, err = e.Simplify(sliver, 0.01)
	require.NoError(t, err)
	assert.False(t, IsPolygonal(s))

	_, err = e.Simplify(noisy, -1)
	assert.Error(t, err)
}

func TestTransform(t *testing.T) {
	e := New()
	tr, err := srs.NewTransform(srs.SpatialRef{Zone: 11, North: true}, srs.WGS84)
	require.NoError(t, err)

	sq := mustParse(t, "POLYGON ((500000 5800000,600000 5800000,600000 5900000,500000 5900000,500000 5800000))")
	out, err := e.Transform(sq, tr)
	require.NoError(t, err)

	poly, ok := out.(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, 1, poly.NumLinearRings())
	ext, ok := ExtentOf(poly)
	require.True(t, ok)
	assert.InDelta(t, -117.0, ext.MinX, 1e-6)
	assert.Greater(t, ext.MaxX, -116.0)
	assert.Less(t, ext.MaxX, -115.0)
	assert.True(t, WorldExtent.Contains(ext.MinX, ext.MinY))

	// Input is untouched.
	assert.Equal(t, 500000.0, sq.FlatCoords()[0])

	identity, err := srs.NewTransform(srs.WGS84, srs.WGS84)
	require.NoError(t, err)
	same, err := e.Transform(sq, identity)
	require.NoError(t, err)
	assert.Same(t, sq, same)
}

func TestWKB(t *testing.T) {
	e := New()
	data, err := e.WKB(mustParse(t, "POLYGON ((0 0,1 0,1 1,0 0))"))
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, 4326, g.SRID())
	_, ok := g.(*geom.Polygon)
	assert.True(t, ok)
}

func TestExtentOf(t *testing.T) {
	ext, ok := ExtentOf(mustParse(t, "MULTIPOLYGON (((0 0,1 0,1 1,0 0)),((5 -5,6 -5,6 6,5 -5)))"))
	require.True(t, ok)
	assert.Equal(t, Extent{MinX: 0, MinY: -5, MaxX: 6, MaxY: 6}, ext)

	_, ok = ExtentOf(geom.NewPolygon(geom.XY))
	assert.False(t, ok)

	assert.True(t, ext.Overlaps(Extent{MinX: 6, MinY: 6, MaxX: 7, MaxY: 7}))
	assert.False(t, ext.Overlaps(Extent{MinX: 6.5, MinY: 0, MaxX: 7, MaxY: 1}))
}

func TestOrbRoundTrip(t *testing.T) {
	in := mustParse(t, "MULTIPOLYGON (((0 0,10 0,10 10,0 10,0 0),(2 2,3 2,3 3,2 2)),((20 20,21 20,21 21,20 20)))")
	og, err := ToOrb(in)
	require.NoError(t, err)
	out, err := FromOrb(og)
	require.NoError(t, err)
	assert.Equal(t, in.FlatCoords(), out.FlatCoords())
	assert.Equal(t, in.(*geom.MultiPolygon).Endss(), out.(*geom.MultiPolygon).Endss())
}
