// Package geometry is the geometry engine behind the grid lookups: WKT and EWKB
// encoding, intersection tests, union, simplification, and reprojection of go-geom
// geometries.
package geometry

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/sells-group/gridconv/internal/srs"
)

// Engine is the set of geometry operations the grid components depend on.
type Engine interface {
	ParseWKT(s string) (geom.T, error)
	WKT(g geom.T) (string, error)
	WKB(g geom.T) ([]byte, error)
	// Intersects reports whether the intersection of a and b is non-empty. Boundary
	// contact (a shared edge or a single shared vertex) counts as non-empty.
	Intersects(a, b geom.T) (bool, error)
	Union(gs []geom.T) (geom.T, error)
	Simplify(g geom.T, tolerance float64) (geom.T, error)
	Transform(g geom.T, tr srs.Transformer) (geom.T, error)
}

// Planar implements Engine with planar (Cartesian) predicates on longitude/latitude.
type Planar struct{}

// New returns the default engine.
func New() *Planar {
	return &Planar{}
}

// ParseWKT decodes Well-Known Text.
func (p *Planar) ParseWKT(s string) (geom.T, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, eris.New("geometry: empty WKT")
	}
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: parse WKT")
	}
	return g, nil
}

// WKT encodes g in the OGR text convention.
func (p *Planar) WKT(g geom.T) (string, error) {
	return MarshalWKT(g)
}

// WKB encodes g as little-endian EWKB tagged with SRID 4326.
func (p *Planar) WKB(g geom.T) ([]byte, error) {
	if g == nil {
		return nil, eris.New("geometry: nil geometry")
	}
	tagged, err := withSRID(g, 4326)
	if err != nil {
		return nil, err
	}
	data, err := ewkb.Marshal(tagged, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: encode WKB")
	}
	return data, nil
}

// Transform returns a copy of g with every coordinate passed through tr.
func (p *Planar) Transform(g geom.T, tr srs.Transformer) (geom.T, error) {
	if g == nil {
		return nil, eris.New("geometry: nil geometry")
	}
	if srs.IsIdentity(tr) {
		return g, nil
	}
	if gc, ok := g.(*geom.GeometryCollection); ok {
		out := geom.NewGeometryCollection()
		for _, child := range gc.Geoms() {
			tg, err := p.Transform(child, tr)
			if err != nil {
				return nil, err
			}
			if err := out.Push(tg); err != nil {
				return nil, eris.Wrap(err, "geometry: rebuild collection")
			}
		}
		return out, nil
	}

	stride := g.Stride()
	src := g.FlatCoords()
	flat := make([]float64, len(src))
	copy(flat, src)
	for i := 0; i+1 < len(flat); i += stride {
		x, y, err := tr.Transform(flat[i], flat[i+1])
		if err != nil {
			return nil, eris.Wrap(err, "geometry: transform")
		}
		flat[i], flat[i+1] = x, y
	}
	return rebuild(g, flat)
}

// rebuild creates a geometry of the same type and structure as g over new coordinates.
func rebuild(g geom.T, flat []float64) (geom.T, error) {
	layout := g.Layout()
	switch t := g.(type) {
	case *geom.Point:
		return geom.NewPointFlat(layout, flat), nil
	case *geom.LineString:
		return geom.NewLineStringFlat(layout, flat), nil
	case *geom.LinearRing:
		return geom.NewLinearRingFlat(layout, flat), nil
	case *geom.Polygon:
		return geom.NewPolygonFlat(layout, flat, t.Ends()), nil
	case *geom.MultiPoint:
		return geom.NewMultiPointFlat(layout, flat), nil
	case *geom.MultiLineString:
		return geom.NewMultiLineStringFlat(layout, flat, t.Ends()), nil
	case *geom.MultiPolygon:
		return geom.NewMultiPolygonFlat(layout, flat, t.Endss()), nil
	default:
		return nil, eris.Errorf("geometry: unsupported type %T", g)
	}
}

func withSRID(g geom.T, srid int) (geom.T, error) {
	switch t := g.(type) {
	case *geom.Point:
		return t.Clone().SetSRID(srid), nil
	case *geom.LineString:
		return t.Clone().SetSRID(srid), nil
	case *geom.Polygon:
		return t.Clone().SetSRID(srid), nil
	case *geom.MultiPoint:
		return t.Clone().SetSRID(srid), nil
	case *geom.MultiLineString:
		return t.Clone().SetSRID(srid), nil
	case *geom.MultiPolygon:
		return t.Clone().SetSRID(srid), nil
	case *geom.GeometryCollection:
		out := geom.NewGeometryCollection()
		if err := out.Push(t.Geoms()...); err != nil {
			return nil, eris.Wrap(err, "geometry: copy collection")
		}
		return out.SetSRID(srid), nil
	default:
		return nil, eris.Errorf("geometry: unsupported type %T", g)
	}
}

// Extent is an axis-aligned bounding box.
type Extent struct {
	MinX, MinY, MaxX, MaxY float64
}

// Overlaps reports whether e and o share at least one point.
func (e Extent) Overlaps(o Extent) bool {
	return e.MinX <= o.MaxX && o.MinX <= e.MaxX && e.MinY <= o.MaxY && o.MinY <= e.MaxY
}

// Contains reports whether (x, y) lies in e, boundary included.
func (e Extent) Contains(x, y float64) bool {
	return x >= e.MinX && x <= e.MaxX && y >= e.MinY && y <= e.MaxY
}

// WorldExtent is the valid WGS84 longitude/latitude range.
var WorldExtent = Extent{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}

// ExtentOf returns the bounding box of g and false when g has no coordinates.
func ExtentOf(g geom.T) (Extent, bool) {
	if g == nil {
		return Extent{}, false
	}
	if gc, ok := g.(*geom.GeometryCollection); ok {
		var out Extent
		found := false
		for _, child := range gc.Geoms() {
			e, ok := ExtentOf(child)
			if !ok {
				continue
			}
			if !found {
				out, found = e, true
				continue
			}
			out = Extent{
				MinX: math.Min(out.MinX, e.MinX), MinY: math.Min(out.MinY, e.MinY),
				MaxX: math.Max(out.MaxX, e.MaxX), MaxY: math.Max(out.MaxY, e.MaxY),
			}
		}
		return out, found
	}

	flat := g.FlatCoords()
	stride := g.Stride()
	if len(flat) < 2 || stride < 2 {
		return Extent{}, false
	}
	e := Extent{MinX: flat[0], MinY: flat[1], MaxX: flat[0], MaxY: flat[1]}
	for i := stride; i+1 < len(flat); i += stride {
		e.MinX = math.Min(e.MinX, flat[i])
		e.MaxX = math.Max(e.MaxX, flat[i])
		e.MinY = math.Min(e.MinY, flat[i+1])
		e.MaxY = math.Max(e.MaxY, flat[i+1])
	}
	return e, true
}

// IsPolygonal reports whether g is a non-empty Polygon or MultiPolygon.
func IsPolygonal(g geom.T) bool {
	switch t := g.(type) {
	case *geom.Polygon:
		return t.NumLinearRings() > 0 && len(t.FlatCoords()) > 0
	case *geom.MultiPolygon:
		return t.NumPolygons() > 0 && len(t.FlatCoords()) > 0
	default:
		return false
	}
}
