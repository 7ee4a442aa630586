package geometry

import (
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ToOrb converts a go-geom geometry into its orb equivalent (2D).
func ToOrb(g geom.T) (orb.Geometry, error) {
	switch t := g.(type) {
	case *geom.Point:
		c := t.FlatCoords()
		if len(c) < 2 {
			return nil, eris.New("geometry: empty point")
		}
		return orb.Point{c[0], c[1]}, nil
	case *geom.LineString:
		return orb.LineString(flatToPoints(t.FlatCoords(), t.Stride())), nil
	case *geom.LinearRing:
		return orb.Ring(flatToPoints(t.FlatCoords(), t.Stride())), nil
	case *geom.Polygon:
		return polygonToOrb(t), nil
	case *geom.MultiPoint:
		return orb.MultiPoint(flatToPoints(t.FlatCoords(), t.Stride())), nil
	case *geom.MultiLineString:
		out := make(orb.MultiLineString, 0, t.NumLineStrings())
		for i := 0; i < t.NumLineStrings(); i++ {
			ls := t.LineString(i)
			out = append(out, orb.LineString(flatToPoints(ls.FlatCoords(), ls.Stride())))
		}
		return out, nil
	case *geom.MultiPolygon:
		out := make(orb.MultiPolygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			out = append(out, polygonToOrb(t.Polygon(i)))
		}
		return out, nil
	case *geom.GeometryCollection:
		out := make(orb.Collection, 0, t.NumGeoms())
		for _, child := range t.Geoms() {
			og, err := ToOrb(child)
			if err != nil {
				return nil, err
			}
			out = append(out, og)
		}
		return out, nil
	default:
		return nil, eris.Errorf("geometry: unsupported type %T", g)
	}
}

// FromOrb converts an orb geometry into go-geom with the XY layout.
func FromOrb(g orb.Geometry) (geom.T, error) {
	switch t := g.(type) {
	case orb.Point:
		return geom.NewPointFlat(geom.XY, []float64{t[0], t[1]}), nil
	case orb.LineString:
		return geom.NewLineStringFlat(geom.XY, pointsToFlat(t)), nil
	case orb.Ring:
		return geom.NewPolygonFlat(geom.XY, pointsToFlat(t), []int{2 * len(t)}), nil
	case orb.Polygon:
		flat, ends := ringsToFlat(t, 0)
		return geom.NewPolygonFlat(geom.XY, flat, ends), nil
	case orb.MultiPoint:
		return geom.NewMultiPointFlat(geom.XY, pointsToFlat(t)), nil
	case orb.MultiLineString:
		var flat []float64
		ends := make([]int, 0, len(t))
		for _, ls := range t {
			flat = append(flat, pointsToFlat(ls)...)
			ends = append(ends, len(flat))
		}
		return geom.NewMultiLineStringFlat(geom.XY, flat, ends), nil
	case orb.MultiPolygon:
		var flat []float64
		endss := make([][]int, 0, len(t))
		for _, p := range t {
			pf, ends := ringsToFlat(p, len(flat))
			flat = append(flat, pf...)
			endss = append(endss, ends)
		}
		return geom.NewMultiPolygonFlat(geom.XY, flat, endss), nil
	case orb.Collection:
		out := geom.NewGeometryCollection()
		for _, child := range t {
			gg, err := FromOrb(child)
			if err != nil {
				return nil, err
			}
			if err := out.Push(gg); err != nil {
				return nil, eris.Wrap(err, "geometry: build collection")
			}
		}
		return out, nil
	default:
		return nil, eris.Errorf("geometry: unsupported orb type %T", g)
	}
}

func polygonToOrb(p *geom.Polygon) orb.Polygon {
	out := make(orb.Polygon, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		lr := p.LinearRing(i)
		out = append(out, orb.Ring(flatToPoints(lr.FlatCoords(), lr.Stride())))
	}
	return out
}

func flatToPoints(flat []float64, stride int) []orb.Point {
	if stride < 2 {
		return nil
	}
	pts := make([]orb.Point, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		pts = append(pts, orb.Point{flat[i], flat[i+1]})
	}
	return pts
}

func pointsToFlat(pts []orb.Point) []float64 {
	flat := make([]float64, 0, 2*len(pts))
	for _, p := range pts {
		flat = append(flat, p[0], p[1])
	}
	return flat
}

// ringsToFlat flattens rings; ends are offset by base so they can index a shared buffer.
func ringsToFlat(p orb.Polygon, base int) ([]float64, []int) {
	var flat []float64
	ends := make([]int, 0, len(p))
	for _, r := range p {
		flat = append(flat, pointsToFlat(r)...)
		ends = append(ends, base+len(flat))
	}
	return flat, ends
}
