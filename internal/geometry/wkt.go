package geometry

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// MarshalWKT writes 2D WKT the way OGR exports it: a space after the type keyword,
// ", " between coordinates, 15 significant digits and a ".0" suffix on integral values,
// e.g. "POLYGON ((-116.0 52.0, -115.5 52.0, ...))". Z and M ordinates are dropped.
func MarshalWKT(g geom.T) (string, error) {
	var b strings.Builder
	if err := writeGeom(&b, g); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeGeom(b *strings.Builder, g geom.T) error {
	switch t := g.(type) {
	case nil:
		return eris.New("geometry: nil geometry")
	case *geom.Point:
		b.WriteString("POINT")
		if t.Empty() {
			b.WriteString(" EMPTY")
			return nil
		}
		b.WriteString(" (")
		writeCoord(b, t.FlatCoords())
		b.WriteByte(')')
	case *geom.LineString:
		b.WriteString("LINESTRING")
		writeSeq(b, t.FlatCoords(), t.Stride())
	case *geom.LinearRing:
		b.WriteString("LINEARRING")
		writeSeq(b, t.FlatCoords(), t.Stride())
	case *geom.Polygon:
		b.WriteString("POLYGON")
		writePolygonBody(b, t)
	case *geom.MultiPoint:
		b.WriteString("MULTIPOINT")
		if t.NumPoints() == 0 {
			b.WriteString(" EMPTY")
			return nil
		}
		b.WriteString(" (")
		for i := 0; i < t.NumPoints(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			writeCoord(b, t.Point(i).FlatCoords())
		}
		b.WriteByte(')')
	case *geom.MultiLineString:
		b.WriteString("MULTILINESTRING")
		if t.NumLineStrings() == 0 {
			b.WriteString(" EMPTY")
			return nil
		}
		b.WriteString(" (")
		for i := 0; i < t.NumLineStrings(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			ls := t.LineString(i)
			writeRing(b, ls.FlatCoords(), ls.Stride())
		}
		b.WriteByte(')')
	case *geom.MultiPolygon:
		b.WriteString("MULTIPOLYGON")
		if t.NumPolygons() == 0 {
			b.WriteString(" EMPTY")
			return nil
		}
		b.WriteString(" (")
		for i := 0; i < t.NumPolygons(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			writeRings(b, t.Polygon(i))
		}
		b.WriteByte(')')
	case *geom.GeometryCollection:
		b.WriteString("GEOMETRYCOLLECTION")
		if t.NumGeoms() == 0 {
			b.WriteString(" EMPTY")
			return nil
		}
		b.WriteString(" (")
		for i, child := range t.Geoms() {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := writeGeom(b, child); err != nil {
				return err
			}
		}
		b.WriteByte(')')
	default:
		return eris.Errorf("geometry: unsupported type %T", g)
	}
	return nil
}

func writePolygonBody(b *strings.Builder, p *geom.Polygon) {
	if p.NumLinearRings() == 0 {
		b.WriteString(" EMPTY")
		return
	}
	b.WriteByte(' ')
	writeRings(b, p)
}

// writeRings writes "((x y, ...), (x y, ...))".
func writeRings(b *strings.Builder, p *geom.Polygon) {
	b.WriteByte('(')
	for i := 0; i < p.NumLinearRings(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		lr := p.LinearRing(i)
		writeRing(b, lr.FlatCoords(), lr.Stride())
	}
	b.WriteByte(')')
}

func writeSeq(b *strings.Builder, flat []float64, stride int) {
	if len(flat) == 0 {
		b.WriteString(" EMPTY")
		return
	}
	b.WriteByte(' ')
	writeRing(b, flat, stride)
}

// writeRing writes "(x y, x y, ...)".
func writeRing(b *strings.Builder, flat []float64, stride int) {
	b.WriteByte('(')
	for i := 0; i+1 < len(flat); i += stride {
		if i > 0 {
			b.WriteString(", ")
		}
		writeCoord(b, flat[i:i+2])
	}
	b.WriteByte(')')
}

func writeCoord(b *strings.Builder, c []float64) {
	b.WriteString(formatOrdinate(c[0]))
	b.WriteByte(' ')
	b.WriteString(formatOrdinate(c[1]))
}

func formatOrdinate(v float64) string {
	s := strconv.FormatFloat(v, 'g', 15, 64)
	if strings.ContainsAny(s, ".eEnN") {
		return s
	}
	return s + ".0"
}
