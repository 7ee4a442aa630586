// Package shapefile reads and writes ESRI shapefiles as go-geom geometries.
package shapefile

import (
	"errors"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/gridconv/internal/srs"
)

// Record is one feature: its geometry in the layer's native SRS and its attributes
// keyed by lowercase field name.
type Record struct {
	Geometry geom.T
	Attrs    map[string]string
}

// Attr returns the trimmed attribute value for a field name (case-insensitive).
func (r Record) Attr(name string) string {
	return r.Attrs[strings.ToLower(name)]
}

// Layer is a fully decoded shapefile.
type Layer struct {
	Path    string
	Fields  []string
	SRS     srs.SpatialRef
	HasSRS  bool
	Records []Record
	Skipped int
}

// HasField reports whether the layer declares the field (case-insensitive).
func (l *Layer) HasField(name string) bool {
	name = strings.ToLower(name)
	for _, f := range l.Fields {
		if strings.ToLower(f) == name {
			return true
		}
	}
	return false
}

// Read decodes every record of the shapefile at shpPath. The .prj sidecar is optional;
// when it is absent HasSRS is false. Records with null or unsupported shapes are
// skipped and counted.
func Read(shpPath string) (*Layer, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	layer := &Layer{Path: shpPath}

	ref, err := srs.ReadPRJ(shpPath)
	switch {
	case err == nil:
		layer.SRS, layer.HasSRS = ref, true
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, eris.Wrapf(err, "shapefile: projection of %s", shpPath)
	}

	// Build field name → index map.
	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}
	layer.Fields = names

	for reader.Next() {
		_, shape := reader.Shape()
		g := ShapeToGeom(shape)
		if g == nil {
			layer.Skipped++
			continue
		}

		attrs := make(map[string]string, len(names))
		for i, name := range names {
			val := strings.TrimRight(reader.Attribute(i), "\x00")
			attrs[strings.ToLower(name)] = strings.TrimSpace(val)
		}
		layer.Records = append(layer.Records, Record{Geometry: g, Attrs: attrs})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "shapefile: read %s", shpPath)
	}

	if layer.Skipped > 0 {
		zap.L().Debug("shapefile: skipped records",
			zap.String("path", shpPath),
			zap.Int("skipped", layer.Skipped),
		)
	}

	return layer, nil
}

// ShapeToGeom converts a go-shp shape. Polygons become a Polygon or MultiPolygon with
// holes grouped under their exterior ring; nil is returned for null or unsupported
// shapes.
func ShapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PolyLine:
		return partsToMultiLineString(s.Parts, s.Points)
	case *shp.Polygon:
		return partsToPolygon(s.Parts, s.Points)
	case *shp.PolygonZ:
		return partsToPolygon(s.Parts, s.Points)
	case *shp.PolygonM:
		return partsToPolygon(s.Parts, s.Points)
	default:
		return nil
	}
}

func splitParts(parts []int32, points []shp.Point) [][]float64 {
	out := make([][]float64, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start >= end || end > int32(len(points)) {
			continue
		}
		flat := make([]float64, 0, 2*(end-start))
		for _, p := range points[start:end] {
			flat = append(flat, p.X, p.Y)
		}
		out = append(out, flat)
	}
	return out
}

func partsToMultiLineString(parts []int32, points []shp.Point) geom.T {
	rings := splitParts(parts, points)
	if len(rings) == 0 {
		return nil
	}
	var flat []float64
	ends := make([]int, 0, len(rings))
	for _, r := range rings {
		flat = append(flat, r...)
		ends = append(ends, len(flat))
	}
	return geom.NewMultiLineStringFlat(geom.XY, flat, ends)
}

// partsToPolygon groups shapefile rings: clockwise rings are exteriors, counter-clockwise
// rings are holes of the exterior that contains their first vertex.
func partsToPolygon(parts []int32, points []shp.Point) geom.T {
	var polys [][][]float64
	for _, ring := range splitParts(parts, points) {
		if len(ring) < 8 {
			continue
		}
		if signedArea(ring) <= 0 || len(polys) == 0 {
			polys = append(polys, [][]float64{ring})
			continue
		}
		owner := -1
		for i := len(polys) - 1; i >= 0; i-- {
			if ringContains(polys[i][0], ring[0], ring[1]) {
				owner = i
				break
			}
		}
		if owner < 0 {
			// Counter-clockwise ring outside every exterior; treat it as an exterior.
			polys = append(polys, [][]float64{ring})
			continue
		}
		polys[owner] = append(polys[owner], ring)
	}

	switch len(polys) {
	case 0:
		return nil
	case 1:
		flat, ends := flattenRings(polys[0], 0)
		return geom.NewPolygonFlat(geom.XY, flat, ends)
	default:
		var flat []float64
		endss := make([][]int, 0, len(polys))
		for _, p := range polys {
			pf, ends := flattenRings(p, len(flat))
			flat = append(flat, pf...)
			endss = append(endss, ends)
		}
		return geom.NewMultiPolygonFlat(geom.XY, flat, endss)
	}
}

func flattenRings(rings [][]float64, base int) ([]float64, []int) {
	var flat []float64
	ends := make([]int, 0, len(rings))
	for _, r := range rings {
		flat = append(flat, r...)
		ends = append(ends, base+len(flat))
	}
	return flat, ends
}

// signedArea is positive for counter-clockwise rings.
func signedArea(flat []float64) float64 {
	var sum float64
	for i := 0; i+3 < len(flat); i += 2 {
		sum += flat[i]*flat[i+3] - flat[i+2]*flat[i+1]
	}
	return sum / 2
}

func ringContains(flat []float64, x, y float64) bool {
	ring := make(orb.Ring, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		ring = append(ring, orb.Point{flat[i], flat[i+1]})
	}
	return planar.RingContains(ring, orb.Point{x, y})
}
