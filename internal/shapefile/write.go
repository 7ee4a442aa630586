package shapefile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/gridconv/internal/srs"
)

// FieldKind is the dBASE type of an attribute column.
type FieldKind int

// Supported attribute types.
const (
	FieldString FieldKind = iota
	FieldInteger
)

// Field describes one attribute column. Names longer than 10 characters are truncated
// by the dBASE format.
type Field struct {
	Name string
	Kind FieldKind
	Size uint8
}

// Feature is a polygonal geometry and one value per declared field.
type Feature struct {
	Geometry geom.T
	Values   []any
}

// sidecars are the dataset members removed before a dataset is rewritten.
// The bare "dbf" entry is the attribute table left by an interrupted write.
var sidecars = []string{".shp", ".shx", ".dbf", ".prj", ".cpg", ".qix", ".sbn", ".sbx", "dbf"}

// Remove deletes the shapefile at shpPath and its sidecars. Missing members are ignored.
func Remove(shpPath string) error {
	stem := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	for _, ext := range sidecars {
		if err := os.Remove(stem + ext); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(err, "shapefile: remove %s", stem+ext)
		}
	}
	return nil
}

// WritePolygons creates (or replaces) a polygon shapefile at shpPath with a .prj for
// ref. Each feature's geometry must be a Polygon or MultiPolygon.
func WritePolygons(shpPath string, ref srs.SpatialRef, fields []Field, features []Feature) error {
	if err := os.MkdirAll(filepath.Dir(shpPath), 0o755); err != nil {
		return eris.Wrap(err, "shapefile: create output dir")
	}
	if err := Remove(shpPath); err != nil {
		return err
	}

	w, err := shp.Create(shpPath, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "shapefile: create %s", shpPath)
	}
	if err := writeFeatures(w, fields, features); err != nil {
		w.Close()
		_ = Remove(shpPath)
		return err
	}
	// Close writes the headers. go-shp names the attribute table <stem>dbf.
	w.Close()
	stem := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	if err := os.Rename(stem+"dbf", stem+".dbf"); err != nil {
		return eris.Wrapf(err, "shapefile: finalize %s.dbf", stem)
	}

	if err := os.WriteFile(srs.PRJPath(shpPath), []byte(ref.PRJ()), 0o644); err != nil {
		return eris.Wrap(err, "shapefile: write prj")
	}
	return nil
}

func writeFeatures(w *shp.Writer, fields []Field, features []Feature) error {

	shpFields := make([]shp.Field, len(fields))
	for i, f := range fields {
		switch f.Kind {
		case FieldInteger:
			shpFields[i] = shp.NumberField(f.Name, f.Size)
		default:
			shpFields[i] = shp.StringField(f.Name, f.Size)
		}
	}
	if err := w.SetFields(shpFields); err != nil {
		return eris.Wrap(err, "shapefile: set fields")
	}

	for i, feat := range features {
		poly, err := GeomToShape(feat.Geometry)
		if err != nil {
			return eris.Wrapf(err, "shapefile: feature %d", i)
		}
		row := int(w.Write(poly))
		for col, v := range feat.Values {
			if col >= len(fields) {
				break
			}
			if err := w.WriteAttribute(row, col, v); err != nil {
				return eris.Wrapf(err, "shapefile: write attribute %s of feature %d", fields[col].Name, i)
			}
		}
	}
	return nil
}

// GeomToShape converts a Polygon or MultiPolygon into a shapefile polygon with
// clockwise exteriors and counter-clockwise holes.
func GeomToShape(g geom.T) (*shp.Polygon, error) {
	var polys []*geom.Polygon
	switch t := g.(type) {
	case *geom.Polygon:
		polys = append(polys, t)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			polys = append(polys, t.Polygon(i))
		}
	default:
		return nil, eris.Errorf("shapefile: %T is not polygonal", g)
	}

	var parts [][]shp.Point
	for _, p := range polys {
		for i := 0; i < p.NumLinearRings(); i++ {
			lr := p.LinearRing(i)
			flat := ensureClosed(lr.FlatCoords(), lr.Stride())
			if len(flat) < 8 {
				continue
			}
			ccw := signedArea(flat) > 0
			// Exterior rings are clockwise, holes counter-clockwise.
			if (i == 0) == ccw {
				flat = reverseRing(flat)
			}
			pts := make([]shp.Point, 0, len(flat)/2)
			for j := 0; j+1 < len(flat); j += 2 {
				pts = append(pts, shp.Point{X: flat[j], Y: flat[j+1]})
			}
			parts = append(parts, pts)
		}
	}
	if len(parts) == 0 {
		return nil, eris.New("shapefile: empty polygon")
	}

	poly := shp.Polygon(*shp.NewPolyLine(parts))
	return &poly, nil
}

// ensureClosed returns 2D coordinates with the first point repeated at the end.
func ensureClosed(src []float64, stride int) []float64 {
	flat := make([]float64, 0, 2*len(src)/max(stride, 1)+2)
	for i := 0; i+1 < len(src); i += stride {
		flat = append(flat, src[i], src[i+1])
	}
	if n := len(flat); n >= 2 && (flat[0] != flat[n-2] || flat[1] != flat[n-1]) {
		flat = append(flat, flat[0], flat[1])
	}
	return flat
}

func reverseRing(flat []float64) []float64 {
	out := make([]float64, len(flat))
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		out[2*i], out[2*i+1] = flat[2*(n-1-i)], flat[2*(n-1-i)+1]
	}
	return out
}
