// Package footprint turns a vector file (ESRI shapefile or GeoJSON) into one simplified
// WGS84 footprint suitable as a conversion query.
package footprint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/gridconv/internal/geometry"
	"github.com/sells-group/gridconv/internal/shapefile"
	"github.com/sells-group/gridconv/internal/srs"
)

// DefaultTolerance is the simplification tolerance in degrees.
const DefaultTolerance = 0.005

// ErrAmbiguousSource is returned when a file yields no usable polygon.
var ErrAmbiguousSource = eris.New("footprint: ambiguous source")

// Options configures FromFile.
type Options struct {
	Tolerance float64         // default DefaultTolerance
	Engine    geometry.Engine // default geometry.New()
	Logger    *zap.Logger
}

// Result is the footprint of a file.
type Result struct {
	WKT     string `json:"wkt" yaml:"wkt"`
	Parts   int    `json:"parts" yaml:"parts"`
	Dropped int    `json:"dropped" yaml:"dropped"`
}

// FromFile reads every feature of path, simplifies each polygon part, and unions the
// parts. Parts that are not polygons, or stop being polygons once simplified, are
// dropped: each drop is logged and counted in Result.Dropped.
func FromFile(ctx context.Context, path string, opts Options) (*Result, error) {
	if opts.Tolerance < 0 {
		return nil, eris.Errorf("footprint: negative tolerance %v", opts.Tolerance)
	}
	if opts.Tolerance == 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.Engine == nil {
		opts.Engine = geometry.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	log := opts.Logger.With(zap.String("component", "footprint"), zap.String("path", path))

	geoms, err := read(path, opts.Engine)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	var kept []geom.T
	for i, g := range geoms {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "footprint: from file")
		}
		for j, part := range polygonParts(g) {
			if part == nil {
				log.Warn("dropping non-polygon part",
					zap.Int("feature", i),
					zap.String("type", fmt.Sprintf("%T", g)),
				)
				res.Dropped++
				continue
			}
			s, err := opts.Engine.Simplify(part, opts.Tolerance)
			if err != nil {
				return nil, eris.Wrapf(err, "footprint: simplify feature %d", i)
			}
			if !geometry.IsPolygonal(s) {
				log.Warn("dropping part that collapsed during simplification",
					zap.Int("feature", i),
					zap.Int("part", j),
					zap.Float64("tolerance", opts.Tolerance),
				)
				res.Dropped++
				continue
			}
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return nil, eris.Wrapf(ErrAmbiguousSource, "%s has no usable polygon", path)
	}

	u, err := opts.Engine.Union(kept)
	if err != nil {
		return nil, eris.Wrap(err, "footprint: union")
	}
	if res.WKT, err = opts.Engine.WKT(u); err != nil {
		return nil, eris.Wrap(err, "footprint: encode")
	}
	res.Parts = len(kept)

	log.Info("footprint built",
		zap.Int("features", len(geoms)),
		zap.Int("parts", res.Parts),
		zap.Int("dropped", res.Dropped),
	)
	return res, nil
}

// polygonParts splits g into polygons. A non-polygonal geometry yields a single nil.
func polygonParts(g geom.T) []*geom.Polygon {
	switch t := g.(type) {
	case *geom.Polygon:
		return []*geom.Polygon{t}
	case *geom.MultiPolygon:
		out := make([]*geom.Polygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			out = append(out, t.Polygon(i))
		}
		return out
	case *geom.GeometryCollection:
		var out []*geom.Polygon
		for _, child := range t.Geoms() {
			out = append(out, polygonParts(child)...)
		}
		return out
	default:
		return []*geom.Polygon{nil}
	}
}

// read returns the WGS84 geometries of a shapefile or GeoJSON file.
func read(path string, eng geometry.Engine) ([]geom.T, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return readShapefile(path, eng)
	case ".geojson", ".json":
		return readGeoJSON(path)
	default:
		return nil, eris.Errorf("footprint: unsupported input %q", filepath.Ext(path))
	}
}

func readShapefile(path string, eng geometry.Engine) ([]geom.T, error) {
	layer, err := shapefile.Read(path)
	if err != nil {
		return nil, err
	}
	src := srs.WGS84
	if layer.HasSRS {
		src = layer.SRS
	}
	tr, err := srs.NewTransform(src, srs.WGS84)
	if err != nil {
		return nil, eris.Wrapf(err, "footprint: transform for %s", path)
	}

	out := make([]geom.T, 0, len(layer.Records))
	for _, rec := range layer.Records {
		g, err := eng.Transform(rec.Geometry, tr)
		if err != nil {
			return nil, eris.Wrap(err, "footprint: transform")
		}
		out = append(out, g)
	}
	return out, nil
}

// readGeoJSON accepts a FeatureCollection or a single Feature.
func readGeoJSON(path string) ([]geom.T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "footprint: read %s", path)
	}

	var feats []*geojson.Feature
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil && fc.Type == "FeatureCollection" {
		feats = fc.Features
	} else {
		f, ferr := geojson.UnmarshalFeature(data)
		if ferr != nil {
			return nil, eris.Wrapf(ferr, "footprint: decode GeoJSON %s", path)
		}
		feats = []*geojson.Feature{f}
	}

	out := make([]geom.T, 0, len(feats))
	for i, f := range feats {
		if f.Geometry == nil {
			continue
		}
		g, err := geometry.FromOrb(f.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "footprint: feature %d", i)
		}
		out = append(out, g)
	}
	return out, nil
}
