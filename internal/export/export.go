// Package export writes tile footprints to vector files: an ESRI shapefile with one
// polygon per tile, or a GeoJSON FeatureCollection.
package export

import (
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
	"github.com/sells-group/gridconv/internal/tileid"
)

// DefaultName is the coverage file written when no destination is given.
const DefaultName = "tile_coverage.shp"

// Attribute names of a coverage layer.
const (
	FieldID       = "id"
	FieldTileID   = "tile_id"
	FieldTileType = "tile_type"
)

// Tile is one resolved (or unresolved) tile of a coverage export.
type Tile struct {
	ID       string
	Kind     tileid.Kind
	Geometry geom.T // WGS84; nil when the footprint could not be resolved
}

// Report describes a written coverage file.
type Report struct {
	Path    string   `json:"path" yaml:"path"`
	Written int      `json:"written" yaml:"written"`
	Skipped []string `json:"skipped" yaml:"skipped"`
}

type format int

const (
	formatShapefile format = iota
	formatGeoJSON
)

// resolve picks the output format from dest's extension. A destination without an
// extension gets ".shp".
func resolve(dest string) (string, format, error) {
	if dest == "" {
		dest = DefaultName
	}
	switch strings.ToLower(filepath.Ext(dest)) {
	case "":
		return dest + ".shp", formatShapefile, nil
	case ".shp":
		return dest, formatShapefile, nil
	case ".geojson", ".json":
		return dest, formatGeoJSON, nil
	default:
		return "", 0, eris.Errorf("export: unsupported output format %q", filepath.Ext(dest))
	}
}

// TileCoverage writes one polygon feature per resolved tile with the attributes id
// (1-based over written features), tile_id, and tile_type. Tiles without a polygonal
// footprint are skipped and logged.
func TileCoverage(dest string, tiles []Tile) (*Report, error) {
	path, f, err := resolve(dest)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("component", "export.coverage"), zap.String("path", path))

	report := &Report{Path: path, Skipped: []string{}}
	kept := make([]Tile, 0, len(tiles))
	for _, t := range tiles {
		if t.Kind == tileid.KindUnknown || !geometry.IsPolygonal(t.Geometry) {
			log.Warn("tile footprint not resolved, skipping",
				zap.String("tile_id", t.ID),
				zap.String("tile_type", t.Kind.String()),
			)
			report.Skipped = append(report.Skipped, t.ID)
			continue
		}
		kept = append(kept, t)
	}

	switch f {
	case formatGeoJSON:
		err = writeGeoJSON(path, kept)
	default:
		err = writeShapefile(path, kept)
	}
	if err != nil {
		return nil, err
	}

	report.Written = len(kept)
	log.Info("tile coverage written",
		zap.Int("written", report.Written),
		zap.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}

func writeShapefile(path string, tiles []Tile) error {
	fields := []shapefile.Field{
		{Name: FieldID, Kind: shapefile.FieldInteger, Size: 9},
		{Name: FieldTileID, Kind: shapefile.FieldString, Size: 16},
		{Name: FieldTileType, Kind: shapefile.FieldString, Size: 8},
	}
	feats := make([]shapefile.Feature, 0, len(tiles))
	for i, t := range tiles {
		feats = append(feats, shapefile.Feature{
			Geometry: t.Geometry,
			Values:   []any{i + 1, t.ID, t.Kind.String()},
		})
	}
	if err := shapefile.WritePolygons(path, srs.WGS84, fields, feats); err != nil {
		return eris.Wrap(err, "export: write shapefile")
	}
	return nil
}

func writeGeoJSON(path string, tiles []Tile) error {
	fc := geojson.NewFeatureCollection()
	for i, t := range tiles {
		og, err := geometry.ToOrb(t.Geometry)
		if err != nil {
			return eris.Wrapf(err, "export: tile %s", t.ID)
		}
		feat := geojson.NewFeature(og)
		feat.Properties[FieldID] = i + 1
		feat.Properties[FieldTileID] = t.ID
		feat.Properties[FieldTileType] = t.Kind.String()
		fc.Append(feat)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return eris.Wrap(err, "export: encode GeoJSON")
	}
	return writeFile(path, data)
}

// FootprintGeoJSON writes a single footprint, given as WKT, as a GeoJSON Feature.
func FootprintGeoJSON(dest, footprintWKT string) error {
	g, err := geometry.New().ParseWKT(footprintWKT)
	if err != nil {
		return err
	}
	og, err := geometry.ToOrb(g)
	if err != nil {
		return eris.Wrap(err, "export: footprint")
	}
	data, err := geojson.NewFeature(og).MarshalJSON()
	if err != nil {
		return eris.Wrap(err, "export: encode GeoJSON")
	}
	return writeFile(dest, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "export: create output dir")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}
