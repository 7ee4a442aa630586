package grid

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gridconv/internal/archive"
	"github.com/sells-group/gridconv/internal/geometry"
	"github.com/sells-group/gridconv/internal/griddata"
	"github.com/sells-group/gridconv/internal/shapefile"
	"github.com/sells-group/gridconv/internal/srs"
	"github.com/sells-group/gridconv/internal/tileid"
)

// Options configures a Loader.
type Options struct {
	Layout griddata.Layout
	Cache  *archive.Cache
	Engine geometry.Engine // defaults to geometry.New()
	Logger *zap.Logger
}

// Loader opens the reference layers and decodes them into typed features.
type Loader struct {
	layout griddata.Layout
	cache  *archive.Cache
	engine geometry.Engine
	log    *zap.Logger
}

// NewLoader returns a Loader. Cache is required for per-zone square layers.
func NewLoader(opts Options) *Loader {
	if opts.Engine == nil {
		opts.Engine = geometry.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	return &Loader{
		layout: opts.Layout,
		cache:  opts.Cache,
		engine: opts.Engine,
		log:    opts.Logger.With(zap.String("component", "grid.loader")),
	}
}

// Engine returns the geometry engine the loader transforms with.
func (l *Loader) Engine() geometry.Engine {
	return l.engine
}

// WRSMaster loads the WRS-2 master layer.
func (l *Loader) WRSMaster(ctx context.Context) (*Layer[WrsFeature], error) {
	layer, tr, err := l.open(ctx, l.layout.WRSMasterPath(), srs.WGS84, griddata.FieldPR)
	if err != nil {
		return nil, err
	}

	feats := make([]WrsFeature, 0, len(layer.Records))
	for _, rec := range layer.Records {
		pr := tileid.NormalizePathRow(rec.Attr(griddata.FieldPR))
		if pr == "" {
			continue
		}
		g, err := l.engine.Transform(rec.Geometry, tr)
		if err != nil {
			return nil, eris.Wrapf(err, "grid: transform WRS tile %s", pr)
		}
		feats = append(feats, WrsFeature{PR: pr, Geometry: g})
	}
	return loaded(l.log, griddata.WRSDirName, layer, feats), nil
}

// ZoneMaster loads the MGRS grid-zone master layer.
func (l *Loader) ZoneMaster(ctx context.Context) (*Layer[ZoneFeature], error) {
	layer, tr, err := l.open(ctx, l.layout.ZoneMasterPath(), srs.WGS84, griddata.FieldGZD)
	if err != nil {
		return nil, err
	}

	feats := make([]ZoneFeature, 0, len(layer.Records))
	for _, rec := range layer.Records {
		gzd := normalizeZone(rec.Attr(griddata.FieldGZD))
		if gzd == "" {
			continue
		}
		g, err := l.engine.Transform(rec.Geometry, tr)
		if err != nil {
			return nil, eris.Wrapf(err, "grid: transform zone %s", gzd)
		}
		feats = append(feats, ZoneFeature{GZD: gzd, Geometry: g})
	}
	return loaded(l.log, griddata.ZoneMasterName, layer, feats), nil
}

// WithZoneSquares acquires the zone's archive, decodes its 100 km squares into WGS84,
// runs fn, and releases the archive before returning. The layer must not be used after
// fn returns.
func (l *Loader) WithZoneSquares(ctx context.Context, zone string, fn func(*Layer[SquareFeature]) error) error {
	if l.cache == nil {
		return eris.New("grid: loader has no archive cache")
	}
	return l.cache.With(ctx, zone, func(e *archive.Entry) error {
		fallback, err := srs.FromZoneCode(zone)
		if err != nil {
			return err
		}
		layer, tr, err := l.open(ctx, e.ShapefilePath(), fallback, griddata.FieldSquareID)
		if err != nil {
			return err
		}

		feats := make([]SquareFeature, 0, len(layer.Records))
		for _, rec := range layer.Records {
			sq := strings.ToUpper(rec.Attr(griddata.FieldSquareID))
			if sq == "" {
				continue
			}
			id := strings.ToUpper(rec.Attr(griddata.FieldMGRS))
			if id == "" {
				id = zone + sq
			}
			g, err := l.engine.Transform(rec.Geometry, tr)
			if err != nil {
				return eris.Wrapf(err, "grid: transform square %s", id)
			}
			feats = append(feats, SquareFeature{Zone: zone, HundredKmID: sq, MGRS: id, Geometry: g})
		}
		return fn(loaded(l.log, griddata.ZoneArchivePrefix+zone, layer, feats))
	})
}

// open reads a reference shapefile and builds its transform into WGS84. fallback is
// used when the layer has no .prj. A missing file or attribute is ErrReferenceDataMissing.
func (l *Loader) open(ctx context.Context, path string, fallback srs.SpatialRef, field string) (*shapefile.Layer, srs.Transformer, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "grid: open layer")
	}
	if err := griddata.RequireShapefile(path); err != nil {
		return nil, nil, err
	}
	layer, err := shapefile.Read(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "grid: read layer")
	}
	if !layer.HasField(field) {
		return nil, nil, eris.Wrapf(griddata.ErrReferenceDataMissing, "%s has no %s field", path, field)
	}

	src := fallback
	if layer.HasSRS {
		src = layer.SRS
	}
	tr, err := srs.NewTransform(src, srs.WGS84)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "grid: transform for %s", path)
	}
	return layer, tr, nil
}

// loaded indexes decoded features and logs the load.
func loaded[F Feature](log *zap.Logger, name string, src *shapefile.Layer, feats []F) *Layer[F] {
	log.Info("layer loaded",
		zap.String("layer", name),
		zap.Int("features", len(feats)),
		zap.Int("skipped", src.Skipped+len(src.Records)-len(feats)),
	)
	return NewLayer(name, feats)
}

func normalizeZone(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	if len(v) == 2 {
		v = "0" + v
	}
	if !tileid.IsZone(v) {
		return ""
	}
	return v
}
