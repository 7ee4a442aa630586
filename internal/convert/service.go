// Package convert translates tiles and footprints between the WRS-2 path/row grid and
// the MGRS 100 km grid.
package convert

import (
	"context"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/gridconv/internal/export"
	"github.com/sells-group/gridconv/internal/geometry"
	"github.com/sells-group/gridconv/internal/grid"
	"github.com/sells-group/gridconv/internal/tileid"
)

// Footprint is a tile outline in WGS84. WKB is hex-encoded EWKB with SRID 4326, the form
// PostGIS accepts as a geometry literal.
type Footprint struct {
	TileID   string `json:"tile_id" yaml:"tile_id"`
	Kind     string `json:"tile_type" yaml:"tile_type"`
	WKT      string `json:"wkt" yaml:"wkt"`
	WKB      string `json:"wkb" yaml:"wkb"`
	Geometry geom.T `json:"-" yaml:"-"`
}

// Options configures a Service.
type Options struct {
	Loader *grid.Loader
	// Concurrency bounds the per-element conversions of list operations (default 4).
	Concurrency int
	// ExportName is the destination of TileListToVectorFile when none is given.
	ExportName string
	// KeepMasters loads the two master layers once for the life of the Service instead
	// of once per call. Long-running servers set it.
	KeepMasters bool
	Logger      *zap.Logger
}

// Service implements the conversions. It is safe for concurrent use.
type Service struct {
	loader      *grid.Loader
	engine      geometry.Engine
	concurrency int
	exportName  string
	shared      *grid.Session
	log         *zap.Logger
}

// New returns a Service.
func New(opts Options) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.ExportName == "" {
		opts.ExportName = export.DefaultName
	}
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	s := &Service{
		loader:      opts.Loader,
		engine:      opts.Loader.Engine(),
		concurrency: opts.Concurrency,
		exportName:  opts.ExportName,
		log:         opts.Logger.With(zap.String("component", "convert.service")),
	}
	if opts.KeepMasters {
		s.shared = opts.Loader.NewSession()
	}
	return s
}

// session returns the master-layer scope of one call.
func (s *Service) session() *grid.Session {
	if s.shared != nil {
		return s.shared
	}
	return s.loader.NewSession()
}

// FootprintForWrsTile returns the footprint of a path/row, or nil when the id is not a
// path/row or the master layer has no such tile.
func (s *Service) FootprintForWrsTile(ctx context.Context, pathrow string) (*Footprint, error) {
	return s.wrsFootprint(ctx, s.session(), pathrow)
}

func (s *Service) wrsFootprint(ctx context.Context, sess *grid.Session, pathrow string) (*Footprint, error) {
	t, err := tileid.ParseWRS(pathrow)
	if err != nil {
		s.log.Debug("not a WRS path/row", zap.String("tile_id", pathrow))
		return nil, nil
	}
	layer, err := sess.WRSMaster(ctx)
	if err != nil {
		return nil, err
	}
	pr := t.String()
	f, ok := layer.Last(func(f grid.WrsFeature) bool { return f.PR == pr })
	if !ok {
		return nil, nil
	}
	return s.footprint(pr, tileid.KindWRS, f.Geometry)
}

// FootprintForMgrsTile returns the footprint of an MGRS 100 km square, or nil when the
// id is malformed (no reference data is read) or the zone has no such square.
func (s *Service) FootprintForMgrsTile(ctx context.Context, id string) (*Footprint, error) {
	t, err := tileid.ParseMGRS(id)
	if err != nil {
		s.log.Debug("not an MGRS 100km id", zap.String("tile_id", id))
		return nil, nil
	}

	var fp *Footprint
	err = s.loader.WithZoneSquares(ctx, t.Zone(), func(layer *grid.Layer[grid.SquareFeature]) error {
		want := t.String()
		f, ok := layer.Last(func(f grid.SquareFeature) bool { return f.MGRS == want })
		if !ok {
			return nil
		}
		var err error
		fp, err = s.footprint(want, tileid.KindMGRS, f.Geometry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fp, nil
}

func (s *Service) footprint(id string, kind tileid.Kind, g geom.T) (*Footprint, error) {
	text, err := s.engine.WKT(g)
	if err != nil {
		return nil, eris.Wrapf(err, "convert: encode footprint of %s", id)
	}
	bin, err := s.engine.WKB(g)
	if err != nil {
		return nil, eris.Wrapf(err, "convert: encode footprint of %s", id)
	}
	return &Footprint{TileID: id, Kind: kind.String(), WKT: text, WKB: hex.EncodeToString(bin), Geometry: g}, nil
}

// GzdIntersections lists the grid zones intersecting the WKT footprint, in layer order.
func (s *Service) GzdIntersections(ctx context.Context, footprintWKT string) ([]string, error) {
	query, err := s.engine.ParseWKT(footprintWKT)
	if err != nil {
		return nil, err
	}
	return s.zones(ctx, s.session(), query)
}

func (s *Service) zones(ctx context.Context, sess *grid.Session, query geom.T) ([]string, error) {
	layer, err := sess.ZoneMaster(ctx)
	if err != nil {
		return nil, err
	}
	matches, err := grid.FindIntersecting(ctx, s.engine, layer, query)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.GZD)
	}
	return out, nil
}

// Mgrs100kmIntersections lists the 100 km squares of one zone intersecting the WKT
// footprint, in layer order.
func (s *Service) Mgrs100kmIntersections(ctx context.Context, footprintWKT, zone string) ([]string, error) {
	query, err := s.engine.ParseWKT(footprintWKT)
	if err != nil {
		return nil, err
	}
	return s.squares(ctx, zone, query)
}

func (s *Service) squares(ctx context.Context, zone string, query geom.T) ([]string, error) {
	out := []string{}
	err := s.loader.WithZoneSquares(ctx, zone, func(layer *grid.Layer[grid.SquareFeature]) error {
		matches, err := grid.FindIntersecting(ctx, s.engine, layer, query)
		if err != nil {
			return err
		}
		for _, m := range matches {
			out = append(out, m.TileID())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AllMgrsIntersections lists every 100 km square intersecting the WKT footprint: zones
// in layer order, squares in layer order within each zone. Each zone archive is
// acquired and released before the next.
func (s *Service) AllMgrsIntersections(ctx context.Context, footprintWKT string) ([]string, error) {
	query, err := s.engine.ParseWKT(footprintWKT)
	if err != nil {
		return nil, err
	}
	return s.allSquares(ctx, s.session(), query)
}

func (s *Service) allSquares(ctx context.Context, sess *grid.Session, query geom.T) ([]string, error) {
	zones, err := s.zones(ctx, sess, query)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, zone := range zones {
		ids, err := s.squares(ctx, zone, query)
		if err != nil {
			return nil, err
		}
		out = append(out, ids...)
	}
	return out, nil
}

// WrsIntersections lists the path/rows intersecting the WKT footprint, in layer order.
func (s *Service) WrsIntersections(ctx context.Context, footprintWKT string) ([]string, error) {
	query, err := s.engine.ParseWKT(footprintWKT)
	if err != nil {
		return nil, err
	}
	return s.pathRows(ctx, s.session(), query)
}

func (s *Service) pathRows(ctx context.Context, sess *grid.Session, query geom.T) ([]string, error) {
	layer, err := sess.WRSMaster(ctx)
	if err != nil {
		return nil, err
	}
	matches, err := grid.FindIntersecting(ctx, s.engine, layer, query)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.PR)
	}
	return out, nil
}

// ConvertMgrsToWrs lists the path/rows overlapping an MGRS square. An unresolvable id
// yields an empty result.
func (s *Service) ConvertMgrsToWrs(ctx context.Context, id string) ([]string, error) {
	return s.mgrsToWrs(ctx, s.session(), id)
}

func (s *Service) mgrsToWrs(ctx context.Context, sess *grid.Session, id string) ([]string, error) {
	fp, err := s.FootprintForMgrsTile(ctx, id)
	if err != nil {
		return nil, err
	}
	if fp == nil {
		return []string{}, nil
	}
	return s.pathRows(ctx, sess, fp.Geometry)
}

// ConvertWrsToMgrs lists the MGRS squares overlapping a path/row. An unresolvable id
// yields an empty result.
func (s *Service) ConvertWrsToMgrs(ctx context.Context, pathrow string) ([]string, error) {
	return s.wrsToMgrs(ctx, s.session(), pathrow)
}

func (s *Service) wrsToMgrs(ctx context.Context, sess *grid.Session, pathrow string) ([]string, error) {
	fp, err := s.wrsFootprint(ctx, sess, pathrow)
	if err != nil {
		return nil, err
	}
	if fp == nil {
		return []string{}, nil
	}
	return s.allSquares(ctx, sess, fp.Geometry)
}

// ConvertWrsListToMgrs converts every path/row and returns the sorted union.
func (s *Service) ConvertWrsListToMgrs(ctx context.Context, pathrows []string) ([]string, error) {
	return s.convertList(ctx, "wrs_to_mgrs", pathrows, s.wrsToMgrs)
}

// ConvertMgrsListToWrs converts every MGRS id and returns the sorted union.
func (s *Service) ConvertMgrsListToWrs(ctx context.Context, ids []string) ([]string, error) {
	return s.convertList(ctx, "mgrs_to_wrs", ids, s.mgrsToWrs)
}

type convertFunc func(ctx context.Context, sess *grid.Session, id string) ([]string, error)

// convertList runs fn for every id concurrently, sharing one session, and unions the
// results. The first error cancels the remaining conversions.
func (s *Service) convertList(ctx context.Context, op string, ids []string, fn convertFunc) ([]string, error) {
	sess := s.session()

	var mu sync.Mutex
	seen := make(map[string]struct{})

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			got, err := fn(gCtx, sess, id)
			if err != nil {
				return eris.Wrapf(err, "convert: %s %s", op, id)
			}
			mu.Lock()
			for _, v := range got {
				seen[v] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)

	s.log.Info("list conversion finished",
		zap.String("op", op),
		zap.Int("inputs", len(ids)),
		zap.Int("results", len(out)),
	)
	return out, nil
}
