package convert

import (
	"context"
	"strings"

	"github.com/sells-group/gridconv/internal/export"
	"github.com/sells-group/gridconv/internal/tileid"
)

// TileFootprints classifies every id and resolves its footprint, in input order.
// Unknown or unresolved ids are returned with a nil geometry.
func (s *Service) TileFootprints(ctx context.Context, ids []string) ([]export.Tile, error) {
	sess := s.session()
	tiles := make([]export.Tile, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		tile := export.Tile{ID: id, Kind: tileid.Classify(id)}

		var (
			fp  *Footprint
			err error
		)
		switch tile.Kind {
		case tileid.KindWRS:
			fp, err = s.wrsFootprint(ctx, sess, id)
		case tileid.KindMGRS:
			fp, err = s.FootprintForMgrsTile(ctx, id)
		}
		if err != nil {
			return nil, err
		}
		if fp != nil {
			tile.Geometry = fp.Geometry
		}
		tiles = append(tiles, tile)
	}
	return tiles, nil
}

// TileListToVectorFile writes the footprints of ids to dest (.shp, .geojson or .json).
// An empty dest writes the configured default name.
func (s *Service) TileListToVectorFile(ctx context.Context, ids []string, dest string) (*export.Report, error) {
	if dest == "" {
		dest = s.exportName
	}
	tiles, err := s.TileFootprints(ctx, ids)
	if err != nil {
		return nil, err
	}
	return export.TileCoverage(dest, tiles)
}
