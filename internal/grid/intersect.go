package grid

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/gridconv/internal/geometry"
)

// FindIntersecting returns the features of layer whose geometry has a non-empty
// intersection with query, in layer order and without dedup. The R-tree narrows the
// candidates; eng makes the exact decision. The result is never nil.
func FindIntersecting[F Feature](ctx context.Context, eng geometry.Engine, layer *Layer[F], query geom.T) ([]F, error) {
	out := []F{}
	if layer == nil || query == nil {
		return out, nil
	}
	ext, ok := geometry.ExtentOf(query)
	if !ok {
		return out, nil
	}

	for _, idx := range layer.Candidates(ext) {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "grid: find intersecting")
		}
		f := layer.Features[idx]
		hit, err := eng.Intersects(f.Geom(), query)
		if err != nil {
			return nil, eris.Wrapf(err, "grid: intersect %s feature %d", layer.Name, idx)
		}
		if hit {
			out = append(out, f)
		}
	}
	return out, nil
}
