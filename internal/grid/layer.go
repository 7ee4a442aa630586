// Package grid loads the WRS-2 and MGRS reference layers as typed, WGS84 features and
// finds the features that intersect a query footprint.
package grid

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/gridconv/internal/geometry"
)

// Feature is a decoded reference feature with WGS84 geometry.
type Feature interface {
	Geom() geom.T
}

// WrsFeature is one WRS-2 path/row tile of the master layer.
type WrsFeature struct {
	PR       string
	Geometry geom.T
}

// Geom implements Feature.
func (f WrsFeature) Geom() geom.T { return f.Geometry }

// ZoneFeature is one MGRS grid zone of the zone master layer.
type ZoneFeature struct {
	GZD      string
	Geometry geom.T
}

// Geom implements Feature.
func (f ZoneFeature) Geom() geom.T { return f.Geometry }

// SquareFeature is one 100 km square of a per-zone layer.
type SquareFeature struct {
	Zone        string
	HundredKmID string
	MGRS        string // MGRS attribute, or Zone+HundredKmID when the layer has none
	Geometry    geom.T
}

// Geom implements Feature.
func (f SquareFeature) Geom() geom.T { return f.Geometry }

// TileID is the canonical 5-character MGRS id: zone code plus square code.
func (f SquareFeature) TileID() string { return f.Zone + f.HundredKmID }

// boundsPad widens every index rectangle so that features touching the query only at
// an edge or a vertex are still returned as candidates.
const boundsPad = 1e-7

// indexed is the R-tree entry for the feature at position idx of a layer.
type indexed struct {
	idx  int
	rect rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (i *indexed) Bounds() rtreego.Rect {
	return i.rect
}

func paddedRect(e geometry.Extent) rtreego.Rect {
	point := rtreego.Point{e.MinX - boundsPad, e.MinY - boundsPad}
	lengths := []float64{
		e.MaxX - e.MinX + 2*boundsPad,
		e.MaxY - e.MinY + 2*boundsPad,
	}
	rect, _ := rtreego.NewRect(point, lengths)
	return rect
}

// Layer is an ordered set of features with a bounding-box index. Order is the record
// order of the source shapefile.
type Layer[F Feature] struct {
	Name     string
	Features []F

	tree *rtreego.Rtree
}

// NewLayer indexes features. Features without coordinates are kept but never returned
// as candidates.
func NewLayer[F Feature](name string, features []F) *Layer[F] {
	// 2D, min=25 children, max=50 children.
	tree := rtreego.NewTree(2, 25, 50)
	for i, f := range features {
		e, ok := geometry.ExtentOf(f.Geom())
		if !ok {
			continue
		}
		tree.Insert(&indexed{idx: i, rect: paddedRect(e)})
	}
	return &Layer[F]{Name: name, Features: features, tree: tree}
}

// Len returns the number of features.
func (l *Layer[F]) Len() int {
	return len(l.Features)
}

// Candidates returns, in layer order, the positions of features whose bounding box
// overlaps e (boundary contact included).
func (l *Layer[F]) Candidates(e geometry.Extent) []int {
	hits := l.tree.SearchIntersect(paddedRect(e))
	out := make([]int, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(*indexed).idx)
	}
	sort.Ints(out)
	return out
}

// Last returns the last feature for which match is true. Reference layers hold one
// feature per identifier; a duplicate resolves to the later record.
func (l *Layer[F]) Last(match func(F) bool) (F, bool) {
	var found F
	ok := false
	for _, f := range l.Features {
		if match(f) {
			found, ok = f, true
		}
	}
	return found, ok
}
