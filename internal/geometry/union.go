package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Union combines the polygonal inputs into one geometry. Members covered by another
// member are dropped and the rest are collected into a MultiPolygon, which has the
// same intersection behaviour as a dissolved union. A single survivor is returned as a
// Polygon. Non-polygonal inputs are rejected.
func (p *Planar) Union(gs []geom.T) (geom.T, error) {
	var polys []orb.Polygon
	for _, g := range gs {
		og, err := ToOrb(g)
		if err != nil {
			return nil, err
		}
		switch t := og.(type) {
		case orb.Polygon:
			if len(t) > 0 && len(t[0]) > 0 {
				polys = append(polys, t)
			}
		case orb.MultiPolygon:
			for _, poly := range t {
				if len(poly) > 0 && len(poly[0]) > 0 {
					polys = append(polys, poly)
				}
			}
		default:
			return nil, eris.Errorf("geometry: union of non-polygonal %T", g)
		}
	}
	if len(polys) == 0 {
		return nil, eris.New("geometry: union of nothing")
	}

	dropped := make([]bool, len(polys))
	for i := range polys {
		for j := range polys {
			if i == j || dropped[j] {
				continue
			}
			if covers(polys[j], polys[i]) {
				dropped[i] = true
				break
			}
		}
	}

	var kept orb.MultiPolygon
	for i, poly := range polys {
		if !dropped[i] {
			kept = append(kept, poly)
		}
	}
	if len(kept) == 1 {
		return FromOrb(kept[0])
	}
	return FromOrb(kept)
}

// covers reports whether every exterior vertex of inner lies inside or on outer's
// exterior and outside outer's holes.
func covers(outer, inner orb.Polygon) bool {
	if !outer.Bound().Contains(inner.Bound().Min) || !outer.Bound().Contains(inner.Bound().Max) {
		return false
	}
	for _, pt := range inner[0] {
		if !planar.RingContains(outer[0], pt) && !onRing(outer[0], pt) {
			return false
		}
		for _, hole := range outer[1:] {
			if planar.RingContains(hole, pt) && !onRing(hole, pt) {
				return false
			}
		}
	}
	return true
}

func onRing(r orb.Ring, pt orb.Point) bool {
	for i := 0; i+1 < len(r); i++ {
		if onSegment(r[i], r[i+1], pt) {
			return true
		}
	}
	return false
}

// Simplify applies Douglas-Peucker with the given tolerance. Polygon rings that
// collapse below four points are removed; a polygon whose exterior collapses is
// removed entirely, so the result may be an empty geometry of the input type.
func (p *Planar) Simplify(g geom.T, tolerance float64) (geom.T, error) {
	if tolerance < 0 {
		return nil, eris.Errorf("geometry: negative tolerance %v", tolerance)
	}
	og, err := ToOrb(g)
	if err != nil {
		return nil, err
	}
	s := simplify.DouglasPeucker(tolerance).Simplify(orb.Clone(og))

	switch t := s.(type) {
	case orb.Polygon:
		return FromOrb(cleanPolygon(t))
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, 0, len(t))
		for _, poly := range t {
			if c := cleanPolygon(poly); len(c) > 0 {
				out = append(out, c)
			}
		}
		return FromOrb(out)
	default:
		return FromOrb(s)
	}
}

func cleanPolygon(poly orb.Polygon) orb.Polygon {
	if len(poly) == 0 || len(poly[0]) < 4 {
		return orb.Polygon{}
	}
	out := orb.Polygon{poly[0]}
	for _, hole := range poly[1:] {
		if len(hole) >= 4 {
			out = append(out, hole)
		}
	}
	return out
}
