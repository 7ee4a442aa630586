package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy/lineintersector"
)

// robust is go-geom's JTS-derived intersector with its extended-precision
// orientation test.
var robust = lineintersector.RobustLineIntersector{}

type segment struct {
	a, b orb.Point
	box  orb.Bound
}

// parts is a geometry decomposed for the intersection test.
type parts struct {
	points   []orb.Point   // isolated points
	anchors  []orb.Point   // one vertex per line or ring component
	segments []segment     // every edge of every line and ring
	areas    []orb.Polygon // polygon members
	bound    orb.Bound
}

func decompose(g geom.T) (*parts, error) {
	og, err := ToOrb(g)
	if err != nil {
		return nil, err
	}
	p := &parts{bound: og.Bound()}
	p.add(og)
	return p, nil
}

func (p *parts) add(g orb.Geometry) {
	switch t := g.(type) {
	case orb.Point:
		p.points = append(p.points, t)
	case orb.MultiPoint:
		p.points = append(p.points, t...)
	case orb.LineString:
		p.addPath(t)
	case orb.Ring:
		p.addPath(t)
	case orb.MultiLineString:
		for _, ls := range t {
			p.addPath(ls)
		}
	case orb.Polygon:
		p.addPolygon(t)
	case orb.MultiPolygon:
		for _, poly := range t {
			p.addPolygon(poly)
		}
	case orb.Collection:
		for _, child := range t {
			p.add(child)
		}
	}
}

func (p *parts) addPolygon(poly orb.Polygon) {
	if len(poly) == 0 || len(poly[0]) == 0 {
		return
	}
	p.areas = append(p.areas, poly)
	for _, r := range poly {
		p.addPath(r)
	}
}

func (p *parts) addPath(pts []orb.Point) {
	if len(pts) == 0 {
		return
	}
	p.anchors = append(p.anchors, pts[0])
	if len(pts) == 1 {
		p.points = append(p.points, pts[0])
		return
	}
	for i := 0; i+1 < len(pts); i++ {
		p.segments = append(p.segments, segment{
			a:   pts[i],
			b:   pts[i+1],
			box: orb.MultiPoint{pts[i], pts[i+1]}.Bound(),
		})
	}
}

// Intersects implements Engine. Two geometries intersect when their boundaries touch or
// cross, when a component of one lies inside an area of the other, or when an isolated
// point of one lies on the other.
func (p *Planar) Intersects(a, b geom.T) (bool, error) {
	ea, okA := ExtentOf(a)
	eb, okB := ExtentOf(b)
	if !okA || !okB || !ea.Overlaps(eb) {
		return false, nil
	}

	pa, err := decompose(a)
	if err != nil {
		return false, err
	}
	pb, err := decompose(b)
	if err != nil {
		return false, err
	}

	if segmentsCross(pa, pb) {
		return true, nil
	}
	if anyInside(pa.anchors, pb.areas) || anyInside(pb.anchors, pa.areas) {
		return true, nil
	}
	if pointsTouch(pa.points, pb) || pointsTouch(pb.points, pa) {
		return true, nil
	}
	return false, nil
}

func segmentsCross(pa, pb *parts) bool {
	// Only edges of a inside b's box can meet b.
	for _, sa := range pa.segments {
		if !sa.box.Intersects(pb.bound) {
			continue
		}
		for _, sb := range pb.segments {
			if !sa.box.Intersects(sb.box) {
				continue
			}
			if segmentsIntersect(sa.a, sa.b, sb.a, sb.b) {
				return true
			}
		}
	}
	return false
}

func anyInside(pts []orb.Point, areas []orb.Polygon) bool {
	for _, area := range areas {
		for _, pt := range pts {
			if planar.PolygonContains(area, pt) {
				return true
			}
		}
	}
	return false
}

func pointsTouch(pts []orb.Point, other *parts) bool {
	for _, pt := range pts {
		if !other.bound.Contains(pt) {
			continue
		}
		for _, q := range other.points {
			if pt.Equal(q) {
				return true
			}
		}
		for _, s := range other.segments {
			if s.box.Contains(pt) && onSegment(s.a, s.b, pt) {
				return true
			}
		}
		if anyInside([]orb.Point{pt}, other.areas) {
			return true
		}
	}
	return false
}

func coord(p orb.Point) geom.Coord {
	return geom.Coord{p[0], p[1]}
}

// onSegment reports whether pt lies on the closed segment a-b.
func onSegment(a, b, pt orb.Point) bool {
	return lineintersector.PointIntersectsLine(robust, coord(pt), coord(a), coord(b))
}

// segmentsIntersect reports whether closed segments p1-p2 and q1-q2 share a point.
func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	res := lineintersector.LineIntersectsLine(robust, coord(p1), coord(p2), coord(q1), coord(q2))
	return res.HasIntersection()
}
