package engine

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// earthRadiusM is the mean Earth radius used for spherical area and distance.
const earthRadiusM = 6371008.8

// Boundary is a country boundary polygon in WGS84, resolved from the
// reference dataset. Boundaries carry no identity beyond their name and are
// cached only for the duration of one analysis run.
type Boundary struct {
	Name     string
	Geometry *geom.MultiPolygon

	areaKm2 float64
}

// NewBoundary wraps a multipolygon under the given display name.
func NewBoundary(name string, g *geom.MultiPolygon) *Boundary {
	return &Boundary{Name: name, Geometry: g}
}

// AreaKm2 returns the spherical surface area of the boundary in km².
// The value is memoized on first call.
func (b *Boundary) AreaKm2() float64 {
	if b.areaKm2 > 0 {
		return b.areaKm2
	}
	var total float64
	for i := 0; i < b.Geometry.NumPolygons(); i++ {
		p := b.Geometry.Polygon(i)
		for j := 0; j < p.NumLinearRings(); j++ {
			a := sphericalRingArea(p.LinearRing(j))
			if j == 0 {
				total += a
			} else {
				total -= a // interior rings are holes
			}
		}
	}
	b.areaKm2 = total / 1e6
	return b.areaKm2
}

// Centroid returns the vertex-averaged centroid of the exterior rings,
// weighted by ring vertex count. Adequate for UTM zone selection; not a
// true area centroid.
func (b *Boundary) Centroid() (lon, lat float64) {
	var sumLon, sumLat float64
	var n int
	for i := 0; i < b.Geometry.NumPolygons(); i++ {
		ring := b.Geometry.Polygon(i).LinearRing(0)
		coords := ring.FlatCoords()
		stride := ring.Stride()
		for c := 0; c+1 < len(coords); c += stride {
			sumLon += coords[c]
			sumLat += coords[c+1]
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sumLon / float64(n), sumLat / float64(n)
}

// BBox returns the boundary's bounding box.
func (b *Boundary) BBox() *geom.Bounds {
	return b.Geometry.Bounds()
}

// Contains reports whether the WGS84 point lies inside the boundary,
// by even-odd ray casting against every ring.
func (b *Boundary) Contains(lon, lat float64) bool {
	inside := false
	for i := 0; i < b.Geometry.NumPolygons(); i++ {
		p := b.Geometry.Polygon(i)
		for j := 0; j < p.NumLinearRings(); j++ {
			if pointInRing(p.LinearRing(j), lon, lat) {
				inside = !inside
			}
		}
	}
	return inside
}

// Simplify returns a boundary with each ring reduced by Douglas-Peucker at
// the given ground tolerance. Intersection probes against large feature sets
// only need the coarse shape; exact coastlines just add cost. Rings that
// would collapse below a valid polygon keep their original vertices.
func (b *Boundary) Simplify(toleranceM float64) *Boundary {
	if toleranceM <= 0 {
		return b
	}
	_, centerLat := b.Centroid()
	_, latM := MetersPerDegree(centerLat)
	tol := toleranceM / latM

	out := geom.NewMultiPolygon(geom.XY)
	for i := 0; i < b.Geometry.NumPolygons(); i++ {
		p := b.Geometry.Polygon(i)
		np := geom.NewPolygon(geom.XY)
		for j := 0; j < p.NumLinearRings(); j++ {
			coords := p.LinearRing(j).Coords()
			kept := douglasPeucker(coords, tol)
			if len(kept) < 4 {
				kept = coords
			}
			if err := np.Push(geom.NewLinearRing(geom.XY).MustSetCoords(kept)); err != nil {
				return b
			}
		}
		if err := out.Push(np); err != nil {
			return b
		}
	}
	return NewBoundary(b.Name, out)
}

// douglasPeucker reduces a coordinate chain, always keeping the endpoints.
func douglasPeucker(coords []geom.Coord, tol float64) []geom.Coord {
	if len(coords) <= 2 {
		return coords
	}

	maxDist := 0.0
	maxIdx := 0
	for i := 1; i < len(coords)-1; i++ {
		d := xy.DistanceFromPointToLine(coords[i], coords[0], coords[len(coords)-1])
		if d > maxDist {
			maxDist = d
			maxIdx = i
		}
	}
	if maxDist <= tol {
		return []geom.Coord{coords[0], coords[len(coords)-1]}
	}

	left := douglasPeucker(coords[:maxIdx+1], tol)
	right := douglasPeucker(coords[maxIdx:], tol)
	out := make([]geom.Coord, 0, len(left)+len(right)-1)
	out = append(out, left[:len(left)-1]...)
	return append(out, right...)
}

// sphericalRingArea returns the absolute spherical area of a ring in m²,
// using the spherical excess approximation over great-circle edges.
func sphericalRingArea(ring *geom.LinearRing) float64 {
	coords := ring.FlatCoords()
	stride := ring.Stride()
	n := len(coords) / stride
	if n < 3 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		lon1 := coords[i*stride] * math.Pi / 180
		lat1 := coords[i*stride+1] * math.Pi / 180
		lon2 := coords[j*stride] * math.Pi / 180
		lat2 := coords[j*stride+1] * math.Pi / 180
		sum += (lon2 - lon1) * (2 + math.Sin(lat1) + math.Sin(lat2))
	}
	return math.Abs(sum * earthRadiusM * earthRadiusM / 2)
}

// pointInRing is even-odd ray casting against one ring.
func pointInRing(ring *geom.LinearRing, lon, lat float64) bool {
	coords := ring.FlatCoords()
	stride := ring.Stride()
	n := len(coords) / stride
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := coords[i*stride], coords[i*stride+1]
		xj, yj := coords[j*stride], coords[j*stride+1]
		if (yi > lat) != (yj > lat) &&
			lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// GeometryContains reports whether a WGS84 point lies inside a polygonal
// geometry, by even-odd ray casting. Non-polygonal geometries contain nothing.
func GeometryContains(g geom.T, lon, lat float64) bool {
	switch s := g.(type) {
	case *geom.Polygon:
		inside := false
		for j := 0; j < s.NumLinearRings(); j++ {
			if pointInRing(s.LinearRing(j), lon, lat) {
				inside = !inside
			}
		}
		return inside
	case *geom.MultiPolygon:
		inside := false
		for i := 0; i < s.NumPolygons(); i++ {
			p := s.Polygon(i)
			for j := 0; j < p.NumLinearRings(); j++ {
				if pointInRing(p.LinearRing(j), lon, lat) {
					inside = !inside
				}
			}
		}
		return inside
	default:
		return false
	}
}

// MetersPerDegree returns the ground distance of one degree of longitude and
// latitude at the given latitude.
func MetersPerDegree(lat float64) (lonM, latM float64) {
	latM = 2 * math.Pi * earthRadiusM / 360
	lonM = latM * math.Cos(lat*math.Pi/180)
	if lonM < 1 {
		lonM = 1 // degenerate near the poles; keep frames finite
	}
	return lonM, latM
}
