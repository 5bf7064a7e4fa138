package geo

import (
	"fmt"
	"strings"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// Metric computes the distance from p to every point in set, writing the
// results into dst. dst has the same length as set. Implementations must be
// pure: the engine calls them from its hot loop and relies on identical
// inputs producing identical outputs.
type Metric func(p Point, set []Point, dst []float64)

// Pairwise adapts a two-point distance function to a Metric.
func Pairwise(fn func(a, b Point) float64) Metric {
	return func(p Point, set []Point, dst []float64) {
		for i, q := range set {
			dst[i] = fn(p, q)
		}
	}
}

// GreatCircle is the haversine distance in metres on a spherical Earth.
// Points are longitude/latitude degrees.
var GreatCircle Metric = Pairwise(geo.DistanceHaversine)

// Euclidean is the planar distance in coordinate units. Use it for projected
// reference systems.
var Euclidean Metric = Pairwise(planar.Distance)

// Angular is the central angle in radians between longitude/latitude points.
// It is great-circle distance on the unit sphere and avoids choosing an
// Earth radius.
var Angular Metric = func(p Point, set []Point, dst []float64) {
	a := s2.LatLngFromDegrees(p.Lat(), p.Lon())
	for i, q := range set {
		dst[i] = a.Distance(s2.LatLngFromDegrees(q.Lat(), q.Lon())).Radians()
	}
}

// DefaultMetric returns great-circle distance for geographic systems and
// Euclidean distance otherwise.
func DefaultMetric(crs CRS) Metric {
	if crs.IsGeographic() {
		return GreatCircle
	}
	return Euclidean
}

// MetricNames lists the names accepted by MetricByName.
var MetricNames = []string{"greatcircle", "angular", "euclidean"}

// MetricByName looks up a metric by its CLI/API name. The empty name means
// "pick by CRS" and returns nil.
func MetricByName(name string) (Metric, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return nil, nil
	case "greatcircle", "great-circle", "haversine":
		return GreatCircle, nil
	case "angular":
		return Angular, nil
	case "euclidean", "planar":
		return Euclidean, nil
	}
	return nil, fmt.Errorf("unknown metric %q (must be one of: %s)", name, strings.Join(MetricNames, ", "))
}
