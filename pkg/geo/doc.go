// Package geo holds the point and reference-system types shared by the
// randomization engine and its adapters.
//
// Points are [orb.Point] values (X = longitude, Y = latitude). A [PointSet]
// always travels with its [CRS]; reference systems are explicit values that
// callers resolve with [ResolveCRS] and check with [RequireMatch] rather than
// ambient state.
//
// Distances are computed through a [Metric], which maps one point and a
// slice of points to a slice of distances. [GreatCircle] (haversine, metres)
// is the default for geographic data, [Euclidean] for projected data.
package geo
