package geo

import (
	"github.com/paulmach/orb"

	"github.com/matzehuels/pairnull/pkg/errors"
)

// Point is a 2-D coordinate, X = longitude (or easting), Y = latitude (or
// northing).
type Point = orb.Point

// PointSet is an ordered sequence of coordinates tagged with the reference
// system they are expressed in.
type PointSet struct {
	Points []Point `json:"points" bson:"points"`
	CRS    CRS     `json:"crs" bson:"crs"`
}

// NewPointSet copies pts into a new set.
func NewPointSet(crs CRS, pts ...Point) PointSet {
	return PointSet{Points: append([]Point(nil), pts...), CRS: crs}
}

// Len returns the number of points.
func (s PointSet) Len() int { return len(s.Points) }

// Clone returns a deep copy. Working copies handed to the search engine are
// clones so that observed sets are never modified.
func (s PointSet) Clone() PointSet {
	return PointSet{Points: append([]Point(nil), s.Points...), CRS: s.CRS}
}

// Bound returns the bounding box of the set.
func (s PointSet) Bound() orb.Bound {
	return orb.MultiPoint(s.Points).Bound()
}

// Validate checks that the set has at least min points and that every
// coordinate is finite. name is used in error messages ("x1", "x2").
func (s PointSet) Validate(name string, min int) error {
	if len(s.Points) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "%s is empty", name)
	}
	if len(s.Points) < min {
		return errors.New(errors.ErrCodeInvalidInput,
			"%s has %d point(s); at least %d are needed for self-distances", name, len(s.Points), min)
	}
	for i, p := range s.Points {
		if err := errors.ValidateCoordinate(name, i, p[0], p[1]); err != nil {
			return err
		}
	}
	return nil
}
