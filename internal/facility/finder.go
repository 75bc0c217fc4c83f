// Package facility locates service points, such as lost-and-found desks,
// relative to other campus locations.
package facility

import (
	"math"

	"github.com/golang/geo/r2"

	"github.com/campus-card/backend/internal/gazetteer"
)

// Nearest is the closest facility to a location. Distance is in campus
// plane units.
type Nearest struct {
	Name     string  `json:"name"`
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Distance float64 `json:"distance"`
}

type Finder struct {
	gaz *gazetteer.Gazetteer
}

func NewFinder(gaz *gazetteer.Gazetteer) *Finder {
	return &Finder{gaz: gaz}
}

// Nearest returns the record of the given category closest to the location
// named locationName. Equal distances keep gazetteer order. It reports false
// when the location is unknown or no record has the category.
func (f *Finder) Nearest(locationName, category string) (Nearest, bool) {
	target, ok := f.gaz.FindByName(locationName)
	if !ok {
		return Nearest{}, false
	}
	from := point(target)

	var (
		best  Nearest
		found bool
	)
	for _, r := range f.gaz.ByCategory(category) {
		d := manhattan(from, point(r))
		if !found || d < best.Distance {
			best = Nearest{Name: r.Name, X: r.X, Y: r.Y, Distance: d}
			found = true
		}
	}
	return best, found
}

func point(r gazetteer.Record) r2.Point {
	return r2.Point{X: float64(r.X), Y: float64(r.Y)}
}

func manhattan(a, b r2.Point) float64 {
	d := a.Sub(b)
	return math.Abs(d.X) + math.Abs(d.Y)
}
