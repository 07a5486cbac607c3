package geometry

import (
	"slices"

	"github.com/starford/annota/internal/models"
)

// ConvexHull returns the convex hull of pts by Graham scan, starting at the
// lowest-then-leftmost point. Collinear boundary points are dropped. Fewer
// than three distinct points are returned as they are.
func ConvexHull(pts []models.Point) []models.Point {
	uniq := slices.Clone(pts)
	slices.SortFunc(uniq, comparePoints)
	uniq = slices.Compact(uniq)
	if len(uniq) < 3 {
		return uniq
	}

	pivot := uniq[0]
	for _, p := range uniq[1:] {
		if p.Y < pivot.Y || (p.Y == pivot.Y && p.X < pivot.X) {
			pivot = p
		}
	}
	rest := slices.DeleteFunc(uniq, func(p models.Point) bool { return p == pivot })

	slices.SortFunc(rest, func(a, b models.Point) int {
		turn := a.Sub(pivot).Cross(b.Sub(pivot))
		switch {
		case turn > 0:
			return -1
		case turn < 0:
			return 1
		}
		da, db := pivot.Distance(a), pivot.Distance(b)
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		}
		return 0
	})

	hull := []models.Point{pivot}
	for _, p := range rest {
		for len(hull) > 1 {
			top, below := hull[len(hull)-1], hull[len(hull)-2]
			if top.Sub(below).Cross(p.Sub(below)) > 0 {
				break
			}
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	// Points on the closing edge survive the sweep.
	for len(hull) > 3 {
		n := len(hull)
		prev, last := hull[n-2], hull[n-1]
		if last.Sub(pivot).Cross(prev.Sub(pivot)) != 0 {
			break
		}
		hull = append(hull[:n-2], last)
	}
	return hull
}

func comparePoints(a, b models.Point) int {
	switch {
	case a.X < b.X:
		return -1
	case a.X > b.X:
		return 1
	case a.Y < b.Y:
		return -1
	case a.Y > b.Y:
		return 1
	}
	return 0
}
