package depth

import "sort"

// Interp returns the piecewise-linear interpolant of (xp, fp) at x.
// xp must be ascending. Points outside the grid take the nearest end value.
func Interp(x float64, xp, fp []float64) float64 {
	n := len(xp)
	if n == 0 {
		return 0
	}
	if x <= xp[0] {
		return fp[0]
	}
	if x >= xp[n-1] {
		return fp[n-1]
	}

	// First index with xp[i] > x; 1 <= i <= n-1 here.
	i := sort.Search(n, func(i int) bool { return xp[i] > x })
	x0, x1 := xp[i-1], xp[i]
	if x1 == x0 {
		return fp[i]
	}
	return fp[i-1] + (x-x0)*(fp[i]-fp[i-1])/(x1-x0)
}
