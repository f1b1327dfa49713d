package registration

import (
	"fmt"
	"math"
)

// Powell's direction-set method. The wrapped minimization library offers
// gradient-based and simplex strategies but no direction-set method, so it
// is implemented here: cyclic line minimizations along a maintained set of
// conjugate directions, replacing the direction of largest decrease after
// each sweep when the standard extrapolation test allows it.

const powellTiny = 1e-25

// powellMinimize minimizes f starting at x0. xtol bounds the line-search
// bracket tolerance, ftol the relative function decrease per sweep.
// callback, when non-nil, runs after every sweep with the current point.
func powellMinimize(f func([]float64) float64, x0 []float64, xtol, ftol float64, maxIter int, callback func([]float64)) ([]float64, float64, error) {
	n := len(x0)
	x := append([]float64(nil), x0...)
	fx := f(x)

	// Initial direction set: the coordinate axes.
	dirs := make([][]float64, n)
	for i := range dirs {
		dirs[i] = make([]float64, n)
		dirs[i][i] = 1
	}

	x0Sweep := append([]float64(nil), x...)
	for iter := 0; iter < maxIter; iter++ {
		fxSweep := fx
		ibig := 0
		del := 0.0

		for i := 0; i < n; i++ {
			fPrev := fx
			fx = lineMinimize(f, x, dirs[i], xtol)
			if fPrev-fx > del {
				del = fPrev - fx
				ibig = i
			}
		}

		if callback != nil {
			callback(append([]float64(nil), x...))
		}

		if 2*(fxSweep-fx) <= ftol*(math.Abs(fxSweep)+math.Abs(fx))+powellTiny {
			return x, fx, nil
		}

		// Extrapolated point and the average sweep direction.
		xe := make([]float64, n)
		dir := make([]float64, n)
		for j := 0; j < n; j++ {
			xe[j] = 2*x[j] - x0Sweep[j]
			dir[j] = x[j] - x0Sweep[j]
			x0Sweep[j] = x[j]
		}
		fe := f(xe)

		// Keep the old direction set unless the extrapolation shows the
		// average direction is worth adopting (Numerical Recipes test).
		if fe < fxSweep {
			t := 2*(fxSweep-2*fx+fe)*sq(fxSweep-fx-del) - del*sq(fxSweep-fe)
			if t < 0 {
				fx = lineMinimize(f, x, dir, xtol)
				dirs[ibig] = dirs[n-1]
				dirs[n-1] = dir
			}
		}
	}
	return x, fx, fmt.Errorf("powell: no convergence in %d iterations", maxIter)
}

func sq(v float64) float64 { return v * v }

// lineMinimize minimizes f along direction dir from point x, updating x in
// place and returning the minimum value found.
func lineMinimize(f func([]float64) float64, x, dir []float64, tol float64) float64 {
	g := func(t float64) float64 {
		p := make([]float64, len(x))
		for j := range p {
			p[j] = x[j] + t*dir[j]
		}
		return f(p)
	}
	ax, bx, cx, fb := bracket(g)
	tmin, fmin := brent(g, ax, bx, cx, fb, tol)
	for j := range x {
		x[j] += tmin * dir[j]
	}
	return fmin
}

// bracket expands outward from t=0 until it holds three points with the
// middle one lowest.
func bracket(g func(float64) float64) (ax, bx, cx, fb float64) {
	const gold = 1.618034
	const glimit = 100
	ax, bx = 0, 1
	fa, fbv := g(ax), g(bx)
	if fbv > fa {
		ax, bx = bx, ax
		fa, fbv = fbv, fa
	}
	cx = bx + gold*(bx-ax)
	fc := g(cx)
	for fbv > fc {
		r := (bx - ax) * (fbv - fc)
		q := (bx - cx) * (fbv - fa)
		denom := 2 * math.Copysign(math.Max(math.Abs(q-r), powellTiny), q-r)
		u := bx - ((bx-cx)*q-(bx-ax)*r)/denom
		ulim := bx + glimit*(cx-bx)
		var fu float64
		switch {
		case (bx-u)*(u-cx) > 0:
			fu = g(u)
			if fu < fc {
				return bx, u, cx, fu
			} else if fu > fbv {
				return ax, bx, u, fbv
			}
			u = cx + gold*(cx-bx)
			fu = g(u)
		case (cx-u)*(u-ulim) > 0:
			fu = g(u)
			if fu < fc {
				bx, cx, u = cx, u, u+gold*(u-cx)
				fbv, fc, fu = fc, fu, g(u)
			}
		case (u-ulim)*(ulim-cx) >= 0:
			u = ulim
			fu = g(u)
		default:
			u = cx + gold*(cx-bx)
			fu = g(u)
		}
		ax, bx, cx = bx, cx, u
		fa, fbv, fc = fbv, fc, fu
	}
	return ax, bx, cx, fbv
}

// brent finds the minimum of g inside the bracket (ax, bx, cx) by Brent's
// parabolic interpolation with golden-section fallback.
func brent(g func(float64) float64, ax, bx, cx, fb, tol float64) (tmin, fmin float64) {
	const cgold = 0.3819660
	const maxBrentIter = 100
	const zeps = 1e-10

	a := math.Min(ax, cx)
	b := math.Max(ax, cx)
	x, w, v := bx, bx, bx
	fx, fw, fv := fb, fb, fb
	d, e := 0.0, 0.0

	for i := 0; i < maxBrentIter; i++ {
		xm := 0.5 * (a + b)
		tol1 := tol*math.Abs(x) + zeps
		tol2 := 2 * tol1
		if math.Abs(x-xm) <= tol2-0.5*(b-a) {
			return x, fx
		}
		useGolden := true
		if math.Abs(e) > tol1 {
			r := (x - w) * (fx - fv)
			q := (x - v) * (fx - fw)
			p := (x-v)*q - (x-w)*r
			q = 2 * (q - r)
			if q > 0 {
				p = -p
			}
			q = math.Abs(q)
			etmp := e
			e = d
			if math.Abs(p) < math.Abs(0.5*q*etmp) && p > q*(a-x) && p < q*(b-x) {
				d = p / q
				u := x + d
				if u-a < tol2 || b-u < tol2 {
					d = math.Copysign(tol1, xm-x)
				}
				useGolden = false
			}
		}
		if useGolden {
			if x >= xm {
				e = a - x
			} else {
				e = b - x
			}
			d = cgold * e
		}
		var u float64
		if math.Abs(d) >= tol1 {
			u = x + d
		} else {
			u = x + math.Copysign(tol1, d)
		}
		fu := g(u)
		if fu <= fx {
			if u >= x {
				a = x
			} else {
				b = x
			}
			v, w, x = w, x, u
			fv, fw, fx = fw, fx, fu
		} else {
			if u < x {
				a = u
			} else {
				b = u
			}
			if fu <= fw || w == x {
				v, w = w, u
				fv, fw = fw, fu
			} else if fu <= fv || v == x || v == w {
				v = u
				fv = fu
			}
		}
	}
	return x, fx
}
