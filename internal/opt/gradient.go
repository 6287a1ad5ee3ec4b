package opt

import "math"

// gradStep is the relative step for finite-difference gradients.
const gradStep = 1e-6

// boundedGradient fills dst with a central-difference estimate of the
// gradient of obj at x, keeping every probe point inside bounds. At an
// active bound the stencil degenerates to one-sided; if both probes
// collapse onto x the component is reported as zero.
func boundedGradient(dst []float64, obj Objective, x []float64, bounds *Bounds) {
	probe := make([]float64, len(x))
	copy(probe, x)
	for i := range x {
		h := gradStep * math.Max(math.Abs(x[i]), 1)
		xp := x[i] + h
		xm := x[i] - h
		if bounds != nil {
			if hi := bounds.Upper[i]; xp > hi {
				xp = hi
			}
			if lo := bounds.Lower[i]; xm < lo {
				xm = lo
			}
		}
		if xp == xm {
			dst[i] = 0
			continue
		}
		probe[i] = xp
		fp := obj.Cost(probe)
		probe[i] = xm
		fm := obj.Cost(probe)
		probe[i] = x[i]
		dst[i] = (fp - fm) / (xp - xm)
	}
}
