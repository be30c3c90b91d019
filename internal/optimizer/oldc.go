package optimizer

// OLDC (Online Delay Compensation) re-times a vector of arrival
// timestamps around an anchored average inter-arrival, per spec.md §4.8.
type OLDC struct {
	cfg Config
	b   int
}

// NewOLDC constructs an OLDC optimizer with buffering horizon b.
func NewOLDC(b int) *OLDC {
	return &OLDC{b: b}
}

// Configure stores the detection parameter bundle (unused by OLDC itself,
// which is a pure transform, but required by the Optimizer interface so
// the jitter-control experiment can configure every optimizer uniformly).
func (o *OLDC) Configure(cfg Config) { o.cfg = cfg }

// Name returns "OLDC".
func (o *OLDC) Name() string { return "OLDC" }

// Optimize implements spec.md §4.8's OLDC transform: if n <= 2B, returns
// the input unchanged. Otherwise computes the average inter-arrival
// X_a = (a[n-1]-a[0])/(n-1), anchors index B at a[B], and clamps each
// candidate s*_k = a_B + (k-B)*X_a to [a_k, a_{k+2B}] (treating a_{k+2B}
// as +infinity when k+2B >= n). A perfectly regular input is returned
// unchanged.
func (o *OLDC) Optimize(a []uint64) []uint64 {
	n := len(a)
	if n <= 2*o.b {
		out := make([]uint64, n)
		copy(out, a)
		return out
	}

	xa := float64(a[n-1]-a[0]) / float64(n-1)
	anchor := float64(a[o.b])

	out := make([]uint64, n)
	for k := 0; k < n; k++ {
		candidate := anchor + float64(k-o.b)*xa

		lo := float64(a[k])
		hasHi := k+2*o.b < n
		var hi float64
		if hasHi {
			hi = float64(a[k+2*o.b])
		}

		switch {
		case candidate < lo:
			candidate = lo
		case hasHi && candidate > hi:
			candidate = hi
		}

		out[k] = uint64(candidate)
	}

	return out
}
