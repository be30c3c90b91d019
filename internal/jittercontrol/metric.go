package jittercontrol

// delayVariation computes V = max_{i,j} |t[i] - t[j] - (i-j)*Xa| over a
// flow's arrival timestamps, per spec.md §4.9. Xa is the average
// inter-arrival (t[m-1]-t[0])/(m-1). Flows shorter than 2 timestamps have
// no variation by definition.
func delayVariation(t []uint64) float64 {
	m := len(t)
	if m < 2 {
		return 0
	}

	xa := float64(t[m-1]-t[0]) / float64(m-1)

	var maxV float64
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			d := float64(t[i]) - float64(t[j]) - float64(i-j)*xa
			if d < 0 {
				d = -d
			}
			if d > maxV {
				maxV = d
			}
		}
	}
	return maxV
}
