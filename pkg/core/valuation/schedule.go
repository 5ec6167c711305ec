package valuation

// DefaultFadeYears is the margin fade window when none is configured.
const DefaultFadeYears = 5

// BuildGrowthSchedule returns one growth rate per explicit year.
// Near-term overrides come first (truncated to the horizon); the remaining
// years fade linearly from the last override to longTerm, landing on
// longTerm in the final year. With no overrides every year is longTerm.
func BuildGrowthSchedule(explicitYears int, nearTerm []float64, longTerm float64) []float64 {
	if explicitYears <= 0 {
		return []float64{}
	}
	schedule := make([]float64, 0, explicitYears)

	n := len(nearTerm)
	if n > explicitYears {
		n = explicitYears
	}
	schedule = append(schedule, nearTerm[:n]...)
	if n == explicitYears {
		return schedule
	}
	if n == 0 {
		for i := 0; i < explicitYears; i++ {
			schedule = append(schedule, longTerm)
		}
		return schedule
	}

	last := nearTerm[n-1]
	remaining := explicitYears - n
	for i := 1; i <= remaining; i++ {
		schedule = append(schedule, last+(longTerm-last)*float64(i)/float64(remaining))
	}
	return schedule
}

// BuildMarginSchedule interpolates from current to target over fadeYears,
// then holds target. fadeYears must be > 0.
func BuildMarginSchedule(explicitYears int, current, target float64, fadeYears int) []float64 {
	if explicitYears <= 0 {
		return []float64{}
	}
	schedule := make([]float64, explicitYears)
	for t := 1; t <= explicitYears; t++ {
		if t <= fadeYears {
			schedule[t-1] = current + (target-current)*float64(t)/float64(fadeYears)
		} else {
			schedule[t-1] = target
		}
	}
	return schedule
}
