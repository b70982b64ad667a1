// Package ratio converts per-bucket allocations into capacity distributions.
package ratio

import (
	"fmt"
	"math"
	"sort"

	"capacityreport/internal/domain"
)

const hundredths = 100

// ComputeRatio normalizes primary, or fallback when primary sums to zero.
// Entries are rounded to two decimals with largest-remainder apportionment,
// so the rounded ratio always sums to exactly 1.00.
func ComputeRatio(primary, fallback domain.AllocationVector) (domain.RatioVector, error) {
	src := primary
	if primary.IsZero() {
		src = fallback
	}
	total := src.Sum()
	if total <= 0 {
		return domain.RatioVector{}, fmt.Errorf("compute ratio: %w", domain.ErrDivisionByZero)
	}

	var (
		units [domain.BucketCount]int
		fracs [domain.BucketCount]float64
		used  int
	)
	for i, v := range src {
		exact := v / total * hundredths
		// Absorb float noise such as 0.29*100 = 28.999999999999996.
		fl := math.Floor(exact + 1e-9)
		units[i] = int(fl)
		fracs[i] = exact - fl
		used += units[i]
	}

	order := []int{0, 1, 2, 3}
	sort.SliceStable(order, func(a, b int) bool {
		return fracs[order[a]] > fracs[order[b]]
	})
	for k := 0; used < hundredths && k < len(order); k++ {
		units[order[k]]++
		used++
	}

	var out domain.RatioVector
	for i, u := range units {
		out[i] = float64(u) / hundredths
	}
	return out, nil
}

// DeriveAllocation spreads totalPlanned over the buckets by ratio. No rounding.
func DeriveAllocation(r domain.RatioVector, totalPlanned float64) domain.AllocationVector {
	var out domain.AllocationVector
	for i, x := range r {
		out[i] = x * totalPlanned
	}
	return out
}

// Diff returns final minus planned per bucket, rounded to two decimals.
func Diff(planned, final domain.RatioVector) [domain.BucketCount]float64 {
	var out [domain.BucketCount]float64
	for i := range out {
		out[i] = Round2(final[i] - planned[i])
	}
	return out
}

func Round2(v float64) float64 {
	r := math.Round(v*hundredths) / hundredths
	if r == 0 {
		return 0 // normalize -0
	}
	return r
}
