package domain

import (
	"strconv"
	"strings"
)

type Bucket int

const (
	FeatureWork Bucket = iota
	ReleaseOperations
	Maintenance
	Standalone
)

// BucketCount is the number of capacity buckets; vectors are indexed by Bucket.
const BucketCount = 4

var Buckets = [BucketCount]Bucket{FeatureWork, ReleaseOperations, Maintenance, Standalone}

func (b Bucket) String() string {
	switch b {
	case FeatureWork:
		return "Feature work"
	case ReleaseOperations:
		return "Release operations"
	case Maintenance:
		return "Maintenance"
	case Standalone:
		return "Standalone"
	default:
		return "Bucket(" + strconv.Itoa(int(b)) + ")"
	}
}

// AllocationVector holds one non-negative amount (FTE or story points) per bucket.
type AllocationVector [BucketCount]float64

func (v AllocationVector) Sum() float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}

func (v AllocationVector) IsZero() bool {
	return v.Sum() <= 0
}

// RatioVector holds per-bucket proportions rounded to hundredths.
type RatioVector [BucketCount]float64

func (r RatioVector) Sum() float64 {
	var s float64
	for _, x := range r {
		s += x
	}
	return s
}

// FormatVector renders a vector as comma separated values, the storage format for runs.
func FormatVector(v [BucketCount]float64) string {
	parts := make([]string, 0, BucketCount)
	for _, x := range v {
		parts = append(parts, strconv.FormatFloat(x, 'f', -1, 64))
	}
	return strings.Join(parts, ",")
}

// ParseVector is the inverse of FormatVector. Missing trailing entries stay zero.
func ParseVector(s string) ([BucketCount]float64, error) {
	var out [BucketCount]float64
	s = strings.TrimSpace(s)
	if s == "" {
		return out, nil
	}
	for i, part := range strings.Split(s, ",") {
		if i >= BucketCount {
			break
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}
