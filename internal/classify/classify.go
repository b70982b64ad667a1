// Package classify partitions tracker issues into capacity buckets.
package classify

import "capacityreport/internal/domain"

type Result struct {
	Buckets         [domain.BucketCount][]domain.WorkItem
	MissingEstimate []domain.WorkItem
	MultiTagged     []domain.WorkItem
}

// Classify assigns every item to exactly one of the four buckets or one of
// the two exclusion lists. Items sharing a key are counted once; the first
// occurrence wins.
func Classify(items []domain.WorkItem) Result {
	var res Result
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item.Key != "" {
			if seen[item.Key] {
				continue
			}
			seen[item.Key] = true
		}
		switch {
		case !item.HasEstimate():
			res.MissingEstimate = append(res.MissingEstimate, item)
		case item.SpecialWorkTypes() >= 2:
			res.MultiTagged = append(res.MultiTagged, item)
		default:
			b := BucketOf(item)
			res.Buckets[b] = append(res.Buckets[b], item)
		}
	}
	return res
}

// BucketOf returns the bucket for an estimated, singly tagged item.
// Epic links dominate work-type tags.
func BucketOf(item domain.WorkItem) domain.Bucket {
	switch {
	case item.HasEpicLink:
		return domain.FeatureWork
	case item.HasWorkType(domain.WorkTypeReleaseOperations):
		return domain.ReleaseOperations
	case item.HasWorkType(domain.WorkTypeMaintenance):
		return domain.Maintenance
	default:
		return domain.Standalone
	}
}

// Totals sums member estimates per bucket.
func (r Result) Totals() domain.AllocationVector {
	var v domain.AllocationVector
	for i, items := range r.Buckets {
		for _, item := range items {
			v[i] += item.EstimateValue()
		}
	}
	return v
}

func (r Result) Classified() int {
	n := 0
	for _, items := range r.Buckets {
		n += len(items)
	}
	return n
}
