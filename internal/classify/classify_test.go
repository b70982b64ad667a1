package classify

import (
	"testing"

	"capacityreport/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(key string, est *float64, epic bool, tags ...string) domain.WorkItem {
	return domain.WorkItem{Key: key, Estimate: est, HasEpicLink: epic, WorkTypes: tags}
}

func keys(items []domain.WorkItem) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.Key)
	}
	return out
}

func TestClassifyMissingEstimateOnly(t *testing.T) {
	res := Classify([]domain.WorkItem{item("A-1", nil, false)})

	assert.Equal(t, []string{"A-1"}, keys(res.MissingEstimate))
	assert.Empty(t, res.MultiTagged)
	assert.Equal(t, 0, res.Classified())
}

func TestClassifyMissingEstimateIgnoresTags(t *testing.T) {
	res := Classify([]domain.WorkItem{
		item("A-1", nil, true),
		item("A-2", nil, false, domain.WorkTypeReleaseOperations, domain.WorkTypeMaintenance),
	})

	assert.Equal(t, []string{"A-1", "A-2"}, keys(res.MissingEstimate))
	assert.Empty(t, res.MultiTagged)
	assert.Equal(t, 0, res.Classified())
}

func TestClassifyMultiTagged(t *testing.T) {
	tests := []struct {
		name string
		tags []string
	}{
		{"release and maintenance", []string{domain.WorkTypeReleaseOperations, domain.WorkTypeMaintenance}},
		{"release and technical", []string{domain.WorkTypeReleaseOperations, domain.WorkTypeTechnicalImprovement}},
		{"maintenance and technical", []string{domain.WorkTypeMaintenance, domain.WorkTypeTechnicalImprovement}},
		{"all three", []string{domain.WorkTypeMaintenance, domain.WorkTypeTechnicalImprovement, domain.WorkTypeReleaseOperations}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Classify([]domain.WorkItem{item("A-1", domain.Estimate(3), true, tt.tags...)})
			assert.Equal(t, []string{"A-1"}, keys(res.MultiTagged))
			assert.Equal(t, 0, res.Classified())
		})
	}
}

func TestClassifyBuckets(t *testing.T) {
	items := []domain.WorkItem{
		item("F-1", domain.Estimate(5), true),
		item("F-2", domain.Estimate(2), true, domain.WorkTypeMaintenance),
		item("R-1", domain.Estimate(3), false, domain.WorkTypeReleaseOperations),
		item("M-1", domain.Estimate(1), false, "maintenance"),
		item("S-1", domain.Estimate(8), false),
		item("S-2", domain.Estimate(0.5), false, domain.WorkTypeTechnicalImprovement),
		item("S-3", domain.Estimate(1), false, "Customer Request"),
	}

	res := Classify(items)

	assert.Equal(t, []string{"F-1", "F-2"}, keys(res.Buckets[domain.FeatureWork]))
	assert.Equal(t, []string{"R-1"}, keys(res.Buckets[domain.ReleaseOperations]))
	assert.Equal(t, []string{"M-1"}, keys(res.Buckets[domain.Maintenance]))
	assert.Equal(t, []string{"S-1", "S-2", "S-3"}, keys(res.Buckets[domain.Standalone]))
	assert.Equal(t, domain.AllocationVector{7, 3, 1, 9.5}, res.Totals())
}

func TestClassifyParentLinkDoesNotMoveItems(t *testing.T) {
	it := item("S-1", domain.Estimate(2), false)
	it.HasParentLink = true

	res := Classify([]domain.WorkItem{it})

	assert.Equal(t, []string{"S-1"}, keys(res.Buckets[domain.Standalone]))
	assert.Empty(t, res.Buckets[domain.ReleaseOperations])
}

func TestClassifyDeduplicatesByKey(t *testing.T) {
	r := item("R-1", domain.Estimate(3), false, domain.WorkTypeReleaseOperations)

	res := Classify([]domain.WorkItem{r, r, r})

	require.Len(t, res.Buckets[domain.ReleaseOperations], 1)
	assert.Equal(t, 3.0, res.Totals()[domain.ReleaseOperations])
}

func TestClassifyIsExhaustiveAndDisjoint(t *testing.T) {
	tagSets := [][]string{
		nil,
		{domain.WorkTypeReleaseOperations},
		{domain.WorkTypeMaintenance},
		{domain.WorkTypeTechnicalImprovement},
		{domain.WorkTypeReleaseOperations, domain.WorkTypeMaintenance},
		{"Other"},
	}
	var items []domain.WorkItem
	n := 0
	for _, tags := range tagSets {
		for _, epic := range []bool{false, true} {
			for _, est := range []*float64{nil, domain.Estimate(1)} {
				n++
				items = append(items, item("K-"+string(rune('A'+n)), est, epic, tags...))
			}
		}
	}

	res := Classify(items)

	seen := map[string]int{}
	for _, b := range res.Buckets {
		for _, it := range b {
			seen[it.Key]++
		}
	}
	for _, it := range res.MissingEstimate {
		seen[it.Key]++
	}
	for _, it := range res.MultiTagged {
		seen[it.Key]++
	}
	require.Len(t, seen, len(items))
	for k, c := range seen {
		assert.Equalf(t, 1, c, "item %s appears %d times", k, c)
	}
	for _, it := range res.MissingEstimate {
		assert.False(t, it.HasEstimate())
	}
}
