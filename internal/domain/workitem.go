package domain

import (
	"strings"
	"time"
)

// Work-type tag values as they appear on tracker issues.
const (
	WorkTypeReleaseOperations    = "Release Operations"
	WorkTypeMaintenance          = "Maintenance"
	WorkTypeTechnicalImprovement = "Technical Improvement"
)

type WorkItem struct {
	Key           string
	Summary       string
	Status        string
	Resolution    string
	Created       time.Time
	Reporter      string
	Assignee      string
	WorkTypes     []string // zero or more work-type tags
	HasEpicLink   bool
	HasParentLink bool
	Estimate      *float64 // story points; nil when the field is empty
	URL           string   // tracker browse link
}

func (w WorkItem) HasEstimate() bool {
	return w.Estimate != nil
}

// EstimateValue returns the estimate or 0 when unset.
func (w WorkItem) EstimateValue() float64 {
	if w.Estimate == nil {
		return 0
	}
	return *w.Estimate
}

// HasWorkType reports whether the item carries tag, ignoring case and surrounding space.
func (w WorkItem) HasWorkType(tag string) bool {
	for _, t := range w.WorkTypes {
		if strings.EqualFold(strings.TrimSpace(t), tag) {
			return true
		}
	}
	return false
}

// SpecialWorkTypes returns how many of the three recognized work-type tags the item carries.
func (w WorkItem) SpecialWorkTypes() int {
	n := 0
	for _, tag := range []string{WorkTypeReleaseOperations, WorkTypeMaintenance, WorkTypeTechnicalImprovement} {
		if w.HasWorkType(tag) {
			n++
		}
	}
	return n
}

func Estimate(v float64) *float64 {
	return &v
}
