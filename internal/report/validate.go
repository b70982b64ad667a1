package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"capacityreport/internal/domain"
)

// Request is a report order as typed by a user. Planned values stay raw
// strings until validation so the first bad entry can be reported.
type Request struct {
	Team        string
	Quarter     string
	PlannedFTE  []string
	PlannedSP   []string
	RequestedBy string
}

// ValidationError carries a user-facing message and unwraps to one of the
// domain sentinels.
type ValidationError struct {
	Kind    error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Kind }

type validRequest struct {
	Team       string
	Quarter    domain.QuarterRange
	PlannedFTE AllocationVector
	PlannedSP  AllocationVector
}

func validate(cfg Config, req Request) (validRequest, error) {
	team := strings.TrimSpace(req.Team)
	if !cfg.IsValidTeam(team) {
		return validRequest{}, &ValidationError{
			Kind: domain.ErrInvalidTeam,
			Message: fmt.Sprintf("You have entered invalid team name %q. Try one from the following list: %s",
				team, strings.Join(cfg.Teams, ", ")),
		}
	}

	label := strings.TrimSpace(req.Quarter)
	quarter, ok := cfg.Quarter(label)
	if !ok {
		return validRequest{}, &ValidationError{
			Kind: domain.ErrInvalidQuarter,
			Message: fmt.Sprintf("You have entered invalid quarter %q. Try one from the following list: %s",
				label, strings.Join(cfg.QuarterLabels(), ", ")),
		}
	}

	fte, err := parsePlanned("FTE", req.PlannedFTE)
	if err != nil {
		return validRequest{}, err
	}
	sp, err := parsePlanned("SP", req.PlannedSP)
	if err != nil {
		return validRequest{}, err
	}

	return validRequest{Team: team, Quarter: quarter, PlannedFTE: fte, PlannedSP: sp}, nil
}

func parsePlanned(what string, raw []string) (AllocationVector, error) {
	var v AllocationVector
	if len(raw) != domain.BucketCount {
		return v, &ValidationError{
			Kind:    domain.ErrInvalidNumericInput,
			Message: fmt.Sprintf("Expected %d planned %s values, got %d", domain.BucketCount, what, len(raw)),
		}
	}
	for i, s := range raw {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return v, &ValidationError{
				Kind: domain.ErrInvalidNumericInput,
				Message: fmt.Sprintf("Invalid value for planned %s on place %d (%s): %q is not a non-negative number",
					what, i+1, domain.Buckets[i], s),
			}
		}
		v[i] = f
	}
	return v, nil
}
