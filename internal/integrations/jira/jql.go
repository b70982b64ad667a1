package jira

import (
	"fmt"
	"strings"

	"capacityreport/internal/domain"
)

const jqlDateLayout = "2006-01-02"

// BuildJQL returns the JQL selecting the candidates for one query kind.
// The classifier has the final say; queries only narrow what is fetched.
func BuildJQL(cfg Config, q IssueQuery) (string, error) {
	if strings.TrimSpace(q.Project) == "" {
		return "", fmt.Errorf("building jql: empty project")
	}

	est := jqlQuote(cfg.JiraEstimateJQL)
	epic := jqlQuote(cfg.JiraEpicLinkJQL)
	wt := jqlQuote(cfg.JiraWorkTypeJQL)
	ro := jqlQuote(domain.WorkTypeReleaseOperations)
	mt := jqlQuote(domain.WorkTypeMaintenance)
	ti := jqlQuote(domain.WorkTypeTechnicalImprovement)

	clauses := []string{"project = " + jqlQuote(q.Project)}
	if len(cfg.JiraExcludedIssueTypes) > 0 {
		clauses = append(clauses, "issuetype not in ("+jqlList(cfg.JiraExcludedIssueTypes)+")")
	}
	clauses = append(clauses,
		"resolved >= "+jqlQuote(q.From.Format(jqlDateLayout)),
		"resolved < "+jqlQuote(q.To.Format(jqlDateLayout)),
	)

	switch q.Kind {
	case domain.QueryFeatureWork:
		clauses = append(clauses, est+" is not EMPTY", epic+" is not EMPTY")
	case domain.QueryReleaseOperations:
		clauses = append(clauses, est+" is not EMPTY", epic+" is EMPTY",
			wt+" = "+ro, wt+" not in ("+mt+", "+ti+")")
	case domain.QueryMaintenance:
		clauses = append(clauses, est+" is not EMPTY", epic+" is EMPTY",
			wt+" = "+mt, wt+" not in ("+ro+", "+ti+")")
	case domain.QueryStandalone:
		clauses = append(clauses, est+" is not EMPTY", epic+" is EMPTY",
			"("+wt+" not in ("+ro+", "+mt+") OR "+wt+" is EMPTY)")
	case domain.QueryMultiTagged:
		pair := func(a, b string) string { return "(" + wt + " = " + a + " AND " + wt + " = " + b + ")" }
		clauses = append(clauses, est+" is not EMPTY",
			"("+pair(ro, mt)+" OR "+pair(ro, ti)+" OR "+pair(mt, ti)+")")
	case domain.QueryMissingEstimate:
		clauses = append(clauses, est+" is EMPTY")
		if len(cfg.JiraIgnoredResolutions) > 0 {
			clauses = append(clauses, "resolution not in ("+jqlList(cfg.JiraIgnoredResolutions)+")")
		}
	default:
		return "", fmt.Errorf("building jql: unknown query kind %d", q.Kind)
	}

	return strings.Join(clauses, " AND ") + " ORDER BY key ASC", nil
}

func jqlQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(strings.TrimSpace(s)) + `"`
}

func jqlList(vals []string) string {
	quoted := make([]string, 0, len(vals))
	for _, v := range vals {
		if strings.TrimSpace(v) == "" {
			continue
		}
		quoted = append(quoted, jqlQuote(v))
	}
	return strings.Join(quoted, ", ")
}
