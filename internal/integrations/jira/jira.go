package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"capacityreport/internal/domain"

	"golang.org/x/time/rate"
)

const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type searchResponse struct {
	StartAt    int             `json:"startAt"`
	MaxResults int             `json:"maxResults"`
	Total      int             `json:"total"`
	Issues     []issueResponse `json:"issues"`
}

type issueResponse struct {
	Key    string                     `json:"key"`
	Fields map[string]json.RawMessage `json:"fields"`
}

type namedField struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Value       string `json:"value"`
}

type myselfResponse struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// NewClient builds a Jira client. A nil httpClient uses the shared external client.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = externalHTTPClient
	}
	limit := rate.Inf
	if cfg.JiraRequestsPerSecond > 0 {
		limit = rate.Limit(cfg.JiraRequestsPerSecond)
	}
	return &Client{
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.JiraURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Authenticate checks the token against /myself and returns the account display name.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	body, status, err := c.get(ctx, "/rest/api/2/myself", nil)
	if err != nil {
		return "", fmt.Errorf("checking jira credentials: %w", err)
	}
	if status != http.StatusOK {
		log.Printf("jira auth failed status=%d", status)
		return "", fmt.Errorf("%w: Jira API returned %d: %s", domain.ErrAuthentication, status, truncate(string(body), 200))
	}
	var me myselfResponse
	if err := json.Unmarshal(body, &me); err != nil {
		return "", fmt.Errorf("parsing myself response: %w", err)
	}
	name := me.DisplayName
	if name == "" {
		name = me.Name
	}
	log.Printf("jira auth ok user=%s", name)
	return name, nil
}

// Fetch runs the JQL for one bucket-defining query.
func (c *Client) Fetch(ctx context.Context, q IssueQuery) ([]WorkItem, error) {
	jql, err := BuildJQL(c.cfg, q)
	if err != nil {
		return nil, err
	}
	log.Printf("jira fetch kind=%s project=%s", q.Kind, q.Project)
	return c.Search(ctx, jql)
}

// Search pages through /search until the result set or the configured cap is exhausted.
func (c *Client) Search(ctx context.Context, jql string) ([]WorkItem, error) {
	maxResults := c.cfg.JiraMaxResults
	pageSize := c.cfg.JiraPageSize
	fields := strings.Join(c.requestedFields(), ",")

	var all []WorkItem
	startAt := 0
	for {
		size := pageSize
		if remaining := maxResults - len(all); remaining < size {
			size = remaining
		}
		params := url.Values{}
		params.Set("jql", jql)
		params.Set("startAt", strconv.Itoa(startAt))
		params.Set("maxResults", strconv.Itoa(size))
		params.Set("fields", fields)

		body, status, err := c.get(ctx, "/rest/api/2/search", params)
		if err != nil {
			return nil, fmt.Errorf("searching issues: %w", err)
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, fmt.Errorf("%w: Jira API returned %d", domain.ErrAuthentication, status)
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("Jira API returned %d: %s", status, truncate(string(body), 500))
		}

		var page searchResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("parsing response: %w", err)
		}
		for _, issue := range page.Issues {
			all = append(all, c.convertIssue(issue))
		}

		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			break
		}
		if len(all) >= maxResults {
			log.Printf("jira search capped results=%d total=%d", len(all), page.Total)
			break
		}
	}

	log.Printf("jira search done total=%d", len(all))
	return all, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}
	apiURL := c.baseURL + path
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.JiraToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("executing request: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) requestedFields() []string {
	return []string{
		"summary", "status", "resolution", "created", "reporter", "assignee",
		c.cfg.JiraEstimateField, c.cfg.JiraEpicLinkField, c.cfg.JiraParentLinkField, c.cfg.JiraWorkTypeField,
	}
}

func (c *Client) convertIssue(issue issueResponse) WorkItem {
	f := issue.Fields
	item := WorkItem{
		Key:           issue.Key,
		Summary:       parseString(f["summary"]),
		Status:        parseNamed(f["status"]),
		Resolution:    parseNamed(f["resolution"]),
		Created:       parseJiraTime(parseString(f["created"])),
		Reporter:      parseNamed(f["reporter"]),
		Assignee:      parseNamed(f["assignee"]),
		WorkTypes:     parseOptionValues(f[c.cfg.JiraWorkTypeField]),
		HasEpicLink:   isPresent(f[c.cfg.JiraEpicLinkField]),
		HasParentLink: isPresent(f[c.cfg.JiraParentLinkField]),
		Estimate:      parseEstimate(issue.Key, f[c.cfg.JiraEstimateField]),
	}
	if c.cfg.JiraBrowseURL != "" {
		item.URL = strings.TrimRight(c.cfg.JiraBrowseURL, "/") + "/" + issue.Key
	}
	return item
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func parseString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// parseNamed reads user, status and resolution objects.
func parseNamed(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var nf namedField
	if err := json.Unmarshal(raw, &nf); err != nil {
		return parseString(raw)
	}
	switch {
	case nf.DisplayName != "":
		return nf.DisplayName
	case nf.Name != "":
		return nf.Name
	default:
		return nf.Value
	}
}

// parseOptionValues accepts single- or multi-select option fields, or plain strings.
func parseOptionValues(raw json.RawMessage) []string {
	if isNull(raw) {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		list = []json.RawMessage{raw}
	}
	var out []string
	for _, el := range list {
		if v := strings.TrimSpace(parseNamed(el)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func isPresent(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}
	trimmed := string(bytes.TrimSpace(raw))
	return trimmed != `""` && trimmed != "{}" && trimmed != "[]"
}

// parseEstimate returns nil for empty, non-numeric or negative values.
func parseEstimate(key string, raw json.RawMessage) *float64 {
	if isNull(raw) {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		parsed, perr := strconv.ParseFloat(strings.TrimSpace(parseString(raw)), 64)
		if perr != nil {
			log.Printf("jira issue=%s unparseable estimate %s", key, string(raw))
			return nil
		}
		v = parsed
	}
	if v < 0 {
		log.Printf("jira issue=%s negative estimate %v treated as missing", key, v)
		return nil
	}
	return &v
}

func parseJiraTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(jiraTimeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
