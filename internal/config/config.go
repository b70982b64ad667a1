package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"capacityreport/internal/domain"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

const (
	PublisherSheets = "sheets"
	PublisherFile   = "file"
)

const quarterDateLayout = "2006-01-02"

var defaultMetricNames = []string{
	"Work packages",
	"Release operations",
	"Maintenance",
	"Standalone",
}

var defaultColors = map[string]string{
	"dark_grey":    "#999999",
	"grey":         "#cccccc",
	"light_grey":   "#efefef",
	"orange":       "#f6b26b",
	"light_orange": "#fce5cd",
	"red":          "#e06666",
	"light_red":    "#f4cccc",
}

var defaultIgnoredResolutions = []string{
	"Can't Do",
	"Cannot Reproduce",
	"Duplicate",
	"Duplicate Ticket",
	"Not a Bug",
	"Obsolete",
	"Unresolved",
	"Won't Do",
}

// ScheduledReport is a team whose report is generated by the cron scheduler.
type ScheduledReport struct {
	Team       string    `yaml:"team"`
	PlannedFTE []float64 `yaml:"planned_fte"`
	PlannedSP  []float64 `yaml:"planned_sp"`
}

type Config struct {
	JiraURL   string `yaml:"jira_url"`
	JiraToken string `yaml:"jira_token"`

	// Custom field ids as returned by the REST API.
	JiraEstimateField   string `yaml:"jira_estimate_field"`
	JiraEpicLinkField   string `yaml:"jira_epic_link_field"`
	JiraParentLinkField string `yaml:"jira_parent_link_field"`
	JiraWorkTypeField   string `yaml:"jira_work_type_field"`

	// Field names as written in JQL.
	JiraEstimateJQL   string `yaml:"jira_estimate_jql"`
	JiraEpicLinkJQL   string `yaml:"jira_epic_link_jql"`
	JiraParentLinkJQL string `yaml:"jira_parent_link_jql"`
	JiraWorkTypeJQL   string `yaml:"jira_work_type_jql"`

	JiraExcludedIssueTypes  []string `yaml:"jira_excluded_issue_types"`
	JiraIgnoredResolutions  []string `yaml:"jira_ignored_resolutions"`
	JiraMaxResults          int      `yaml:"jira_max_results"`
	JiraPageSize            int      `yaml:"jira_page_size"`
	JiraRequestsPerSecond   float64  `yaml:"jira_requests_per_second"`
	JiraBrowseURL           string   `yaml:"jira_browse_url"`
	ExternalHTTPTimeoutSecs int      `yaml:"external_http_timeout_seconds"`

	Teams       []string             `yaml:"teams"`
	Quarters    map[string][2]string `yaml:"quarters"`
	MetricNames []string             `yaml:"metric_names"`
	Colors      map[string]string    `yaml:"colors"`

	Publisher             string `yaml:"publisher"`
	GoogleCredentialsPath string `yaml:"google_credentials_path"`
	GoogleDriveFolderID   string `yaml:"google_drive_folder_id"`
	ReportOutputDir       string `yaml:"report_output_dir"`
	DBPath                string `yaml:"db_path"`

	SlackBotToken   string   `yaml:"slack_bot_token"`
	SlackAppToken   string   `yaml:"slack_app_token"`
	ManagerSlackIDs []string `yaml:"manager_slack_ids"`
	ReportChannelID string   `yaml:"report_channel_id"`

	ReportSchedule   string            `yaml:"report_schedule"`
	ScheduledReports []ScheduledReport `yaml:"scheduled_reports"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	LLMModel        string `yaml:"llm_model"`

	Timezone string         `yaml:"timezone"`
	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML

	quarterRanges map[string]domain.QuarterRange
	palette       map[string]colorful.Color
}

// LoadConfig reads configuration and exits the process when it is invalid.
func LoadConfig() Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("%v", err)
	}
	return cfg
}

// Load reads config.yaml (or CONFIG_PATH), applies environment overrides and
// defaults, and validates the result.
func Load() (Config, error) {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error parsing %s: %w", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.JiraURL, "JIRA_URL")
	envOverride(&cfg.JiraToken, "JIRA_TOKEN")
	envOverride(&cfg.JiraEstimateField, "JIRA_ESTIMATE_FIELD")
	envOverride(&cfg.JiraEpicLinkField, "JIRA_EPIC_LINK_FIELD")
	envOverride(&cfg.JiraParentLinkField, "JIRA_PARENT_LINK_FIELD")
	envOverride(&cfg.JiraWorkTypeField, "JIRA_WORK_TYPE_FIELD")
	envOverride(&cfg.JiraBrowseURL, "JIRA_BROWSE_URL")
	if err := envOverrideInt(&cfg.JiraMaxResults, "JIRA_MAX_RESULTS"); err != nil {
		return Config{}, err
	}
	if err := envOverrideInt(&cfg.JiraPageSize, "JIRA_PAGE_SIZE"); err != nil {
		return Config{}, err
	}
	if err := envOverrideFloat(&cfg.JiraRequestsPerSecond, "JIRA_REQUESTS_PER_SECOND"); err != nil {
		return Config{}, err
	}
	if err := envOverrideInt(&cfg.ExternalHTTPTimeoutSecs, "EXTERNAL_HTTP_TIMEOUT_SECONDS"); err != nil {
		return Config{}, err
	}
	envOverrideList(&cfg.Teams, "TEAMS")
	envOverride(&cfg.Publisher, "PUBLISHER")
	envOverride(&cfg.GoogleCredentialsPath, "GOOGLE_CREDENTIALS_PATH")
	envOverride(&cfg.GoogleDriveFolderID, "GOOGLE_DRIVE_FOLDER_ID")
	envOverride(&cfg.ReportOutputDir, "REPORT_OUTPUT_DIR")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverrideList(&cfg.ManagerSlackIDs, "MANAGER_SLACK_IDS")
	envOverride(&cfg.ReportChannelID, "REPORT_CHANNEL_ID")
	envOverrideAllowEmpty(&cfg.ReportSchedule, "REPORT_SCHEDULE")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.Timezone, "TIMEZONE")

	return Prepare(cfg)
}

// Prepare fills defaults and validates cfg. Load calls it after reading the
// file and environment; tests use it to build configs in memory.
func Prepare(cfg Config) (Config, error) {
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.JiraEstimateField == "" {
		cfg.JiraEstimateField = "customfield_12310243"
	}
	if cfg.JiraEpicLinkField == "" {
		cfg.JiraEpicLinkField = "customfield_12311140"
	}
	if cfg.JiraParentLinkField == "" {
		cfg.JiraParentLinkField = "customfield_12313140"
	}
	if cfg.JiraWorkTypeField == "" {
		cfg.JiraWorkTypeField = "customfield_12320040"
	}
	if cfg.JiraEstimateJQL == "" {
		cfg.JiraEstimateJQL = "Story Points"
	}
	if cfg.JiraEpicLinkJQL == "" {
		cfg.JiraEpicLinkJQL = "Epic Link"
	}
	if cfg.JiraParentLinkJQL == "" {
		cfg.JiraParentLinkJQL = "Parent Link"
	}
	if cfg.JiraWorkTypeJQL == "" {
		cfg.JiraWorkTypeJQL = "EXD-WorkType"
	}
	if cfg.JiraExcludedIssueTypes == nil {
		cfg.JiraExcludedIssueTypes = []string{"Ticket", "Sub-task", "Epic"}
	}
	if cfg.JiraIgnoredResolutions == nil {
		cfg.JiraIgnoredResolutions = append([]string(nil), defaultIgnoredResolutions...)
	}
	if cfg.JiraMaxResults == 0 {
		cfg.JiraMaxResults = 10000
	}
	if cfg.JiraPageSize == 0 {
		cfg.JiraPageSize = 100
	}
	if cfg.JiraRequestsPerSecond == 0 {
		cfg.JiraRequestsPerSecond = 5
	}
	if cfg.JiraBrowseURL == "" && cfg.JiraURL != "" {
		cfg.JiraBrowseURL = strings.TrimRight(cfg.JiraURL, "/") + "/browse/"
	}
	if cfg.ExternalHTTPTimeoutSecs == 0 {
		cfg.ExternalHTTPTimeoutSecs = defaultExternalHTTPTimeoutSeconds
	}
	if len(cfg.MetricNames) == 0 {
		cfg.MetricNames = append([]string(nil), defaultMetricNames...)
	}
	if cfg.Colors == nil {
		cfg.Colors = make(map[string]string, len(defaultColors))
	}
	for name, hex := range defaultColors {
		if _, ok := cfg.Colors[name]; !ok {
			cfg.Colors[name] = hex
		}
	}
	if cfg.Publisher == "" {
		if cfg.GoogleCredentialsPath != "" {
			cfg.Publisher = PublisherSheets
		} else {
			cfg.Publisher = PublisherFile
		}
	}
	if cfg.ReportOutputDir == "" {
		cfg.ReportOutputDir = "./reports"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./capacityreport.db"
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = "claude-sonnet-4-5-20250929"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
}

func (c *Config) validate() error {
	required := map[string]string{
		"jira_url":   c.JiraURL,
		"jira_token": c.JiraToken,
	}
	for _, name := range sortedKeys(required) {
		if required[name] == "" {
			return fmt.Errorf("required config '%s' is not set (via config.yaml or env var)", name)
		}
	}
	if len(c.Teams) == 0 {
		return errors.New("at least one team must be configured in 'teams'")
	}
	if len(c.Quarters) == 0 {
		return errors.New("at least one quarter must be configured in 'quarters'")
	}
	if len(c.MetricNames) != domain.BucketCount {
		return fmt.Errorf("invalid metric_names: need %d names, got %d", domain.BucketCount, len(c.MetricNames))
	}

	if strings.EqualFold(c.Timezone, "Local") {
		c.Location = time.Local
	} else {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
		}
		c.Location = loc
	}

	c.quarterRanges = make(map[string]domain.QuarterRange, len(c.Quarters))
	for label, bounds := range c.Quarters {
		start, err := time.ParseInLocation(quarterDateLayout, strings.TrimSpace(bounds[0]), c.Location)
		if err != nil {
			return fmt.Errorf("invalid start date for quarter '%s': %w", label, err)
		}
		end, err := time.ParseInLocation(quarterDateLayout, strings.TrimSpace(bounds[1]), c.Location)
		if err != nil {
			return fmt.Errorf("invalid end date for quarter '%s': %w", label, err)
		}
		if !start.Before(end) {
			return fmt.Errorf("invalid quarter '%s': start %s is not before end %s", label, bounds[0], bounds[1])
		}
		c.quarterRanges[label] = domain.QuarterRange{Label: label, Start: start, End: end}
	}

	c.palette = make(map[string]colorful.Color, len(c.Colors))
	for name, hex := range c.Colors {
		col, err := colorful.Hex(strings.TrimSpace(hex))
		if err != nil {
			return fmt.Errorf("invalid color '%s' (%s): %w", name, hex, err)
		}
		c.palette[name] = col
	}

	switch c.Publisher {
	case PublisherSheets:
		if c.GoogleCredentialsPath == "" {
			return errors.New("google_credentials_path is required when publisher=sheets")
		}
	case PublisherFile:
	default:
		return fmt.Errorf("publisher must be '%s' or '%s', got '%s'", PublisherSheets, PublisherFile, c.Publisher)
	}

	if c.JiraMaxResults < 1 {
		return fmt.Errorf("invalid jira_max_results '%d': must be >= 1", c.JiraMaxResults)
	}
	if c.JiraPageSize < 1 || c.JiraPageSize > 1000 {
		return fmt.Errorf("invalid jira_page_size '%d': must be between 1 and 1000", c.JiraPageSize)
	}
	if c.JiraRequestsPerSecond < 0 {
		return fmt.Errorf("invalid jira_requests_per_second '%f': must be >= 0", c.JiraRequestsPerSecond)
	}
	if c.ExternalHTTPTimeoutSecs < 5 {
		return fmt.Errorf("invalid external_http_timeout_seconds '%d': must be >= 5", c.ExternalHTTPTimeoutSecs)
	}

	if s := strings.TrimSpace(c.ReportSchedule); s != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(s); err != nil {
			return fmt.Errorf("invalid report_schedule '%s': %w", s, err)
		}
	}
	for i, sr := range c.ScheduledReports {
		if !c.IsValidTeam(sr.Team) {
			return fmt.Errorf("scheduled_reports[%d]: unknown team '%s'", i, sr.Team)
		}
		if len(sr.PlannedFTE) != domain.BucketCount || len(sr.PlannedSP) != domain.BucketCount {
			return fmt.Errorf("scheduled_reports[%d]: planned_fte and planned_sp need %d values each", i, domain.BucketCount)
		}
	}
	return nil
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideFloat(field *float64, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideList(field *[]string, envKey string) {
	raw := os.Getenv(envKey)
	if raw == "" {
		return
	}
	*field = nil
	for _, v := range strings.Split(raw, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			*field = append(*field, v)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c Config) IsValidTeam(team string) bool {
	for _, t := range c.Teams {
		if t == team {
			return true
		}
	}
	return false
}

// Quarter returns the [start, end) range configured for label.
func (c Config) Quarter(label string) (domain.QuarterRange, bool) {
	q, ok := c.quarterRanges[label]
	return q, ok
}

// QuarterLabels returns configured quarter labels, newest first.
func (c Config) QuarterLabels() []string {
	ranges := make([]domain.QuarterRange, 0, len(c.quarterRanges))
	for _, q := range c.quarterRanges {
		ranges = append(ranges, q)
	}
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].Start.Equal(ranges[j].Start) {
			return ranges[i].Label > ranges[j].Label
		}
		return ranges[i].Start.After(ranges[j].Start)
	})
	labels := make([]string, 0, len(ranges))
	for _, q := range ranges {
		labels = append(labels, q.Label)
	}
	return labels
}

// LastClosedQuarter returns the most recent quarter whose end is not after now.
func (c Config) LastClosedQuarter(now time.Time) (domain.QuarterRange, bool) {
	var best domain.QuarterRange
	found := false
	for _, q := range c.quarterRanges {
		if q.End.After(now) {
			continue
		}
		if !found || q.End.After(best.End) {
			best = q
			found = true
		}
	}
	return best, found
}

// Color returns the parsed palette entry for name.
func (c Config) Color(name string) (colorful.Color, bool) {
	col, ok := c.palette[name]
	return col, ok
}

func (c Config) IsManagerID(userID string) bool {
	for _, id := range c.ManagerSlackIDs {
		if strings.TrimSpace(id) == userID {
			return true
		}
	}
	return false
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackAppToken != ""
}

func (c Config) LLMConfigured() bool {
	return c.AnthropicAPIKey != ""
}
