package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setMinimalValidConfigEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JIRA_URL", "https://issues.example.com/")
	t.Setenv("JIRA_TOKEN", "pat-test")
	t.Setenv("TEAMS", "RHELBLD, CLOUDX")
	t.Setenv("TIMEZONE", "UTC")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

const quartersYAML = `
quarters:
  CY22Q1: ["2022-01-01", "2022-04-01"]
  CY22Q2: ["2022-04-01", "2022-07-01"]
`

func TestLoadConfigFromEnvWithDefaults(t *testing.T) {
	setMinimalValidConfigEnv(t)
	t.Setenv("CONFIG_PATH", writeConfig(t, quartersYAML))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Teams) != 2 || cfg.Teams[1] != "CLOUDX" {
		t.Fatalf("unexpected teams: %v", cfg.Teams)
	}
	if cfg.JiraBrowseURL != "https://issues.example.com/browse/" {
		t.Fatalf("unexpected browse url default: %q", cfg.JiraBrowseURL)
	}
	if cfg.JiraMaxResults != 10000 || cfg.JiraPageSize != 100 {
		t.Fatalf("unexpected jira paging defaults: max=%d page=%d", cfg.JiraMaxResults, cfg.JiraPageSize)
	}
	if cfg.Publisher != PublisherFile {
		t.Fatalf("expected file publisher without google credentials, got %q", cfg.Publisher)
	}
	if cfg.ExternalHTTPTimeoutSecs != int(defaultExternalHTTPTimeout/time.Second) {
		t.Fatalf("unexpected external HTTP timeout default: %d", cfg.ExternalHTTPTimeoutSecs)
	}
	if len(cfg.MetricNames) != 4 {
		t.Fatalf("expected 4 default metric names, got %d", len(cfg.MetricNames))
	}
	if len(cfg.JiraIgnoredResolutions) == 0 {
		t.Fatal("expected default ignored resolutions")
	}
	if cfg.Location == nil || cfg.Location.String() != "UTC" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
	if _, ok := cfg.Color("dark_grey"); !ok {
		t.Fatal("expected default dark_grey color")
	}
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	cfgPath := writeConfig(t, `
jira_url: "https://yaml.example.com"
jira_token: "yaml-token"
teams: ["YAMLTEAM"]
publisher: "sheets"
google_credentials_path: "/etc/sa.json"
metric_names: ["WP", "RO", "MT", "SA"]
colors:
  orange: "#ff9900"
`+quartersYAML)

	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("JIRA_TOKEN", "env-token")
	t.Setenv("JIRA_PAGE_SIZE", "50")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.JiraURL != "https://yaml.example.com" {
		t.Fatalf("unexpected jira url: %q", cfg.JiraURL)
	}
	if cfg.JiraToken != "env-token" {
		t.Fatalf("expected env override for token, got %q", cfg.JiraToken)
	}
	if cfg.JiraPageSize != 50 {
		t.Fatalf("expected env override for page size, got %d", cfg.JiraPageSize)
	}
	if cfg.Publisher != PublisherSheets {
		t.Fatalf("unexpected publisher: %q", cfg.Publisher)
	}
	if cfg.MetricNames[2] != "MT" {
		t.Fatalf("unexpected metric names: %v", cfg.MetricNames)
	}
	orange, ok := cfg.Color("orange")
	if !ok || orange.Hex() != "#ff9900" {
		t.Fatalf("unexpected orange color: %v ok=%v", orange, ok)
	}
	if _, ok := cfg.Color("light_red"); !ok {
		t.Fatal("expected defaults to fill missing palette entries")
	}
}

func TestQuarterLookups(t *testing.T) {
	setMinimalValidConfigEnv(t)
	t.Setenv("CONFIG_PATH", writeConfig(t, quartersYAML))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	q, ok := cfg.Quarter("CY22Q1")
	if !ok {
		t.Fatal("expected CY22Q1 to be configured")
	}
	if q.Start.Format("2006-01-02") != "2022-01-01" || q.End.Format("2006-01-02") != "2022-04-01" {
		t.Fatalf("unexpected CY22Q1 range: %s - %s", q.Start, q.End)
	}
	if _, ok := cfg.Quarter("CY99Q9"); ok {
		t.Fatal("did not expect unknown quarter")
	}

	labels := cfg.QuarterLabels()
	if strings.Join(labels, ",") != "CY22Q2,CY22Q1" {
		t.Fatalf("expected newest quarter first, got %v", labels)
	}

	last, ok := cfg.LastClosedQuarter(time.Date(2022, 5, 10, 0, 0, 0, 0, time.UTC))
	if !ok || last.Label != "CY22Q1" {
		t.Fatalf("expected CY22Q1 as last closed quarter, got %q ok=%v", last.Label, ok)
	}
	if _, ok := cfg.LastClosedQuarter(time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC)); ok {
		t.Fatal("expected no closed quarter before the first quarter ends")
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing token",
			yaml:    quartersYAML,
			env:     map[string]string{"JIRA_TOKEN": ""},
			wantErr: "jira_token",
		},
		{
			name:    "bad quarter date",
			yaml:    "quarters:\n  CY22Q1: [\"2022-13-01\", \"2022-04-01\"]\n",
			wantErr: "quarter 'CY22Q1'",
		},
		{
			name:    "reversed quarter",
			yaml:    "quarters:\n  CY22Q1: [\"2022-04-01\", \"2022-01-01\"]\n",
			wantErr: "is not before end",
		},
		{
			name:    "bad color",
			yaml:    quartersYAML + "colors:\n  red: \"not-a-color\"\n",
			wantErr: "invalid color 'red'",
		},
		{
			name:    "sheets without credentials",
			yaml:    quartersYAML + "publisher: sheets\n",
			wantErr: "google_credentials_path",
		},
		{
			name:    "wrong metric count",
			yaml:    quartersYAML + "metric_names: [\"a\", \"b\"]\n",
			wantErr: "metric_names",
		},
		{
			name:    "bad schedule",
			yaml:    quartersYAML + "report_schedule: \"every day\"\n",
			wantErr: "report_schedule",
		},
		{
			name:    "unknown scheduled team",
			yaml:    quartersYAML + "scheduled_reports:\n  - team: NOPE\n    planned_fte: [1,1,1,1]\n    planned_sp: [1,1,1,1]\n",
			wantErr: "unknown team 'NOPE'",
		},
		{
			name:    "bad page size env",
			yaml:    quartersYAML,
			env:     map[string]string{"JIRA_PAGE_SIZE": "many"},
			wantErr: "JIRA_PAGE_SIZE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setMinimalValidConfigEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			t.Setenv("CONFIG_PATH", writeConfig(t, tt.yaml))

			_, err := Load()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestIsManagerID(t *testing.T) {
	cfg := Config{ManagerSlackIDs: []string{" U123 ", "U456"}}
	if !cfg.IsManagerID("U123") {
		t.Fatal("expected trimmed manager id to match")
	}
	if cfg.IsManagerID("U789") {
		t.Fatal("did not expect U789 to be a manager")
	}
}
