// Package app wires configuration, storage and integrations into the
// capacityreport command line.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"capacityreport/internal/config"
	"capacityreport/internal/domain"
	"capacityreport/internal/httpx"
	"capacityreport/internal/integrations/jira"
	"capacityreport/internal/integrations/llm"
	"capacityreport/internal/integrations/sheets"
	slackbot "capacityreport/internal/integrations/slack"
	"capacityreport/internal/report"
	"capacityreport/internal/schedule"
	"capacityreport/internal/storage/sqlite"

	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
)

const (
	cliRequester        = "cli"
	defaultHistoryLimit = 10
)

func Main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree. Configuration is read when a
// subcommand runs, so flag errors surface before config errors.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "capacityreport",
		Short: "Quarterly planned versus actual capacity reports from Jira",
		Long: `capacityreport compares a team's planned effort split with the story points
it actually resolved in a quarter, per work type:

  1. Work packages       issues linked to an epic
  2. Release operations  issues tagged "Release Operations"
  3. Maintenance         issues tagged "Maintenance"
  4. Standalone          everything else

Configuration is read from config.yaml (or CONFIG_PATH) and environment variables.`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newGenerateCmd(), newHistoryCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Slack bot and the report scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newGenerateCmd() *cobra.Command {
	var req report.Request
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build and publish one capacity report",
		Example: `  capacityreport generate --team RHELBLD --quarter CY22Q1 \
    --fte 2,1,1,0.5 --sp 40,20,20,10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd.Context(), cmd.OutOrStdout(), req)
		},
	}
	cmd.Flags().StringVar(&req.Team, "team", "", "Jira project key of the team")
	cmd.Flags().StringVar(&req.Quarter, "quarter", "", "configured quarter label, e.g. CY22Q1")
	cmd.Flags().StringSliceVar(&req.PlannedFTE, "fte", nil, "planned FTE per bucket, comma separated")
	cmd.Flags().StringSliceVar(&req.PlannedSP, "sp", nil, "planned story points per bucket, comma separated")
	cmd.Flags().StringVar(&req.RequestedBy, "requested-by", cliRequester, "name recorded in the report history")
	for _, name := range []string{"team", "quarter", "fte", "sp"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var team string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently generated reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd.OutOrStdout(), team, limit)
		},
	}
	cmd.Flags().StringVar(&team, "team", "", "only show reports for this team")
	cmd.Flags().IntVar(&limit, "limit", defaultHistoryLimit, "maximum number of reports to list")
	return cmd
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSecs)
	log.Printf(
		"Config loaded. Teams=%s Quarters=%d Managers=%d Publisher=%s LLM=%t Schedule=%q Timezone=%s ExternalHTTPTimeout=%s",
		strings.Join(cfg.Teams, ","),
		len(cfg.Quarters),
		len(cfg.ManagerSlackIDs),
		cfg.Publisher,
		cfg.LLMConfigured(),
		cfg.ReportSchedule,
		cfg.Timezone,
		appliedHTTPTimeout,
	)
	return cfg, nil
}

func openDB(cfg config.Config) (*sql.DB, error) {
	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	log.Printf("Database initialized at %s", cfg.DBPath)
	return db, nil
}

// buildPublisher picks the spreadsheet backend when it is configured and
// falls back to markdown files otherwise.
func buildPublisher(ctx context.Context, cfg config.Config) (report.Publisher, error) {
	if cfg.Publisher == config.PublisherSheets {
		p, err := sheets.NewPublisher(ctx, cfg)
		if err != nil {
			return nil, err
		}
		log.Printf("Publishing to Google Sheets folder=%q", cfg.GoogleDriveFolderID)
		return p, nil
	}
	if err := os.MkdirAll(cfg.ReportOutputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating report output dir: %w", err)
	}
	log.Printf("Publishing markdown files to %s", cfg.ReportOutputDir)
	return report.NewFilePublisher(cfg.ReportOutputDir), nil
}

func buildSummarizer(cfg config.Config) report.Summarizer {
	if !cfg.LLMConfigured() {
		log.Println("LLM summary disabled (anthropic_api_key not set)")
		return nil
	}
	return llm.NewSummarizer(cfg)
}

func newAssembler(ctx context.Context, cfg config.Config, db *sql.DB) (*report.Assembler, error) {
	publisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tracker := jira.NewClient(cfg, nil)
	return report.NewAssembler(cfg, tracker, publisher, buildSummarizer(cfg), sqlite.RunStore{DB: db}), nil
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.SlackConfigured() {
		return fmt.Errorf("serve needs slack_bot_token and slack_app_token")
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	assembler, err := newAssembler(ctx, cfg, db)
	if err != nil {
		return err
	}

	api := slack.New(
		cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
	)

	schedule.StartReportScheduler(ctx, cfg, assembler, sqlite.RunStore{DB: db},
		slackbot.ChannelNotifier{API: api, ChannelID: cfg.ReportChannelID})

	log.Println("Starting Capacity Report Bot...")
	if err := slackbot.StartSlackBot(cfg, db, api, assembler); err != nil {
		return fmt.Errorf("slack bot: %w", err)
	}
	return nil
}

func runGenerate(ctx context.Context, out io.Writer, req report.Request) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	assembler, err := newAssembler(ctx, cfg, db)
	if err != nil {
		return err
	}
	res, err := assembler.Create(ctx, req)
	if err != nil {
		return err
	}
	printResult(out, cfg, res)
	return nil
}

func printResult(out io.Writer, cfg config.Config, res report.Result) {
	fmt.Fprintf(out, "Capacity report %s %s: %s\n", res.Quarter, res.Team, res.URL)
	if res.RunID > 0 {
		fmt.Fprintf(out, "Run id: %d\n", res.RunID)
	}
	fmt.Fprintln(out, "Bucket\tPlanned\tActual\tDiff\tSP")
	for i := range domain.Buckets {
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n",
			cfg.MetricNames[i],
			formatRatio(res.PlannedRatio[i]),
			formatRatio(res.FinalRatio[i]),
			strconv.FormatFloat(res.Diff[i], 'f', 2, 64),
			strconv.FormatFloat(res.FinalSP[i], 'f', -1, 64))
	}
	if n := len(res.MissingEstimate); n > 0 {
		fmt.Fprintf(out, "Left out without story points: %d\n", n)
	}
	if n := len(res.MultiTagged); n > 0 {
		fmt.Fprintf(out, "Left out with several work types: %d\n", n)
	}
	if s := strings.TrimSpace(res.Summary); s != "" {
		fmt.Fprintf(out, "\n%s\n", s)
	}
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func runHistory(out io.Writer, team string, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if team != "" && !cfg.IsValidTeam(team) {
		return fmt.Errorf("unknown team %q, configured teams: %s", team, strings.Join(cfg.Teams, ", "))
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := sqlite.RecentReportRuns(db, team, limit)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No capacity reports have been generated yet.")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(out, "%d\t%s\t%s\t%s\t%s\t%s\n",
			run.ID, run.CreatedAt.In(cfg.Location).Format("2006-01-02 15:04"),
			run.Quarter, run.Team, run.RequestedBy, run.URL)
	}
	return nil
}
