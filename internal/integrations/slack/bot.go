// Package slackbot exposes capacity reports through Slack slash commands.
package slackbot

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"capacityreport/internal/storage/sqlite"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

const (
	reportTimeout = 10 * time.Minute
	historyLimit  = 10
)

type Bot struct {
	cfg     Config
	api     slackAPI
	db      *sql.DB
	creator ReportCreator
}

func NewBot(cfg Config, api slackAPI, db *sql.DB, creator ReportCreator) *Bot {
	return &Bot{cfg: cfg, api: api, db: db, creator: creator}
}

// StartSlackBot connects over Socket Mode and serves slash commands until
// the connection ends.
func StartSlackBot(cfg Config, db *sql.DB, api *slack.Client, creator ReportCreator) error {
	client := socketmode.New(api)
	bot := NewBot(cfg, api, db, creator)

	go func() {
		for evt := range client.Events {
			switch evt.Type {
			case socketmode.EventTypeSlashCommand:
				client.Ack(*evt.Request)
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				log.Printf("Slash command received: %s from user=%s channel=%s", cmd.Command, cmd.UserID, cmd.ChannelID)
				go bot.handleSlashCommand(cmd)
			case socketmode.EventTypeEventsAPI:
				client.Ack(*evt.Request)
				eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				go bot.handleEventsAPI(eventsAPIEvent)
			}
		}
	}()

	log.Println("Slack bot connected via Socket Mode")
	return client.Run()
}

func (b *Bot) handleSlashCommand(cmd slack.SlashCommand) {
	switch cmd.Command {
	case "/capacity-report":
		b.handleCapacityReport(cmd)
	case "/capacity-options":
		b.handleOptions(cmd)
	case "/capacity-history":
		b.handleHistory(cmd)
	case "/help":
		b.handleHelp(cmd)
	}
}

func (b *Bot) handleEventsAPI(event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MemberJoinedChannelEvent:
		b.handleMemberJoined(ev)
	}
}

func (b *Bot) handleMemberJoined(ev *slackevents.MemberJoinedChannelEvent) {
	log.Printf("member-joined user=%s channel=%s", ev.User, ev.Channel)

	intro := "Hi! I build quarterly capacity reports from Jira: planned versus actual effort per work type.\n\n" +
		"• `/capacity-options` shows the teams and quarters I know\n" +
		"• `/capacity-history` lists the latest reports\n" +
		"• `/help` shows all commands"

	_, _, err := b.api.PostMessage(ev.Channel,
		slack.MsgOptionText(intro, false),
		slack.MsgOptionPostEphemeral(ev.User),
	)
	if err != nil {
		log.Printf("member-joined intro error user=%s channel=%s: %v", ev.User, ev.Channel, err)
	}
}

func (b *Bot) handleCapacityReport(cmd slack.SlashCommand) {
	isManager, err := isManagerUser(b.api, b.cfg, cmd.UserID)
	if err != nil {
		b.postEphemeral(cmd, fmt.Sprintf("Error checking permissions: %v", err))
		log.Printf("capacity-report auth error user=%s: %v", cmd.UserID, err)
		return
	}
	if !isManager {
		b.postEphemeral(cmd, "Sorry, only managers can use this command.")
		log.Printf("capacity-report denied user=%s", cmd.UserID)
		return
	}

	req, err := parseReportArgs(cmd.Text, cmd.UserID)
	if err != nil {
		b.postEphemeral(cmd, fmt.Sprintf("%s.\n%s", capitalize(err.Error()), capacityReportUsage))
		return
	}

	b.postEphemeral(cmd, fmt.Sprintf("Generating capacity report for %s %s...", req.Team, req.Quarter))

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()
	res, err := b.creator.Create(ctx, req)
	if err != nil {
		log.Printf("capacity-report failed team=%s quarter=%s: %v", req.Team, req.Quarter, err)
		b.postEphemeral(cmd, userMessage(req, err))
		return
	}

	_, _, err = b.api.PostMessage(cmd.ChannelID, slack.MsgOptionText(formatReportResult(b.cfg, res), false))
	if err != nil {
		log.Printf("capacity-report post error channel=%s: %v", cmd.ChannelID, err)
		b.postEphemeral(cmd, fmt.Sprintf("Report created: %s", res.URL))
	}
}

func (b *Bot) handleOptions(cmd slack.SlashCommand) {
	b.postEphemeral(cmd, formatOptions(b.cfg))
}

func (b *Bot) handleHistory(cmd slack.SlashCommand) {
	team := strings.TrimSpace(cmd.Text)
	if team != "" && !b.cfg.IsValidTeam(team) {
		b.postEphemeral(cmd, fmt.Sprintf("Unknown team %q. Try one of: %s", team, strings.Join(b.cfg.Teams, ", ")))
		return
	}
	runs, err := sqlite.RecentReportRuns(b.db, team, historyLimit)
	if err != nil {
		b.postEphemeral(cmd, fmt.Sprintf("Error loading history: %v", err))
		log.Printf("capacity-history load error: %v", err)
		return
	}
	b.postEphemeral(cmd, formatHistory(b.cfg, runs))
}

func (b *Bot) handleHelp(cmd slack.SlashCommand) {
	isManager, err := isManagerUser(b.api, b.cfg, cmd.UserID)
	if err != nil {
		b.postEphemeral(cmd, fmt.Sprintf("Error checking permissions: %v", err))
		log.Printf("help auth error user=%s: %v", cmd.UserID, err)
		return
	}

	lines := []string{
		"*Capacity Report Commands*",
		"",
		"`/capacity-options` — List teams, quarters and bucket order.",
		"`/capacity-history [TEAM]` — Show the latest generated reports.",
		"`/help` — Show this help.",
	}
	if isManager {
		lines = append(lines,
			"",
			"*Manager Commands*",
			"",
			"`/capacity-report TEAM QUARTER FTE×4 SP×4` — Build and publish a report.",
			capacityReportUsage,
		)
	}
	b.postEphemeral(cmd, strings.Join(lines, "\n"))
}

func (b *Bot) postEphemeral(cmd slack.SlashCommand, text string) {
	_, err := b.api.PostEphemeral(cmd.ChannelID, cmd.UserID, slack.MsgOptionText(text, false))
	if err != nil {
		log.Printf("Error posting ephemeral: %v", err)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ChannelNotifier posts plain messages to one channel.
type ChannelNotifier struct {
	API       *slack.Client
	ChannelID string
}

func (n ChannelNotifier) Notify(text string) error {
	if n.API == nil || n.ChannelID == "" {
		return nil
	}
	_, _, err := n.API.PostMessage(n.ChannelID, slack.MsgOptionText(text, false))
	return err
}
