package slackbot

import (
	"context"

	"capacityreport/internal/config"
	"capacityreport/internal/report"

	"github.com/slack-go/slack"
)

type Config = config.Config
type ReportRequest = report.Request
type ReportResult = report.Result

// ReportCreator runs the report pipeline for one request.
type ReportCreator interface {
	Create(ctx context.Context, req ReportRequest) (ReportResult, error)
}

// slackAPI is the subset of *slack.Client the bot uses.
type slackAPI interface {
	PostEphemeral(channelID, userID string, options ...slack.MsgOption) (string, error)
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
	GetUsers(options ...slack.GetUsersOption) ([]slack.User, error)
}
