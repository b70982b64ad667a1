// Package llm writes the optional narrative paragraph of a capacity report.
package llm

import (
	"context"
	"fmt"
	"log"
	"strings"

	"capacityreport/internal/domain"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const summarySystemPrompt = `You write the opening paragraph of a quarterly capacity report for an engineering manager.
You receive the planned and the actual share of effort per work category, measured in story points.
Write three to five plain sentences. Name the categories that moved the most and by how much, in percentage points.
Mention issues left out of the numbers when there are any. Do not invent causes, do not use bullet points or headings.`

type LLMUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

func (u LLMUsage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// Summarizer calls the Anthropic Messages API.
type Summarizer struct {
	model   string
	options []option.RequestOption
}

// NewSummarizer returns a summarizer for cfg. Extra request options are
// appended to the defaults.
func NewSummarizer(cfg Config, opts ...option.RequestOption) *Summarizer {
	base := []option.RequestOption{
		option.WithAPIKey(cfg.AnthropicAPIKey),
		option.WithHTTPClient(externalHTTPClient),
	}
	return &Summarizer{
		model:   cfg.LLMModel,
		options: append(base, opts...),
	}
}

func (s *Summarizer) Summarize(ctx context.Context, sum Summary) (string, error) {
	log.Printf("llm summary provider=anthropic model=%s team=%s quarter=%s", s.model, sum.Team, sum.Quarter)
	text, usage, err := s.callAnthropic(ctx, summarySystemPrompt, buildSummaryPrompt(sum))
	if err != nil {
		return "", err
	}
	log.Printf("llm summary done tokens=%d", usage.TotalTokens())
	return strings.TrimSpace(text), nil
}

func buildSummaryPrompt(sum Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Team: %s\nQuarter: %s\n\n", sum.Team, sum.Quarter)
	b.WriteString("Category | Planned share | Actual share | Change (pp) | Story points\n")
	for i, bucket := range domain.Buckets {
		name := bucket.String()
		if i < len(sum.MetricNames) && sum.MetricNames[i] != "" {
			name = sum.MetricNames[i]
		}
		fmt.Fprintf(&b, "%s | %.0f%% | %.0f%% | %+.0f | %g\n",
			name, sum.PlannedRatio[i]*100, sum.FinalRatio[i]*100, sum.Diff[i]*100, sum.FinalSP[i])
	}
	fmt.Fprintf(&b, "\nIssues without story points: %d\n", sum.MissingEstimateCount)
	fmt.Fprintf(&b, "Issues with more than one work type: %d\n", sum.MultiTaggedCount)
	return b.String()
}

func (s *Summarizer) callAnthropic(ctx context.Context, systemPrompt, userPrompt string) (string, LLMUsage, error) {
	client := anthropic.NewClient(s.options...)

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return "", LLMUsage{}, fmt.Errorf("Anthropic API error: %w", err)
	}
	usage := LLMUsage{
		InputTokens:              message.Usage.InputTokens,
		OutputTokens:             message.Usage.OutputTokens,
		CacheCreationInputTokens: message.Usage.CacheCreationInputTokens,
		CacheReadInputTokens:     message.Usage.CacheReadInputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm anthropic response size=%d tokens_in=%d tokens_out=%d cache_create=%d cache_read=%d", len(block.Text), usage.InputTokens, usage.OutputTokens, usage.CacheCreationInputTokens, usage.CacheReadInputTokens)
			return block.Text, usage, nil
		}
	}
	return "", usage, fmt.Errorf("no text content in Anthropic response")
}
