package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/unclebandit/campaign-portal/internal/llm"
	"github.com/unclebandit/campaign-portal/internal/model"
)

const cleanBriefMinLength = 100

// MergeBrief lays the brief out in labelled sections. Empty sections say so
// explicitly so the model does not invent content for them.
func MergeBrief(name string, b model.Brief) string {
	if b.MeetingTranscript == "" && b.WrittenStrategy == "" && b.AdditionalBrief == "" {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf(`CAMPAIGN NAME: %s

=== MEETING TRANSCRIPT ===
%s

=== WRITTEN STRATEGY (Emails, Slack, Teams messages) ===
%s

=== ADDITIONAL CAMPAIGN BRIEF ===
%s`,
		name,
		orDefault(b.MeetingTranscript, "(No meeting transcript provided)"),
		orDefault(b.WrittenStrategy, "(No written strategy provided)"),
		orDefault(b.AdditionalBrief, "(No additional brief provided)"),
	))
}

// CleanBrief asks the model to drop content unrelated to the campaign. Short
// briefs and model failures fall back to the merged brief unchanged.
func CleanBrief(ctx context.Context, c llm.Completer, modelName, name string, b model.Brief, logger *slog.Logger) string {
	merged := MergeBrief(name, b)
	supplied := strings.TrimSpace(strings.Join([]string{b.MeetingTranscript, b.WrittenStrategy, b.AdditionalBrief}, "\n"))
	if merged == "" || c == nil || len(supplied) < cleanBriefMinLength || substantiveLines(supplied) < 3 {
		return merged
	}

	cleaned, err := c.Complete(ctx, llm.Request{
		Model:       modelName,
		System:      campaignSystemPrompt,
		User:        cleanBriefPrompt + "\n\nINPUT BRIEF TO CLEAN:\n" + merged,
		Temperature: 0.2,
		MaxTokens:   8000,
	})
	cleaned = strings.TrimSpace(cleaned)
	if err != nil || cleaned == "" {
		reason := "empty response"
		if err != nil {
			reason = err.Error()
		}
		logger.Warn("brief cleaning failed, using merged brief", slog.String("error", reason))
		return merged
	}
	return cleaned
}

func substantiveLines(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" && !strings.Contains(line, "(No ") {
			n++
		}
	}
	return n
}

const campaignSystemPrompt = "You are an expert B2B outbound campaign strategist and copywriter. " +
	"You create highly effective, personalized outbound campaigns that drive meetings and revenue. " +
	"You follow instructions precisely and output structured, actionable content."

const cleanBriefPrompt = `You are cleaning a campaign brief for an outbound B2B campaign. Produce a "Cleaned Campaign Brief" that:

1. KEEPS word-for-word everything about this campaign: objectives, target audience (companies, industries, personas, job titles), messaging and positioning, offers, assets and value propositions, hooks, touchpoints and personalization, list building criteria, conference names, events and locations, and specific campaign instructions.
2. REMOVES content unrelated to this campaign: other projects, administrative or operational details, off-topic conversation, technical details irrelevant to execution.
3. PRESERVES the "=== ... ===" section headers for sections that still have relevant content. Omit sections with none.
4. Never paraphrase or summarize campaign details.

Return the cleaned brief only. If everything is relevant, return it as-is. If nothing is relevant, return "No campaign-relevant content found in the brief."`
