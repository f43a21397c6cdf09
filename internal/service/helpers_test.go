package service_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/unclebandit/campaign-portal/internal/llm"
	"github.com/unclebandit/campaign-portal/internal/model"
	"github.com/unclebandit/campaign-portal/internal/service"
)

func TestCheckPlaceholders(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		valid       bool
		missing     int
		wantWarning string
	}{
		{
			name:    "complete copy",
			content: "Hi {{first_name}}, {{sl_time_of_day}}. As {{job_title}} at {{company_name}}...\n%signature%",
			valid:   true,
		},
		{
			name:        "single-brace tag",
			content:     "Hello {first_name}",
			missing:     3,
			wantWarning: "broken placeholders",
		},
		{
			name:        "unfilled insert marker",
			content:     "Hi %first_name% at %company_name%, see [INSERT CASE STUDY]. {{signature}}",
			valid:       true,
			wantWarning: "broken placeholders",
		},
		{
			name:        "double bracket tag",
			content:     "Hi {{firstName}} at {{companyName}} [[title]] %signature%",
			valid:       true,
			wantWarning: "broken placeholders",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := service.CheckPlaceholders(tt.content)
			if r.Valid != tt.valid || len(r.Missing) != tt.missing {
				t.Errorf("report = %+v", r)
			}
			joined := strings.Join(r.Warning, "|")
			if tt.wantWarning != "" && !strings.Contains(joined, tt.wantWarning) {
				t.Errorf("warnings %q should mention %q", joined, tt.wantWarning)
			}
			if tt.wantWarning == "" && strings.Contains(joined, "broken") {
				t.Errorf("unexpected broken-placeholder warning: %q", joined)
			}
		})
	}
}

func TestRenderTemplateLeavesMergeTags(t *testing.T) {
	got := service.RenderTemplate("Hi {{first_name}}, {hook} Try {offer}. {unknown} %signature%", map[string]string{
		"hook":  "Saw you at the summit.",
		"offer": "the checklist",
	})
	want := "Hi {{first_name}}, Saw you at the summit. Try the checklist. {unknown} %signature%"
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestDetectSignal(t *testing.T) {
	tests := []struct {
		brief    model.Brief
		text     string
		kind     string
		wantText string
	}{
		{model.Brief{HookSignal: "Fellow SaaStr attendee"}, "based in Chicago", service.SignalExplicit, "Fellow SaaStr attendee"},
		{model.Brief{}, "We will be at the Midwest Finance Summit next month.", service.SignalConference, "Midwest Finance Summit"},
		{model.Brief{}, "Most of them are active in the RevOps community.", service.SignalCommunity, "RevOps community"},
		{model.Brief{}, "Our buyers are based in Chicago and need faster closes.", service.SignalLocation, "Chicago-area"},
		{model.Brief{}, "Every buyer is facing SOC audits this year.", service.SignalJargon, "SOC audits"},
	}
	for _, tt := range tests {
		sig, ok := service.DetectSignal(tt.brief, tt.text)
		if !ok || sig.Kind != tt.kind || sig.Text != tt.wantText {
			t.Errorf("DetectSignal(%q) = %+v, %v; want %s %q", tt.text, sig, ok, tt.kind, tt.wantText)
		}
	}

	if sig, ok := service.DetectSignal(model.Brief{}, "we sell software to everyone."); ok {
		t.Errorf("expected no signal, got %+v", sig)
	}
}

func TestSynthesizeHookOpensWithSignal(t *testing.T) {
	sig := service.Signal{Kind: service.SignalLocation, Text: "Chicago-area"}
	hook := service.SynthesizeHook(sig, "")
	if !strings.HasPrefix(hook, "Chicago-area") || !strings.Contains(hook, "a short resource") {
		t.Errorf("hook = %q", hook)
	}
	hook = service.SynthesizeHook(service.Signal{Kind: service.SignalExplicit, Text: "Loved your podcast"}, "The Close Kit")
	if !strings.HasPrefix(hook, "Loved your podcast") || !strings.Contains(hook, "The Close Kit") {
		t.Errorf("hook = %q", hook)
	}
}

func TestParseIntermediaryTextFallback(t *testing.T) {
	raw := `Here is what I came up with.

## List Building Strategy
Controllers at mid-size manufacturers.

## Hook
"Chicago-area finance teams lose a week every close."

Second paragraph that is not part of the hook.

## Attraction Offer
Headline: The 5-Day Close Checklist
Value:
- Saves two weeks a quarter
Ease:
- Takes ten minutes to read

## Asset
https://acme.test/checklist

## Case Studies
- Globex cut close time in half
`
	io := service.ParseIntermediary(raw)
	if io.Source != service.SourceTextFallback {
		t.Fatalf("source = %s", io.Source)
	}
	if io.Hook != "Chicago-area finance teams lose a week every close." {
		t.Errorf("hook = %q", io.Hook)
	}
	if io.ListBuildingStrategy != "Controllers at mid-size manufacturers." {
		t.Errorf("strategy = %q", io.ListBuildingStrategy)
	}
	offer := io.AttractionOffer
	if offer.Headline != "The 5-Day Close Checklist" || len(offer.ValueBullets) != 1 || len(offer.EaseBullets) != 1 {
		t.Errorf("offer = %+v", offer)
	}
	if io.Asset.Type != model.AssetTypeLink || io.Asset.URL != "https://acme.test/checklist" {
		t.Errorf("asset = %+v", io.Asset)
	}
	if len(io.CaseStudies) != 1 {
		t.Errorf("case studies = %+v", io.CaseStudies)
	}
}

func TestParseIntermediaryAcceptsInstructionsKey(t *testing.T) {
	io := service.ParseIntermediary(`{"listBuildingInstructions": "CFOs in Ohio", "hook": "h", "attractionOffer": {"headline": "o"}, "asset": {"content": "A one-page teardown"}}`)
	if io.Source != service.SourceJSON || io.ListBuildingStrategy != "CFOs in Ohio" {
		t.Errorf("parsed = %+v", io)
	}
	if io.Asset.Type != model.AssetTypeDescription {
		t.Errorf("asset type = %s", io.Asset.Type)
	}
}

func longBrief() model.Brief {
	return model.Brief{
		MeetingTranscript: "Kickoff call with the CFO.\nWe target controllers at manufacturers in Ohio.\nThey struggle with month-end close.",
		WrittenStrategy:   "Lead with the close checklist. Unrelated: the office move is next week.",
	}
}

func TestCleanBrief(t *testing.T) {
	logger := slog.Default()
	ctx := context.Background()

	short := model.Brief{MeetingTranscript: "Sell to CFOs."}
	m := &MockLLM{Respond: func(llm.Request) (string, error) { return "cleaned", nil }}
	got := service.CleanBrief(ctx, m, "gpt-test", "Q3", short, logger)
	if len(m.Requests) != 0 || got != service.MergeBrief("Q3", short) {
		t.Errorf("short brief should skip the model, got %q after %d calls", got, len(m.Requests))
	}
	if !strings.Contains(got, "(No written strategy provided)") {
		t.Errorf("merged brief should mark empty sections: %q", got)
	}

	got = service.CleanBrief(ctx, m, "gpt-test", "Q3", longBrief(), logger)
	if got != "cleaned" || len(m.Requests) != 1 {
		t.Errorf("got %q after %d calls", got, len(m.Requests))
	}

	failing := &MockLLM{Respond: func(llm.Request) (string, error) { return "", errors.New("rate limited") }}
	got = service.CleanBrief(ctx, failing, "gpt-test", "Q3", longBrief(), logger)
	if got != service.MergeBrief("Q3", longBrief()) {
		t.Errorf("failure should fall back to the merged brief, got %q", got)
	}

	if service.MergeBrief("Q3", model.Brief{HookSignal: "only a signal"}) != "" {
		t.Error("a brief without text sections merges to empty")
	}
}
