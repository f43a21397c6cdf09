package highlight_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/unclebandit/campaign-portal/internal/highlight"
	"github.com/unclebandit/campaign-portal/internal/llm"
)

// MockLLM returns whatever respond produces for the OUTPUT section of the prompt.
type MockLLM struct {
	respond func(text string) (string, error)
	calls   int
	last    llm.Request
}

func (m *MockLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	m.calls++
	m.last = req
	idx := strings.LastIndex(req.User, "OUTPUT:\n")
	return m.respond(req.User[idx+len("OUTPUT:\n"):])
}

// tagWord wraps the first occurrence of word in tag.
func tagWord(text, word, tag string) string {
	return strings.Replace(text, word, "<"+tag+">"+word+"</"+tag+">", 1)
}

func TestHighlightRoundTrip(t *testing.T) {
	inputs := []string{
		"Hi John,\n\nMost CEOs want clean numbers without living in QuickBooks.",
		"Subject: CFOs in Chicago\n\nBody: grab the template here.",
		"  leading and trailing space  \n",
		"Text with <b>existing</b> markup & symbols < > \" '",
		"CEOs CEOs CEOs",
		"unicode · ünïcödé CEOs ✓",
	}
	mock := &MockLLM{respond: func(text string) (string, error) {
		out := tagWord(text, "CEOs", "persona")
		out = tagWord(out, "template", "cta_leadmagnet")
		out = tagWord(out, "John", "personalization")
		// Models tend to drop surrounding whitespace.
		return strings.TrimSpace(out), nil
	}}
	engine := highlight.NewEngine(mock, nil)

	for _, in := range inputs {
		res := engine.Highlight(context.Background(), in, highlight.Elements{}, "")
		if got := highlight.Strip(res.Text); got != in {
			t.Errorf("round trip broken for %q: got %q", in, got)
		}
		if strings.Contains(in, "CEOs") && res.Status != highlight.StatusCompleted {
			t.Errorf("expected completed for %q, got %s (%v)", in, res.Status, res.Degraded)
		}
	}
}

func TestHighlightDiscardsAlteredText(t *testing.T) {
	mock := &MockLLM{respond: func(text string) (string, error) {
		return "<persona>Chief Executives</persona> want clean numbers.", nil
	}}
	in := "CEOs want clean numbers."
	res := highlight.NewEngine(mock, nil).Highlight(context.Background(), in, highlight.Elements{}, "")

	if res.Text != in {
		t.Errorf("expected original text, got %q", res.Text)
	}
	if res.Status != highlight.StatusNoHighlights || res.Degraded == nil {
		t.Errorf("expected degraded result, got %+v", res)
	}
}

func TestHighlightRejectsUnbalancedTags(t *testing.T) {
	mock := &MockLLM{respond: func(text string) (string, error) {
		return "<persona>CEOs want <segment>clean</persona> numbers.</segment>", nil
	}}
	in := "CEOs want clean numbers."
	res := highlight.NewEngine(mock, nil).Highlight(context.Background(), in, highlight.Elements{}, "")
	if res.Status != highlight.StatusNoHighlights || res.Text != in {
		t.Errorf("expected unbalanced output to be discarded, got %+v", res)
	}
}

func TestHighlightUpstreamFailureReturnsOriginal(t *testing.T) {
	mock := &MockLLM{respond: func(string) (string, error) { return "", errors.New("timeout") }}
	in := "CEOs want clean numbers."
	res := highlight.NewEngine(mock, nil).Highlight(context.Background(), in, highlight.Elements{}, "")
	if res.Text != in || res.Status != highlight.StatusNoHighlights {
		t.Errorf("expected original text with no highlights, got %+v", res)
	}
	if res.Degraded == nil || res.Degraded.Reason != "timeout" {
		t.Errorf("expected degradation reason, got %+v", res.Degraded)
	}
}

func TestHighlightStripsPriorTags(t *testing.T) {
	mock := &MockLLM{respond: func(text string) (string, error) {
		if highlight.HasHighlights(text) {
			t.Errorf("model should receive untagged text, got %q", text)
		}
		return tagWord(text, "CEOs", "persona"), nil
	}}
	in := "<persona>CEOs</persona> want clean numbers."
	res := highlight.NewEngine(mock, nil).Highlight(context.Background(), in, highlight.Elements{}, "")
	if highlight.Strip(res.Text) != highlight.Strip(in) {
		t.Errorf("expected idempotent highlighting, got %q", res.Text)
	}
}

func TestHighlightFailureKeepsTaggedInput(t *testing.T) {
	in := "<persona>CEOs</persona> want clean numbers."
	failing := &MockLLM{respond: func(string) (string, error) { return "", errors.New("timeout") }}
	altering := &MockLLM{respond: func(string) (string, error) { return "Chief Executives want clean numbers.", nil }}

	for _, mock := range []*MockLLM{failing, altering} {
		res := highlight.NewEngine(mock, nil).Highlight(context.Background(), in, highlight.Elements{}, "")
		if res.Text != in || res.Status != highlight.StatusNoHighlights {
			t.Errorf("expected input back unchanged, got %+v", res)
		}
	}
	var engine *highlight.Engine
	if res := engine.Highlight(context.Background(), in, highlight.Elements{}, ""); res.Text != in {
		t.Errorf("expected input back unchanged without a model, got %q", res.Text)
	}
}

func TestHighlightPromptCarriesElements(t *testing.T) {
	mock := &MockLLM{respond: func(text string) (string, error) { return text, nil }}
	el := highlight.Elements{
		Personas: []highlight.Element{{Name: "CFO"}},
		UseCases: []highlight.Element{{Name: "Close", DesiredOutcome: "faster close", Blocker: "spreadsheets"}},
	}
	highlight.NewEngine(mock, nil).Highlight(context.Background(), "Hello CFO", el, "outbound email")

	for _, want := range []string{"Personas: CFO", "Use Case Outcomes: faster close", "Use Case Blockers: spreadsheets", "Client References: None", "outbound email"} {
		if !strings.Contains(mock.last.User, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if mock.last.Temperature != 0.1 {
		t.Errorf("expected low temperature, got %v", mock.last.Temperature)
	}
}

func TestHighlightWithoutModelIsDegraded(t *testing.T) {
	var engine *highlight.Engine
	res := engine.Highlight(context.Background(), "CEOs", highlight.Elements{}, "")
	if res.Text != "CEOs" || res.Status != highlight.StatusNoHighlights {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestRenderEscapesAndWrapsTags(t *testing.T) {
	got := highlight.Render("Hi <personalization>Ann & Co</personalization>\n<script>")
	want := `Hi <span class="highlight highlight-personalization" title="Personalized">Ann &amp; Co</span><br/>&lt;script&gt;`
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}
