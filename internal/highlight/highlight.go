// Package highlight tags generated copy with the strategic element or
// runtime personalization each passage came from.
package highlight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/unclebandit/campaign-portal/internal/llm"
	"github.com/unclebandit/campaign-portal/internal/model"
)

const (
	StatusCompleted    = "completed"
	StatusNoHighlights = "completed_no_highlights"
)

const (
	model4oMini = "gpt-4o-mini"
	maxTokens   = 4000
)

type Element struct {
	OID            string
	Name           string
	Description    string
	DesiredOutcome string
	Blocker        string
}

type Elements struct {
	Personas   []Element
	UseCases   []Element
	References []Element
}

// FromSets builds Elements out of stored workspace element sets.
func FromSets(personas, useCases, references model.ElementSet) Elements {
	return Elements{
		Personas:   toElements(personas),
		UseCases:   toElements(useCases),
		References: toElements(references),
	}
}

func toElements(set model.ElementSet) []Element {
	out := make([]Element, 0, len(set))
	for oid, payload := range set {
		out = append(out, Element{
			OID:            oid,
			Name:           str(payload, "name", "companyName"),
			Description:    str(payload, "description"),
			DesiredOutcome: str(payload, "desiredOutcome"),
			Blocker:        str(payload, "blocker"),
		})
	}
	return out
}

func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Result is annotated text plus how it was produced. Degraded is set when
// the text came back unannotated because of a failure.
type Result struct {
	Text     string             `json:"text"`
	Status   string             `json:"status"`
	Degraded *model.Degradation `json:"degraded,omitempty"`
}

type Engine struct {
	LLM    llm.Completer
	Logger *slog.Logger
}

func NewEngine(c llm.Completer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{LLM: c, Logger: logger}
}

// Highlight never fails. Any existing tags in rawText are removed before the
// model sees it, so Strip(result.Text) == Strip(rawText) always holds. When
// highlighting degrades, rawText comes back unchanged.
func (e *Engine) Highlight(ctx context.Context, rawText string, elements Elements, templateHint string) Result {
	base := Strip(rawText)
	if strings.TrimSpace(base) == "" {
		return Result{Text: base, Status: StatusCompleted}
	}
	if e == nil || e.LLM == nil {
		return degraded(rawText, "highlighting is not configured")
	}

	out, err := e.LLM.Complete(ctx, llm.Request{
		Model:       model4oMini,
		System:      systemPrompt,
		User:        buildPrompt(base, elements, templateHint),
		Temperature: 0.1,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		e.log().Warn("highlighting call failed", slog.String("error", err.Error()))
		return degraded(rawText, err.Error())
	}

	if strings.HasPrefix(strings.TrimSpace(out), "```") && !strings.HasPrefix(strings.TrimSpace(base), "```") {
		out = llm.StripCodeFences(out)
	}
	out = repairWhitespace(base, out)
	if err := validate(base, out); err != nil {
		e.log().Warn("discarding highlighted output", slog.String("reason", err.Error()))
		return degraded(rawText, err.Error())
	}
	return Result{Text: out, Status: StatusCompleted}
}

func (e *Engine) log() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func degraded(text, reason string) Result {
	return Result{
		Text:     text,
		Status:   StatusNoHighlights,
		Degraded: &model.Degradation{Component: "highlighting", Reason: reason},
	}
}

const systemPrompt = `You are an expert content analyst specializing in identifying semantic relationships between marketing content and input elements. You must preserve the original text exactly. Only add XML tags around content text segments; never modify, add or remove any other character.`

func buildPrompt(text string, el Elements, templateHint string) string {
	var outcomes, blockers []string
	for _, uc := range el.UseCases {
		if uc.DesiredOutcome != "" {
			outcomes = append(outcomes, uc.DesiredOutcome)
		}
		if uc.Blocker != "" {
			blockers = append(blockers, uc.Blocker)
		}
	}

	var b strings.Builder
	b.WriteString("Wrap the passages of the OUTPUT below in semantic tags.\n\n")
	b.WriteString("Library element tags:\n")
	b.WriteString("- <persona> references to the target persona\n")
	b.WriteString("- <segment> company size, industry or demographic segment\n")
	b.WriteString("- <usecase_outcome> desired outcomes from use cases\n")
	b.WriteString("- <usecase_blocker> problems or blockers from use cases\n")
	b.WriteString("- <cta_leadmagnet> calls to action or lead magnet references\n")
	b.WriteString("Runtime personalization tag:\n")
	b.WriteString("- <personalization> names, company names and details inserted at runtime\n\n")

	fmt.Fprintf(&b, "Personas: %s\n", joinOrNone(names(el.Personas)))
	fmt.Fprintf(&b, "Use Cases: %s\n", joinOrNone(names(el.UseCases)))
	fmt.Fprintf(&b, "Use Case Outcomes: %s\n", joinOrNone(outcomes))
	fmt.Fprintf(&b, "Use Case Blockers: %s\n", joinOrNone(blockers))
	fmt.Fprintf(&b, "Client References: %s\n", joinOrNone(names(el.References)))
	if templateHint != "" {
		fmt.Fprintf(&b, "Content type: %s\n", templateHint)
	}

	b.WriteString("\nRules: do not tag headers, labels such as \"Subject:\" or play codes. ")
	b.WriteString("Keep every character, line break and space of the output exactly as given. ")
	b.WriteString("Return only the tagged output.\n\nOUTPUT:\n")
	b.WriteString(text)
	return b.String()
}

func names(els []Element) []string {
	out := make([]string, 0, len(els))
	for _, e := range els {
		if e.Name != "" {
			out = append(out, e.Name)
		}
	}
	return out
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}
