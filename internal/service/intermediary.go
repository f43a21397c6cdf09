package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/unclebandit/campaign-portal/internal/agent"
	"github.com/unclebandit/campaign-portal/internal/llm"
	"github.com/unclebandit/campaign-portal/internal/model"
)

// Sources recorded on intermediary outputs.
const (
	SourceJSON         = "json"
	SourceTextFallback = "text_fallback"
	SourceSignal       = "signal"
	SourceEdited       = "edited"
)

type rawIntermediary struct {
	ListBuildingStrategy     string `json:"listBuildingStrategy"`
	ListBuildingInstructions string `json:"listBuildingInstructions"`
	Hook                     string `json:"hook"`
	AttractionOffer          struct {
		Headline     string   `json:"headline"`
		ValueBullets []string `json:"valueBullets"`
		EaseBullets  []string `json:"easeBullets"`
	} `json:"attractionOffer"`
	Asset       model.Asset       `json:"asset"`
	CaseStudies []model.CaseStudy `json:"caseStudies"`
}

// ParseIntermediary reads the model's answer, tolerating code fences, and
// falls back to section headers when the answer is not JSON.
func ParseIntermediary(raw string) *model.IntermediaryOutputs {
	var r rawIntermediary
	if err := json.Unmarshal([]byte(llm.StripCodeFences(raw)), &r); err == nil {
		out := &model.IntermediaryOutputs{
			ListBuildingStrategy: strings.TrimSpace(orDefault(r.ListBuildingStrategy, r.ListBuildingInstructions)),
			Hook:                 strings.TrimSpace(r.Hook),
			AttractionOffer: model.AttractionOffer{
				Headline:     strings.TrimSpace(r.AttractionOffer.Headline),
				ValueBullets: r.AttractionOffer.ValueBullets,
				EaseBullets:  r.AttractionOffer.EaseBullets,
			},
			Asset:       r.Asset,
			CaseStudies: r.CaseStudies,
			Source:      SourceJSON,
		}
		out.Asset = classifyAsset(out.Asset.Content, out.Asset)
		return out
	}
	return parseIntermediaryText(raw)
}

var (
	sectionHeader = regexp.MustCompile(`(?i)^\s*(?:#+\s*)?(?:\d+[.)]\s*)?\**\s*(list building strategy|list building instructions|hook|attraction offer|asset|case studies)\b[^:\n]*?:?\**\s*(.*)$`)
	headlineLine  = regexp.MustCompile(`(?im)^\s*[-*•]?\s*\**headline\**\s*:\s*(.+)$`)
	bulletLine    = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
	urlPattern    = regexp.MustCompile(`https?://[^\s)>\]"']+`)
)

// extractSections splits text on the known headers. Text on the header line
// after the colon belongs to that section.
func extractSections(text string) map[string]string {
	sections := map[string]string{}
	current := ""
	var buf []string
	flush := func() {
		if current != "" {
			sections[current] = strings.TrimSpace(strings.Join(buf, "\n"))
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if m := sectionHeader.FindStringSubmatch(line); m != nil {
			flush()
			current = strings.ToLower(m[1])
			if current == "list building instructions" {
				current = "list building strategy"
			}
			buf = buf[:0]
			if rest := strings.TrimSpace(strings.Trim(m[2], "*")); rest != "" {
				buf = append(buf, rest)
			}
			continue
		}
		if current != "" {
			buf = append(buf, line)
		}
	}
	flush()
	return sections
}

func parseIntermediaryText(text string) *model.IntermediaryOutputs {
	s := extractSections(text)
	out := &model.IntermediaryOutputs{
		ListBuildingStrategy: s["list building strategy"],
		Hook:                 firstParagraph(s["hook"]),
		Source:               SourceTextFallback,
	}
	out.AttractionOffer = parseOfferSection(s["attraction offer"])
	out.Asset = classifyAsset(s["asset"], model.Asset{})
	if cs := strings.TrimSpace(s["case studies"]); cs != "" {
		for _, line := range strings.Split(cs, "\n") {
			if m := bulletLine.FindStringSubmatch(line); m != nil {
				out.CaseStudies = append(out.CaseStudies, model.CaseStudy{Description: strings.TrimSpace(m[1])})
			}
		}
	}
	return out
}

func parseOfferSection(section string) model.AttractionOffer {
	var offer model.AttractionOffer
	if section == "" {
		return offer
	}
	if m := headlineLine.FindStringSubmatch(section); m != nil {
		offer.Headline = strings.Trim(strings.TrimSpace(m[1]), `*"`)
	}

	target := &offer.ValueBullets
	for _, line := range strings.Split(section, "\n") {
		lower := strings.ToLower(strings.TrimSpace(line))
		switch {
		case strings.Contains(lower, "ease") && strings.HasSuffix(strings.Trim(lower, "*"), ":"):
			target = &offer.EaseBullets
			continue
		case strings.Contains(lower, "value") && strings.HasSuffix(strings.Trim(lower, "*"), ":"):
			target = &offer.ValueBullets
			continue
		case headlineLine.MatchString(line):
			continue
		}
		if m := bulletLine.FindStringSubmatch(line); m != nil {
			*target = append(*target, strings.TrimSpace(m[1]))
		} else if offer.Headline == "" && lower != "" {
			offer.Headline = strings.TrimSpace(line)
		}
	}
	return offer
}

// classifyAsset fills in the type from the content when the model left it
// out or the text fallback found only prose.
func classifyAsset(content string, a model.Asset) model.Asset {
	a.Content = strings.TrimSpace(orDefault(a.Content, content))
	if a.URL == "" {
		a.URL = urlPattern.FindString(a.Content)
	}
	if a.Type != "" {
		return a
	}
	switch {
	case a.URL != "":
		a.Type = model.AssetTypeLink
	case a.Content != "":
		a.Type = model.AssetTypeDescription
	}
	return a
}

// lovablePrompt is used when no asset exists yet.
func lovablePrompt(io *model.IntermediaryOutputs, companyDomain string) string {
	domain := orDefault(companyDomain, "[company domain]")
	return "No asset provided in campaign brief. Lovable prompt provided below.\n\n" +
		"We are building an outbound campaign landing page asset for the following campaign: " +
		strings.TrimSpace(io.ListBuildingStrategy) + " The attraction offer is " + io.AttractionOffer.Headline + ". " +
		"Use the brand guidelines from " + domain + " and make sure the micro-deliverable asset is easily readable."
}

func firstParagraph(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "\n\n"); i >= 0 {
		s = s[:i]
	}
	return strings.Trim(strings.TrimSpace(s), `"`)
}

// buildIntermediaryPrompt favors the brief; workspace elements only fill in
// what the brief leaves out.
func buildIntermediaryPrompt(e *model.Execution, cleanedBrief string, play *model.PlayTemplate, elements StrategicElements, ws *model.Workspace) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CAMPAIGN BRIEF FOR %s\n\n", e.Name)
	if play != nil {
		fmt.Fprintf(&b, "Play: %s (%s)\n%s\n\n", play.Code, play.Name, play.Description)
	}
	b.WriteString(orDefault(cleanedBrief, "No brief provided."))
	if e.Brief.HookSignal != "" {
		fmt.Fprintf(&b, "\n\nShared touchpoint to use in the hook: %s", e.Brief.HookSignal)
	}
	if e.Brief.OfferHint != "" {
		fmt.Fprintf(&b, "\n\nOffer the client wants to lead with: %s", e.Brief.OfferHint)
	}

	b.WriteString(`

---

Generate the intermediary campaign elements almost entirely from the brief above. Use the strategic elements below only when the brief is missing something.

1. LIST BUILDING STRATEGY (2-10 sentences): account criteria, prospect criteria, and any specific sourcing instructions from the brief.
2. HOOK (1-2 sentences): a shared touchpoint that builds trust immediately, called out in the first line. Location, conference, community, industry language, technology, or a very specific company description.
3. ATTRACTION OFFER: a headline, 3-5 value bullets (saves time, makes money, saves money, increases status) and 1-2 ease bullets.
4. ASSET: a URL if the brief has one, a description of where it lives if described, otherwise leave content empty.
5. CASE STUDIES (optional): relevant client results with name-drop permission.
`)
	if play != nil && play.Conference {
		b.WriteString("\nThis is a conference play. The hook must tie to why attendees are there, the conference context, and the primary pain point.\n")
	}
	if play != nil && play.PromptOverride != "" {
		b.WriteString("\n" + play.PromptOverride + "\n")
	}

	b.WriteString("\nSTRATEGIC ELEMENTS:\n")
	writeObjects(&b, "PERSONAS", elements.Of(model.ElementPersonas))
	writeObjects(&b, "USE CASES", elements.Of(model.ElementUseCases))
	writeObjects(&b, "CLIENT REFERENCES", elements.Of(model.ElementReferences))
	if ws != nil {
		fmt.Fprintf(&b, "COMPANY: %s (%s)\n", ws.CompanyName, ws.CompanyDomain)
	}

	b.WriteString(`
OUTPUT FORMAT (JSON):
{
  "listBuildingStrategy": "...",
  "hook": "...",
  "attractionOffer": {"headline": "...", "valueBullets": ["..."], "easeBullets": ["..."]},
  "asset": {"type": "link|description", "content": "...", "url": "..."},
  "caseStudies": [{"clientName": "...", "canNameDrop": true, "description": "...", "results": "..."}]
}`)
	return b.String()
}

func writeObjects(b *strings.Builder, label string, objs []agent.Object) {
	fmt.Fprintf(b, "%s:\n", label)
	if len(objs) == 0 {
		b.WriteString("- None\n")
		return
	}
	for _, o := range objs {
		desc, _ := o.Data["description"].(string)
		fmt.Fprintf(b, "- %s: %s\n", o.Name, desc)
	}
}
