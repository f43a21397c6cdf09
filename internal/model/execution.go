// internal/model/execution.go
package model

import "time"

// Execution is one generated-content unit moving through review and launch.
type Execution struct {
    ID                 string               `db:"id" json:"id"`
    AccountID          string               `db:"account_id" json:"account_id"`
    TemplateCode       *string              `db:"template_code" json:"template_code,omitempty"`
    Name               string               `db:"name" json:"name"`
    Brief              Brief                `json:"brief"`
    Intermediary       *IntermediaryOutputs `db:"intermediary_outputs" json:"intermediary_outputs,omitempty"`
    Assets             *FinalAssets         `db:"final_assets" json:"final_assets,omitempty"`
    OutputContent      string               `db:"output_content" json:"output_content"`
    ApprovedCopy       string               `db:"approved_copy" json:"approved_copy,omitempty"`
    Status             string               `db:"status" json:"status"`
    PipelineStatus     string               `db:"pipeline_status" json:"pipeline_status"`
    CopyStatus         string               `db:"copy_status" json:"copy_status"`
    ListStatus         string               `db:"list_status" json:"list_status"`
    LaunchStatus       string               `db:"launch_status" json:"launch_status"`
    HighlightingStatus string               `db:"highlighting_status" json:"highlighting_status"`
    CreatedAt          time.Time            `db:"created_at" json:"created_at"`
    UpdatedAt          *time.Time           `db:"updated_at" json:"updated_at,omitempty"`
}

// Brief is the free-text material a client supplies for one execution.
type Brief struct {
    MeetingTranscript string `db:"meeting_transcript" json:"meeting_transcript,omitempty"`
    WrittenStrategy   string `db:"written_strategy" json:"written_strategy,omitempty"`
    AdditionalBrief   string `db:"additional_brief" json:"additional_brief,omitempty"`
    HookSignal        string `db:"hook_signal" json:"hook_signal,omitempty"`
    OfferHint         string `db:"offer_hint" json:"offer_hint,omitempty"`
}

func (b Brief) IsEmpty() bool {
    return b.MeetingTranscript == "" && b.WrittenStrategy == "" && b.AdditionalBrief == "" &&
        b.HookSignal == "" && b.OfferHint == ""
}

type IntermediaryOutputs struct {
    ListBuildingStrategy string          `json:"listBuildingStrategy"`
    Hook                 string          `json:"hook"`
    AttractionOffer      AttractionOffer `json:"attractionOffer"`
    Asset                Asset           `json:"asset"`
    CaseStudies          []CaseStudy     `json:"caseStudies,omitempty"`
    // Source is "json", "text_fallback", "signal" when the hook was synthesized,
    // or "edited" after a client edit.
    Source       string    `json:"source,omitempty"`
    CleanedBrief string    `json:"cleanedBrief,omitempty"`
    GeneratedAt  time.Time `json:"generatedAt"`
}

// Missing names the fields asset generation cannot do without.
func (io *IntermediaryOutputs) Missing() []string {
    if io == nil {
        return []string{"hook", "attractionOffer.headline"}
    }
    var missing []string
    if isBlank(io.Hook) {
        missing = append(missing, "hook")
    }
    if isBlank(io.AttractionOffer.Headline) {
        missing = append(missing, "attractionOffer.headline")
    }
    return missing
}

type AttractionOffer struct {
    Headline     string   `json:"headline"`
    ValueBullets []string `json:"valueBullets"`
    EaseBullets  []string `json:"easeBullets"`
}

const (
    AssetTypeLink          = "link"
    AssetTypeDescription   = "description"
    AssetTypeLovablePrompt = "lovable_prompt"
)

type Asset struct {
    Type    string `json:"type"`
    Content string `json:"content"`
    URL     string `json:"url,omitempty"`
}

type CaseStudy struct {
    ClientName  string `json:"clientName"`
    CanNameDrop bool   `json:"canNameDrop"`
    Description string `json:"description"`
    Results     string `json:"results"`
}

type FinalAssets struct {
    Emails                   []Email       `json:"emails"`
    ListBuildingInstructions string        `json:"listBuildingInstructions"`
    Asset                    Asset         `json:"asset"`
    NurtureSequence          string        `json:"nurtureSequence,omitempty"`
    HighlightedNurture       string        `json:"highlightedNurture,omitempty"`
    Degradations             []Degradation `json:"degradations,omitempty"`
    GeneratedAt              time.Time     `json:"generatedAt"`
}

// EmailsPerSequence is the fixed length of a generated outbound sequence.
const EmailsPerSequence = 3

type Email struct {
    Step            int    `json:"step"`
    Purpose         string `json:"purpose"`
    Subject         string `json:"subject"`
    Body            string `json:"body"`
    HighlightedBody string `json:"highlightedBody,omitempty"`
}
