package model

const (
	CategoryOutbound = "outbound"
	CategoryNurture  = "nurture"
	CategoryAllbound = "allbound"
)

// PlayTemplate is a catalog entry after the static table and any datastore
// overlay row have been merged.
type PlayTemplate struct {
	Code             string `json:"code" yaml:"code"`
	Name             string `json:"name" yaml:"name"`
	Category         string `json:"category" yaml:"category"`
	Description      string `json:"description" yaml:"description"`
	Conference       bool   `json:"conference,omitempty" yaml:"conference"`
	Blocked          bool   `json:"-" yaml:"blocked"`
	IsActive         bool   `json:"is_active"`
	AgentNamePattern string `json:"agent_name_pattern,omitempty"`
	PromptOverride   string `json:"prompt_override,omitempty"`
}

// TemplateOverlay is the mutable per-code row stored in the datastore.
type TemplateOverlay struct {
	Code             string
	IsActive         bool
	AgentNamePattern string
	PromptOverride   string
}
