package agent

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// CompetitorTimeout bounds the batch competitor generation call, which
// scrapes every competitor site before answering.
const CompetitorTimeout = 60 * time.Second

type WorkspaceSpec struct {
	Name             string   `json:"name"`
	URL              string   `json:"url"`
	AddExistingUsers bool     `json:"addExistingUsers"`
	AgentOIDs        []string `json:"agentOIds"`
}

type OfferingSpec struct {
	Type                string `json:"type"`
	Name                string `json:"name"`
	DifferentiatedValue string `json:"differentiatedValue"`
	StatusQuo           string `json:"statusQuo"`
}

type BuildWorkspaceRequest struct {
	Workspace           WorkspaceSpec `json:"workspace"`
	Offering            OfferingSpec  `json:"offering"`
	RuntimeContext      string        `json:"runtimeContext,omitempty"`
	BrandVoiceOID       string        `json:"brandVoiceOId,omitempty"`
	CreateDefaultAgents bool          `json:"createDefaultAgents"`
}

type BuildWorkspaceResult struct {
	WorkspaceOID    string
	OfferingOID     string
	APIKey          string
	ContextAgentOID string
	Personas        []Object
	UseCases        []Object
}

// BuildWorkspace creates a workspace and its primary offering. The
// idempotency key is forwarded so the platform can dedupe a retried call.
func (c *Client) BuildWorkspace(ctx context.Context, req BuildWorkspaceRequest, idempotencyKey string) (*BuildWorkspaceResult, error) {
	var resp envelope
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}
	if err := c.do(ctx, "workspace.build", http.MethodPost, "/agents/workspace/build", c.MasterKey, headers, req, &resp); err != nil {
		return nil, err
	}

	root := map[string]any(resp)
	result := &BuildWorkspaceResult{
		WorkspaceOID: lookup(root, "workspace.oId", "data.workspace.oId", "oId"),
		OfferingOID: lookup(root, "offering.oId", "product.oId", "data.offering.oId",
			"data.product.oId", "primaryOffering.oId"),
		APIKey:          lookup(root, "apiKey", "workspace.apiKey", "data.apiKey", "data.workspace.apiKey"),
		ContextAgentOID: lookup(root, "contextAgent.oId", "data.contextAgent.oId"),
	}
	payload := resp.payload()
	result.Personas = objects(payload["personas"])
	result.UseCases = objects(payload["useCases"])

	if result.WorkspaceOID == "" || result.APIKey == "" {
		return nil, fmt.Errorf("agent platform workspace.build: response missing workspace id or api key")
	}
	return result, nil
}

type ReferenceInput struct {
	ProductOID    string `json:"productOId"`
	BrandVoiceOID string `json:"brandVoiceOId,omitempty"`
	URL           string `json:"url"`
	CompanyName   string `json:"companyName"`
	CompanyDomain string `json:"companyDomain"`
	Details       string `json:"details"`
}

func (c *Client) CreateReference(ctx context.Context, credential string, in ReferenceInput) (Object, error) {
	var resp envelope
	if err := c.do(ctx, "reference.create", http.MethodPost, "/reference/create", credential, nil, in, &resp); err != nil {
		return Object{}, err
	}
	return toObject(resp.payload()), nil
}

type LinkingStrategy struct {
	Mode string `json:"mode"`
}

type SegmentInput struct {
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	Data               map[string]any  `json:"data"`
	PrimaryOfferingOID string          `json:"primaryOfferingOId,omitempty"`
	LinkingStrategy    LinkingStrategy `json:"linkingStrategy"`
}

func (c *Client) CreateSegment(ctx context.Context, credential string, in SegmentInput) (Object, error) {
	var resp envelope
	if err := c.do(ctx, "segment.create", http.MethodPost, "/segment/create", credential, nil, in, &resp); err != nil {
		return Object{}, err
	}
	return toObject(resp.payload()), nil
}

type Source struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type CompetitorSpec struct {
	Name    string   `json:"name"`
	Sources []Source `json:"sources"`
}

type CompetitorBatch struct {
	Competitors        []CompetitorSpec `json:"competitors"`
	PrimaryOfferingOID string           `json:"primaryOfferingOId"`
	LinkingStrategy    LinkingStrategy  `json:"linkingStrategy"`
}

// GenerateCompetitors creates all competitors in one call. The returned
// objects are in request order.
func (c *Client) GenerateCompetitors(ctx context.Context, credential string, in CompetitorBatch) ([]Object, error) {
	ctx, cancel := context.WithTimeout(ctx, CompetitorTimeout)
	defer cancel()

	var resp struct {
		Data []map[string]any `json:"data"`
	}
	if err := c.do(ctx, "competitor.generate", http.MethodPost, "/competitor/generate", credential, nil, in, &resp); err != nil {
		return nil, err
	}
	out := make([]Object, 0, len(resp.Data))
	for _, m := range resp.Data {
		out = append(out, toObject(m))
	}
	return out, nil
}

type PlaybookInput struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	KeyInsight      string   `json:"keyInsight"`
	Type            string   `json:"type"`
	ProductOID      string   `json:"productOId"`
	SegmentOID      string   `json:"segmentOId"`
	PersonaOIDs     []string `json:"personaOIds"`
	UseCaseOIDs     []string `json:"useCaseOIds"`
	ReferenceOIDs   []string `json:"referenceOIds,omitempty"`
	CreateTemplates bool     `json:"createTemplates"`
	Status          string   `json:"status"`
	ReferenceMode   string   `json:"referenceMode"`
	ProofPointMode  string   `json:"proofPointMode"`
}

func (c *Client) CreatePlaybook(ctx context.Context, credential string, in PlaybookInput) (Object, error) {
	var resp envelope
	if err := c.do(ctx, "playbook.create", http.MethodPost, "/playbook/create", credential, nil, in, &resp); err != nil {
		return Object{}, err
	}
	return toObject(resp.payload()), nil
}

func (c *Client) GetPlaybook(ctx context.Context, credential, oid string) (map[string]any, error) {
	var resp envelope
	path := query("/playbook/get", map[string]string{"oId": oid})
	if err := c.do(ctx, "playbook.get", http.MethodGet, path, credential, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.payload(), nil
}

// ListPath maps a workspace element kind to its list endpoint.
var ListPath = map[string]string{
	"personas":          "/persona/list",
	"use_cases":         "/use-case/list",
	"client_references": "/reference/list",
	"segments":          "/segment/list",
	"playbooks":         "/playbook/list",
	"competitors":       "/competitor/list",
	"proof_points":      "/proof-point/list",
	"products":          "/product/list",
	"agents":            "/agent/list",
}

func (c *Client) ListElements(ctx context.Context, credential, kind string, limit int) ([]Object, error) {
	path, ok := ListPath[kind]
	if !ok {
		return nil, fmt.Errorf("unknown element kind %q", kind)
	}
	var resp envelope
	path = query(path, map[string]string{"limit": strconv.Itoa(limit)})
	if err := c.do(ctx, kind+".list", http.MethodGet, path, credential, nil, nil, &resp); err != nil {
		return nil, err
	}
	return objects(resp["data"]), nil
}

type contextRunRequest struct {
	AgentOID string `json:"agentOId"`
	Query    string `json:"query"`
}

// RunContextAgent asks a workspace content agent a free-text question.
func (c *Client) RunContextAgent(ctx context.Context, credential, agentOID, prompt string) (string, error) {
	var resp envelope
	in := contextRunRequest{AgentOID: agentOID, Query: prompt}
	if err := c.do(ctx, "context.run", http.MethodPost, "/agents/context/run", credential, nil, in, &resp); err != nil {
		return "", err
	}
	text := lookup(resp, "output", "text", "message", "data.output", "data.text")
	if text == "" {
		return "", fmt.Errorf("agent platform context.run: empty output")
	}
	return text, nil
}

func objects(v any) []Object {
	var out []Object
	switch list := v.(type) {
	case []any:
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, toObject(m))
			}
		}
	case map[string]any:
		// Some list endpoints nest the array one level deeper.
		if inner, ok := list["data"]; ok {
			return objects(inner)
		}
	}
	return out
}
