package service

import (
	"context"
	"errors"

	"github.com/unclebandit/campaign-portal/internal/agent"
	"github.com/unclebandit/campaign-portal/internal/model"
)

// Platform is the subset of the agent platform client the services use.
type Platform interface {
	BuildWorkspace(ctx context.Context, req agent.BuildWorkspaceRequest, idempotencyKey string) (*agent.BuildWorkspaceResult, error)
	CreateReference(ctx context.Context, credential string, in agent.ReferenceInput) (agent.Object, error)
	CreateSegment(ctx context.Context, credential string, in agent.SegmentInput) (agent.Object, error)
	GenerateCompetitors(ctx context.Context, credential string, in agent.CompetitorBatch) ([]agent.Object, error)
	CreatePlaybook(ctx context.Context, credential string, in agent.PlaybookInput) (agent.Object, error)
	GetPlaybook(ctx context.Context, credential, oid string) (map[string]any, error)
	ListElements(ctx context.Context, credential, kind string, limit int) ([]agent.Object, error)
	RunContextAgent(ctx context.Context, credential, agentOID, prompt string) (string, error)
}

var _ Platform = (*agent.Client)(nil)

// toSet keys platform objects by oId for storage on the workspace record.
// Objects without an id are dropped.
func toSet(objs []agent.Object) model.ElementSet {
	set := model.ElementSet{}
	for _, o := range objs {
		if o.OID == "" {
			continue
		}
		payload := map[string]any{}
		for k, v := range o.Data {
			payload[k] = v
		}
		if o.Name != "" {
			payload["name"] = o.Name
		}
		set[o.OID] = payload
	}
	return set
}

// upstreamStatus pulls the HTTP status out of a platform error, or 0.
func upstreamStatus(err error) int {
	var apiErr *agent.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func upstreamDetail(err error) string {
	var apiErr *agent.APIError
	if errors.As(err, &apiErr) && apiErr.Body != "" {
		return apiErr.Body
	}
	return err.Error()
}
