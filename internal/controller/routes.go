package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Controllers groups everything mounted under the authenticated API.
type Controllers struct {
	Campaigns  *CampaignController
	Approvals  *ApprovalController
	Workspaces *WorkspaceController
	Catalog    *CatalogController
}

// Routes builds the authenticated API. Every route resolves the actor first.
func Routes(c Controllers) http.Handler {
	r := chi.NewRouter()
	r.Use(ActorMiddleware)

	r.Route("/workspace", func(r chi.Router) {
		r.Get("/", c.Workspaces.GetWorkspace)
		r.Post("/phase1", c.Workspaces.Phase1)
		r.Post("/phase2", c.Workspaces.Phase2)
	})

	r.Get("/plays", c.Catalog.ListPlays)
	r.Get("/plays/{code}", c.Catalog.GetPlay)

	r.Route("/executions", func(r chi.Router) {
		r.Post("/", c.Campaigns.CreateExecution)
		r.Get("/", c.Campaigns.ListExecutions)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", c.Campaigns.GetExecution)
			r.Delete("/", c.Approvals.DeleteExecution)
			r.Post("/intermediary", c.Campaigns.GenerateIntermediary)
			r.Put("/intermediary", c.Campaigns.UpdateIntermediary)
			r.Post("/assets", c.Campaigns.GenerateAssets)
			r.Post("/highlight", c.Campaigns.Highlight)
			r.Put("/output", c.Approvals.ReviseOutput)

			r.Post("/approvals", c.Approvals.RequestApproval)
			r.Get("/approvals", c.Approvals.ListApprovals)

			r.Post("/prospects", c.Approvals.AttachList)
			r.Post("/prospects/approve", c.Approvals.ApproveList)
			r.Post("/prospects/enrich", c.Campaigns.EnrichProspects)

			r.Put("/launch-status", c.Approvals.UpdateLaunchStatus)
		})
	})

	r.Post("/approvals/{approvalID}/decision", c.Approvals.Decide)
	return r
}
