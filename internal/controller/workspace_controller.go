package controller

import (
	"log/slog"
	"net/http"

	appErrors "github.com/unclebandit/campaign-portal/internal/errors"
	"github.com/unclebandit/campaign-portal/internal/repository"
	"github.com/unclebandit/campaign-portal/internal/service"
)

// WorkspaceController drives provisioning for the acting account.
type WorkspaceController struct {
	Provisioner *service.Provisioner
	Workspaces  repository.WorkspaceRepositoryInterface
	Logger      *slog.Logger
}

func (c *WorkspaceController) Phase1(w http.ResponseWriter, r *http.Request) {
	var body service.Phase1Request
	if err := decode(r, &body); err != nil {
		respondError(w, c.log(), err)
		return
	}
	res, err := c.Provisioner.ProvisionPhase1(r.Context(), actor(r), body)
	if err != nil {
		respondError(w, c.log(), err)
		return
	}
	status := http.StatusCreated
	if res.Reused {
		status = http.StatusOK
	}
	respond(w, status, envelope{
		"workspaceOId": res.WorkspaceOID,
		"offeringOId":  res.OfferingOID,
		"personas":     res.Personas,
		"useCases":     res.UseCases,
		"reused":       res.Reused,
		"degradations": res.Degradations,
	})
}

// Phase2 answers 200 even when some items failed; the per-step results carry
// the failures.
func (c *WorkspaceController) Phase2(w http.ResponseWriter, r *http.Request) {
	var body service.Phase2Request
	if err := decode(r, &body); err != nil {
		respondError(w, c.log(), err)
		return
	}
	res, err := c.Provisioner.ProvisionPhase2(r.Context(), actor(r), body)
	if err != nil {
		respondError(w, c.log(), err)
		return
	}
	partial := false
	for _, s := range res.Steps {
		if s.Partial() {
			partial = true
		}
	}
	respond(w, http.StatusOK, envelope{"steps": res.Steps, "partial": partial})
}

func (c *WorkspaceController) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	ws, err := c.Workspaces.GetByAccount(r.Context(), a.AccountID())
	if err != nil {
		respondError(w, c.log(), err)
		return
	}
	if ws == nil {
		respondError(w, c.log(), appErrors.NewNotFound("workspace", a.AccountID()))
		return
	}
	respond(w, http.StatusOK, envelope{"workspace": ws})
}

func (c *WorkspaceController) log() *slog.Logger {
	return loggerOr(c.Logger)
}
