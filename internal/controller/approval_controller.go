package controller

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/campaign-portal/internal/service"
)

// ApprovalController exposes review, list and launch transitions.
type ApprovalController struct {
	ApprovalService *service.ApprovalService
	Logger          *slog.Logger
}

func (c *ApprovalController) RequestApproval(w http.ResponseWriter, r *http.Request) {
	var body service.RequestApprovalRequest
	if err := decode(r, &body); err != nil {
		respondError(w, c.log(), err)
		return
	}
	res, err := c.ApprovalService.RequestApproval(r.Context(), actor(r), chi.URLParam(r, "id"), body)
	if err != nil {
		respondError(w, c.log(), err)
		return
	}
	respond(w, http.StatusCreated, envelope{
		"approval":     res.Approval,
		"review_url":   res.ReviewURL,
		"superseded":   res.Superseded,
		"degradations": res.Degradations,
	})
}

func (c *ApprovalController) ListApprovals(w http.ResponseWriter, r *http.Request) {
	approvals, err := c.ApprovalService.ListApprovals(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, c.log(), err)
		return
	}
	respond(w, http.StatusOK, envelope{"approvals": approvals})
}

func (c *ApprovalController) Decide(w http.ResponseWriter, r *http.Request) {
	var body service.DecisionRequest
	if err := decode(r, &body); err != nil {
		respondError(w, c.log(), err)
		return
	}
	res, err := c.ApprovalService.Decide(r.Context(), actor(r), chi.URLParam(r, "approvalID"), body)
	if err != nil {
		respondError(w, c.log(), err)
		return
	}
	respond(w, http.StatusOK, envelope{
		"approval":     res.Approval,
		"placeholders": res.Placeholders,
		"degradations": res.Degradations,
	})
}

func (c *ApprovalController) AttachList(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prospects []service.ProspectInput `json:"prospects"`
	}
	if err := decode(r, &body); err != nil {
		respondError(w, c.log(), err)
		return
	}
	n, err := c.ApprovalService.AttachList(r.Context(), actor(r), chi.URLParam(r, "id"), body.Prospects)
	if err != nil {
		respondError(w, c.log(), err)
		return
	}
	respond(w, http.StatusCreated, envelope{"added": n})
}

func (c *ApprovalController) ApproveList(w http.ResponseWriter, r *http.Request) {
	if err := c.ApprovalService.ApproveList(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, c.log(), err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (c *ApprovalController) UpdateLaunchStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LaunchStatus string `json:"launch_status"`
	}
	if err := decode(r, &body); err != nil {
		respondError(w, c.log(), err)
		return
	}
	res, err := c.ApprovalService.UpdateLaunchStatus(r.Context(), actor(r), chi.URLParam(r, "id"), body.LaunchStatus)
	if err != nil {
		respondError(w, c.log(), err)
		return
	}
	respond(w, http.StatusOK, envelope{"execution": res.Execution, "degradations": res.Degradations})
}

func (c *ApprovalController) ReviseOutput(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OutputContent string `json:"output_content"`
	}
	if err := decode(r, &body); err != nil {
		respondError(w, c.log(), err)
		return
	}
	res, err := c.ApprovalService.ReviseOutput(r.Context(), actor(r), chi.URLParam(r, "id"), body.OutputContent)
	if err != nil {
		respondError(w, c.log(), err)
		return
	}
	respond(w, http.StatusOK, envelope{"execution": res.Execution, "placeholders": res.Placeholders})
}

func (c *ApprovalController) DeleteExecution(w http.ResponseWriter, r *http.Request) {
	if err := c.ApprovalService.DeleteExecution(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, c.log(), err)
		return
	}
	respond(w, http.StatusOK, envelope{"deleted": true})
}

func (c *ApprovalController) log() *slog.Logger {
	return loggerOr(c.Logger)
}
