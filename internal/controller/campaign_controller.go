// internal/controller/campaign_controller.go
package controller

import (
    "log/slog"
    "net/http"
    "strings"

    "github.com/go-chi/chi/v5"

    "github.com/unclebandit/campaign-portal/internal/model"
    "github.com/unclebandit/campaign-portal/internal/service"
)

type CampaignController struct {
    CampaignService *service.CampaignService
    Logger          *slog.Logger
}

func (c *CampaignController) CreateExecution(w http.ResponseWriter, r *http.Request) {
    var body service.CreateExecutionRequest
    if err := decode(r, &body); err != nil {
        respondError(w, c.log(), err)
        return
    }

    execution, err := c.CampaignService.CreateExecution(r.Context(), actor(r), body)
    if err != nil {
        respondError(w, c.log(), err)
        return
    }

    respond(w, http.StatusCreated, envelope{"execution": execution})
}

func (c *CampaignController) ListExecutions(w http.ResponseWriter, r *http.Request) {
    page := queryInt(r, "page", 1)
    pageSize := queryInt(r, "page_size", 20)
    status := r.URL.Query().Get("status")

    executions, pagination, err := c.CampaignService.ListExecutions(r.Context(), actor(r), page, pageSize, status)
    if err != nil {
        respondError(w, c.log(), err)
        return
    }

    respond(w, http.StatusOK, envelope{
        "data":       executions,
        "pagination": pagination,
    })
}

func (c *CampaignController) GetExecution(w http.ResponseWriter, r *http.Request) {
    execution, err := c.CampaignService.GetExecution(r.Context(), actor(r), chi.URLParam(r, "id"))
    if err != nil {
        respondError(w, c.log(), err)
        return
    }

    respond(w, http.StatusOK, envelope{"execution": execution})
}

func (c *CampaignController) GenerateIntermediary(w http.ResponseWriter, r *http.Request) {
    outputs, err := c.CampaignService.GenerateIntermediaryOutputs(r.Context(), actor(r), chi.URLParam(r, "id"))
    if err != nil {
        respondError(w, c.log(), err)
        return
    }

    respond(w, http.StatusOK, envelope{"intermediary_outputs": outputs})
}

func (c *CampaignController) UpdateIntermediary(w http.ResponseWriter, r *http.Request) {
    var body struct {
        IntermediaryOutputs *model.IntermediaryOutputs `json:"intermediary_outputs"`
    }
    if err := decode(r, &body); err != nil {
        respondError(w, c.log(), err)
        return
    }

    outputs, err := c.CampaignService.UpdateIntermediaryOutputs(r.Context(), actor(r), chi.URLParam(r, "id"), body.IntermediaryOutputs)
    if err != nil {
        respondError(w, c.log(), err)
        return
    }

    respond(w, http.StatusOK, envelope{"intermediary_outputs": outputs})
}

func (c *CampaignController) GenerateAssets(w http.ResponseWriter, r *http.Request) {
    var body service.GenerateAssetsRequest
    if err := decode(r, &body); err != nil {
        respondError(w, c.log(), err)
        return
    }

    assets, err := c.CampaignService.GenerateAssets(r.Context(), actor(r), chi.URLParam(r, "id"), body)
    if err != nil {
        respondError(w, c.log(), err)
        return
    }

    respond(w, http.StatusOK, envelope{
        "final_assets": assets,
        "degradations": assets.Degradations,
    })
}

func (c *CampaignController) Highlight(w http.ResponseWriter, r *http.Request) {
    assets, err := c.CampaignService.HighlightExecution(r.Context(), actor(r), chi.URLParam(r, "id"))
    if err != nil {
        respondError(w, c.log(), err)
        return
    }

    respond(w, http.StatusOK, envelope{"final_assets": assets})
}

// EnrichProspects enriches inline, or hands the list to the worker when
// called with ?async=true.
func (c *CampaignController) EnrichProspects(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "id")
    if strings.EqualFold(r.URL.Query().Get("async"), "true") {
        if err := c.CampaignService.QueueEnrichment(r.Context(), actor(r), id); err != nil {
            respondError(w, c.log(), err)
            return
        }
        respond(w, http.StatusAccepted, envelope{"queued": true})
        return
    }

    report, err := c.CampaignService.EnrichProspects(r.Context(), actor(r), id)
    if err != nil {
        respondError(w, c.log(), err)
        return
    }

    respond(w, http.StatusOK, envelope{"enrichment": report})
}

func (c *CampaignController) log() *slog.Logger {
    return loggerOr(c.Logger)
}
