// internal/handler/review_handler.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/campaign-portal/internal/controller"
	"github.com/unclebandit/campaign-portal/internal/highlight"
	"github.com/unclebandit/campaign-portal/internal/service"
)

// ReviewHandler serves shared review links. The token in the path is the
// only credential, so these routes sit outside the actor middleware.
type ReviewHandler struct {
	Service *service.ApprovalService
	Logger  *slog.Logger
}

type renderedEmail struct {
	Step    int    `json:"step"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Routes mounts GET /{token} and POST /{token}/decision.
func (h *ReviewHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/{token}", h.GetReview)
	r.Post("/{token}/decision", h.Decide)
	return r
}

// GetReview returns the copy under review, with tagged copy rendered as HTML.
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.GetReview(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, err)
		return
	}

	var emails []renderedEmail
	if view.Assets != nil {
		for _, e := range view.Assets.Emails {
			body := e.HighlightedBody
			if body == "" {
				body = e.Body
			}
			emails = append(emails, renderedEmail{Step: e.Step, Subject: e.Subject, HTML: highlight.Render(body)})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":         true,
		"review":          view,
		"rendered_emails": emails,
	})
}

func (h *ReviewHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var payload service.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.Service.DecideByToken(r.Context(), chi.URLParam(r, "token"), payload)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.log().Info("review decided via shared link",
		slog.String("approval_id", res.Approval.ID),
		slog.String("outcome", res.Approval.Status),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":      true,
		"approval":     res.Approval,
		"placeholders": res.Placeholders,
		"degradations": res.Degradations,
	})
}

func (h *ReviewHandler) fail(w http.ResponseWriter, err error) {
	status := controller.StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log().Error("review request failed", slog.String("error", msg))
		msg = "internal server error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": msg})
}

func (h *ReviewHandler) log() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}
