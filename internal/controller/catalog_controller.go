package controller

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/campaign-portal/internal/errors"
	"github.com/unclebandit/campaign-portal/internal/model"
)

type PlayCatalog interface {
	List(ctx context.Context, category string, includeInactive bool) ([]model.PlayTemplate, error)
	Get(ctx context.Context, code string) (model.PlayTemplate, bool, error)
}

type CatalogController struct {
	Catalog PlayCatalog
	Logger  *slog.Logger
}

// ListPlays hides inactive plays unless an admin asks for them.
func (c *CatalogController) ListPlays(w http.ResponseWriter, r *http.Request) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))
	if includeInactive && !actor(r).IsAdmin() {
		respondError(w, c.log(), appErrors.NewForbidden("only admins can list inactive plays"))
		return
	}
	plays, err := c.Catalog.List(r.Context(), r.URL.Query().Get("category"), includeInactive)
	if err != nil {
		respondError(w, c.log(), err)
		return
	}
	respond(w, http.StatusOK, envelope{"plays": plays})
}

func (c *CatalogController) GetPlay(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	play, ok, err := c.Catalog.Get(r.Context(), code)
	if err != nil {
		respondError(w, c.log(), err)
		return
	}
	if !ok {
		respondError(w, c.log(), appErrors.NewNotFound("play", code))
		return
	}
	respond(w, http.StatusOK, envelope{"play": play})
}

func (c *CatalogController) log() *slog.Logger {
	return loggerOr(c.Logger)
}
