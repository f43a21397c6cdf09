package controller

import (
	"context"
	"net/http"
	"strings"

	appErrors "github.com/unclebandit/campaign-portal/internal/errors"
	"github.com/unclebandit/campaign-portal/internal/model"
)

// Identity headers are set by the gateway after authentication.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
	HeaderActingAs  = "X-Acting-As"
)

type actorKey struct{}

// ActorMiddleware resolves the caller once per request. Only admins may act
// as another account.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			respondError(w, loggerOr(nil), err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func actorFromRequest(r *http.Request) (model.Actor, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		return model.Actor{}, appErrors.NewForbidden("missing " + HeaderUserID + " header")
	}
	actor := model.Actor{
		AuthenticatedAccountID: id,
		Email:                  strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
		Role:                   model.RoleClient,
	}
	if strings.EqualFold(strings.TrimSpace(r.Header.Get(HeaderUserRole)), model.RoleAdmin) {
		actor.Role = model.RoleAdmin
	}

	target := strings.TrimSpace(r.Header.Get(HeaderActingAs))
	if target == "" {
		target = strings.TrimSpace(r.URL.Query().Get("impersonate"))
	}
	if target != "" && target != id {
		if !actor.IsAdmin() {
			return model.Actor{}, appErrors.NewForbidden("only admins can act as another account")
		}
		actor.ActingAccountID = target
	}
	return actor, nil
}

func WithActor(ctx context.Context, a model.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the actor ActorMiddleware stored on the context.
func ActorFrom(ctx context.Context) (model.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(model.Actor)
	return a, ok
}

// actor is used by handlers mounted behind ActorMiddleware.
func actor(r *http.Request) model.Actor {
	a, _ := ActorFrom(r.Context())
	return a
}
