package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tabletop-sync/internal/bootstrap"
	"github.com/DoyleJ11/tabletop-sync/internal/game"
	"github.com/DoyleJ11/tabletop-sync/internal/store"
)

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, response{Success: true, Data: data})
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, response{Success: false, Error: msg})
}

type sessionsAPI struct {
	sessions store.SessionStore
	catalog  store.Catalog
	log      *zap.Logger
}

func (a *sessionsAPI) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		fail(w, http.StatusNotFound, "game session not found")
	case errors.Is(err, bootstrap.ErrNoProfessions), errors.Is(err, bootstrap.ErrNoRoles):
		fail(w, http.StatusBadRequest, err.Error())
	default:
		a.log.Error("session store", zap.String("path", r.URL.Path), zap.Error(err))
		fail(w, http.StatusInternalServerError, "internal error")
	}
}

func (a *sessionsAPI) list(w http.ResponseWriter, r *http.Request) {
	out, err := a.sessions.List(r.Context(), r.URL.Query().Get("campaignId"))
	if err != nil {
		a.storeError(w, r, err)
		return
	}
	ok(w, http.StatusOK, out)
}

// create builds a new session from a campaign and professions.
func (a *sessionsAPI) create(w http.ResponseWriter, r *http.Request) {
	var req bootstrap.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}
	if req.CampaignID == "" {
		fail(w, http.StatusBadRequest, "campaignId is required")
		return
	}

	s, err := bootstrap.NewSession(r.Context(), a.catalog, req)
	if err != nil {
		a.storeError(w, r, err)
		return
	}
	created, err := a.sessions.Create(r.Context(), s)
	if err != nil {
		a.storeError(w, r, err)
		return
	}
	a.log.Info("session created", zap.String("session_id", created.ID), zap.Int("players", len(created.Players)))
	ok(w, http.StatusCreated, created)
}

// importSession stores a complete session document as given.
func (a *sessionsAPI) importSession(w http.ResponseWriter, r *http.Request) {
	var s game.Session
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}
	created, err := a.sessions.Create(r.Context(), s)
	if err != nil {
		a.storeError(w, r, err)
		return
	}
	ok(w, http.StatusCreated, created)
}

func (a *sessionsAPI) get(w http.ResponseWriter, r *http.Request) {
	mode := store.ModeFull
	if r.URL.Query().Get("lite") == "true" {
		mode = store.ModeLite
	}
	s, err := a.sessions.Get(r.Context(), chi.URLParam(r, "id"), mode)
	if err != nil {
		a.storeError(w, r, err)
		return
	}
	ok(w, http.StatusOK, s)
}

func (a *sessionsAPI) update(w http.ResponseWriter, r *http.Request) {
	var p game.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}
	s, err := a.sessions.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		a.storeError(w, r, err)
		return
	}
	ok(w, http.StatusOK, s)
}

func (a *sessionsAPI) delete(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.storeError(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]string{"id": chi.URLParam(r, "id")})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
