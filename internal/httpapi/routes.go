package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tabletop-sync/internal/hub"
	"github.com/DoyleJ11/tabletop-sync/internal/logging"
	"github.com/DoyleJ11/tabletop-sync/internal/store"
	"github.com/DoyleJ11/tabletop-sync/internal/ws"
)

type Deps struct {
	Hub      *hub.Hub
	Sessions store.SessionStore
	Catalog  store.Catalog
	WS       ws.Options
	Log      *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	d.Log = logging.OrNop(d.Log)
	if d.WS.Log == nil {
		d.WS.Log = d.Log
	}
	api := &sessionsAPI{sessions: d.Sessions, catalog: d.Catalog, log: d.Log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(d.Hub, d.WS))

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", api.list)
		r.Post("/", api.create)
		r.Post("/import", api.importSession)
		r.Get("/{id}", api.get)
		r.Put("/{id}", api.update)
		r.Delete("/{id}", api.delete)
	})
	return r
}
