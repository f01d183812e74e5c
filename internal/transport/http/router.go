package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func NewRouter(deps Deps) *chi.Mux {
	public := NewPublicHandlers(deps)
	admin := NewAdminHandlers(deps)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", public.Health())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/keeper/status", public.KeeperStatus())
		r.Get("/phase", public.Phase())
		r.Get("/rounds/events", RoundEventsHandler(deps.Events))

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(deps.AdminAPIKey))
			r.Use(BodyCaptureMiddleware(4096))
			r.Post("/admin/rounds", admin.OpenRound())
			r.Post("/admin/rounds/{round_id}/distribute", admin.Distribute())
			r.Get("/admin/rounds/{round_id}/settlement", admin.Settlement())
			r.Post("/admin/keeper/tick", admin.Tick())
			r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	var routes []routeDef
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	fmt.Fprintf(&b, "Registered routes (%d):\n", len(routes))
	for _, rt := range routes {
		fmt.Fprintf(&b, "  %-6s %s\n", rt.Method, rt.Path)
	}
	fmt.Print(b.String())
}
