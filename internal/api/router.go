package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the daemon's HTTP surface on top of httprouter
// (SPEC_FULL.md's DOMAIN STACK: livepeer-catalyst-api is the pack's
// only real HTTP-framework dependency, and the build/submit/status/
// cancel endpoints need path params the way catalyst-api routes its
// callback endpoints). reg may be nil to disable /metrics.
func NewRouter(h *Handler, reg *prometheus.Registry) *httprouter.Router {
	router := httprouter.New()

	router.POST("/api/builds", h.CreateBuild)
	router.GET("/api/builds", h.ListBuilds)
	router.GET("/api/builds/:name", h.BuildStatus)

	router.POST("/api/tasks/:id/cancel", h.CancelTask)
	router.POST("/api/prefixes/:prefix/cancel", h.CancelPrefix)

	router.GET("/api/edits", h.ReadEdits)
	router.PUT("/api/edits", h.WriteEdits)
	router.DELETE("/api/edits", h.DeleteEdits)
	router.POST("/api/edits/promote", h.PromoteEdits)
	router.GET("/api/edits/visibility", h.EditVisibility)

	router.GET("/api/events", h.Events)

	if reg != nil {
		router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	return router
}
