// Package httpapi exposes the External Surface (C9): a thin chi-based
// request/response layer with no business logic of its own. Every handler
// decodes a request, calls straight into a core component, and maps the
// result (or error) onto an HTTP response.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oraclab/oraccore/internal/backend"
	"github.com/oraclab/oraccore/internal/cache"
	"github.com/oraclab/oraccore/internal/health"
	"github.com/oraclab/oraccore/internal/mapping"
	"github.com/oraclab/oraccore/internal/pipeline"
	"github.com/oraclab/oraccore/internal/timing"
	"github.com/oraclab/oraccore/internal/topic"
)

// Router wires the core's components to HTTP handlers. Construct with [New].
type Router struct {
	pipeline *pipeline.Pipeline
	topics   topic.Store
	mappings mapping.Store
	backends *backend.Registry
	caches   cache.Cache
	times    *timing.Store
	dataDir  string
	health   *health.Handler
}

// New constructs a Router. healthCheckers are evaluated on every /readyz
// request, in the order given.
func New(p *pipeline.Pipeline, topics topic.Store, mappings mapping.Store, backends *backend.Registry, caches cache.Cache, times *timing.Store, dataDir string, healthCheckers ...health.Checker) *Router {
	return &Router{
		pipeline: p,
		topics:   topics,
		mappings: mappings,
		backends: backends,
		caches:   caches,
		times:    times,
		dataDir:  dataDir,
		health:   health.New(healthCheckers...),
	}
}

// Handler returns the fully mounted chi router.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", rt.health.Healthz)
	r.Get("/readyz", rt.health.Readyz)

	r.Post("/generate", rt.handleGenerate)

	r.Route("/backends", func(r chi.Router) {
		r.Get("/", rt.handleListBackends)
		r.Post("/", rt.handleCreateBackend)
		r.Route("/{backendID}", func(r chi.Router) {
			r.Get("/", rt.handleGetBackend)
			r.Delete("/", rt.handleDeleteBackend)
			r.Post("/entities/{entityID}", rt.handleUpsertEntity)
			r.Post("/entities/bulk", rt.handleBulkUpsertEntity)
			r.Post("/device-types", rt.handleAddDeviceType)
			r.Post("/locations", rt.handleAddLocation)
			r.Get("/validate", rt.handleValidateMappings)
			r.Post("/grammar", rt.handleGenerateGrammar)
			r.Get("/entities", rt.handleFetchEntities)
			r.Get("/test-connection", rt.handleTestConnection)
		})
	})

	r.Route("/topics", func(r chi.Router) {
		r.Get("/", rt.handleListTopics)
		r.Route("/{topicID}", func(r chi.Router) {
			r.Get("/", rt.handleGetTopic)
			r.Put("/", rt.handleUpdateTopic)
			r.Delete("/", rt.handleDeleteTopic)
			r.Post("/backend", rt.handleLinkBackend)
			r.Delete("/backend", rt.handleUnlinkBackend)
		})
	})

	r.Post("/heartbeat", rt.handleHeartbeat)

	r.Get("/last-command", rt.handleLastCommand)
	r.Get("/performance-log", rt.handlePerformanceLogRead)
	r.Delete("/performance-log", rt.handlePerformanceLogClear)

	r.Route("/cache", func(r chi.Router) {
		r.Get("/stats", rt.handleCacheStats)
		r.Get("/entries", rt.handleCacheList)
		r.Delete("/", rt.handleCacheClear)
		r.Delete("/last-entry", rt.handleCacheRemoveEntry)
		r.Post("/error-correction", rt.handleTriggerErrorCorrection)
	})

	return r
}
