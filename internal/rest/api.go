// Package rest exposes the document kinds as a schema-validated,
// permission-gated resource collection under /api/v2/.
package rest

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layersite/layersite/internal/auth"
	"github.com/layersite/layersite/internal/document"
	"github.com/layersite/layersite/internal/metric"
	"github.com/layersite/layersite/internal/sessions"
	"github.com/layersite/layersite/internal/store"
	"github.com/layersite/layersite/pkg/metrics"
)

// Identity resolves a request to a principal; nil means anonymous, which is
// allowed for reads.
type Identity interface {
	Resolve(c *gin.Context) *auth.Principal
	DelegatedToken(c *gin.Context) string
}

// IngestTrigger schedules (never awaits) an ingestion run for a layer id.
type IngestTrigger interface {
	Trigger(layerID, repoToken string) bool
}

// Permission is the declared access level of a route. Owner and Admin routes
// are gated inside the handler, since ownership lives on the target document.
type Permission int

const (
	PermPublic Permission = iota
	PermOwner
	PermAdmin
)

// API holds the collaborators every handler needs. No ambient globals: the
// whole application context is constructed at startup and passed in here.
type API struct {
	Store      store.Store
	Kinds      *document.KindSet
	Gate       *auth.Gate
	Identity   Identity
	Sink       metric.Sink
	Ingest     IngestTrigger
	Sessions   *sessions.Service
	SessionTTL time.Duration

	locks *store.KeyedLock
}

func NewAPI(s store.Store, kinds *document.KindSet, gate *auth.Gate, id Identity, sink metric.Sink) *API {
	return &API{
		Store:      s,
		Kinds:      kinds,
		Gate:       gate,
		Identity:   id,
		Sink:       sink,
		SessionTTL: 168 * time.Hour,
		locks:      store.NewKeyedLock(),
	}
}

type route struct {
	method   string
	path     string
	resource string
	perm     Permission
	handler  gin.HandlerFunc
}

// routes is the static routing table, decided at startup. Verb dispatch and
// the required permission level are declared here, not discovered per request.
func (a *API) routes() []route {
	layers, repos := a.Kinds.Layers, a.Kinds.Repos
	return []route{
		{"GET", "/api/v2/layers/", "layers", PermPublic, a.listHandler(layers, repos)},
		{"POST", "/api/v2/layers/", "layers", PermOwner, a.batchPostHandler(layers, a.afterLayerSave)},
		{"GET", "/api/v2/layers/:id/", "layers", PermPublic, a.itemGetHandler(layers)},
		{"POST", "/api/v2/layers/:id/", "layers", PermOwner, a.itemPostHandler(layers, a.afterLayerSave)},
		{"DELETE", "/api/v2/layers/:id/", "layers", PermOwner, a.itemDeleteHandler(layers)},
		{"GET", "/api/v2/repos/:id/", "repos", PermPublic, a.itemGetHandler(repos)},
		{"POST", "/api/v2/repos/:id/", "repos", PermOwner, a.itemPostHandler(repos, nil)},
		{"DELETE", "/api/v2/repos/:id/", "repos", PermOwner, a.itemDeleteHandler(repos)},
		{"GET", "/api/v2/metrics/", "metrics", PermAdmin, a.metricsListHandler()},
		{"GET", "/api/v2/schema/:kind/", "schema", PermPublic, a.schemaHandler()},
		{"POST", "/api/v2/login/", "login", PermPublic, a.loginHandler()},
		{"POST", "/api/v2/logout/", "login", PermPublic, a.logoutHandler()},
	}
}

// Register installs the routing table on the engine.
func (a *API) Register(r *gin.Engine) {
	for _, rt := range a.routes() {
		rt := rt
		r.Handle(rt.method, rt.path, func(c *gin.Context) {
			metrics.RequestsTotal.WithLabelValues(rt.resource, rt.method).Inc()
			rt.handler(c)
		})
	}
}

// afterLayerSave schedules an ingestion run for a freshly saved layer,
// carrying the caller's delegated repository token when one exists. The POST
// response never waits for ingestion.
func (a *API) afterLayerSave(c *gin.Context, id string) {
	if a.Ingest == nil {
		return
	}
	a.Ingest.Trigger(id, a.Identity.DelegatedToken(c))
}
