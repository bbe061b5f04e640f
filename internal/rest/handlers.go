package rest

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/layersite/layersite/internal/auth"
	"github.com/layersite/layersite/internal/document"
	"github.com/layersite/layersite/internal/metric"
	"github.com/layersite/layersite/pkg/logger"
	"github.com/layersite/layersite/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson"
)

func payload(docs []document.Document) []map[string]any {
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Fields)
	}
	return out
}

// listHandler serves a collection GET: translate the repeatable q= tokens,
// find, return the ordered result. Reads are public, no authorization check.
// When repoTextKind is set and repotext=true, full-text matches from that
// kind whose ids are not already present are appended as their primary docs.
func (a *API) listHandler(kind, repoTextKind *document.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokens := c.QueryArray("q")
		filter, err := document.Translate(kind, tokens)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		docs, err := a.Store.Find(c.Request.Context(), kind, filter, kind.DefaultSort)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "find failed"})
			logger.Errorf("rest: find %s: %v", kind.Collection, err)
			return
		}
		if repoTextKind != nil && c.Query("repotext") == "true" {
			docs = a.appendRepoTextMatches(c, kind, repoTextKind, tokens, docs)
		}
		c.JSON(http.StatusOK, payload(docs))
	}
}

func (a *API) appendRepoTextMatches(c *gin.Context, kind, repoTextKind *document.Kind, tokens []string, docs []document.Document) []document.Document {
	filter, err := document.Translate(repoTextKind, tokens)
	if err != nil {
		return docs
	}
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		seen[d.ID()] = struct{}{}
	}
	matched, err := a.Store.Find(c.Request.Context(), repoTextKind, filter, repoTextKind.DefaultSort)
	if err != nil {
		logger.Warnf("rest: repotext find failed: %v", err)
		return docs
	}
	for _, m := range matched {
		if _, ok := seen[m.ID()]; ok {
			continue
		}
		primary, err := a.Store.LoadOne(c.Request.Context(), kind, m.ID())
		if err != nil || primary.IsSkeleton() {
			continue
		}
		seen[m.ID()] = struct{}{}
		docs = append(docs, primary)
	}
	return docs
}

// itemGetHandler returns the stored document, or the id-only skeleton as-is on
// a miss; callers distinguish empty from missing externally.
func (a *API) itemGetHandler(kind *document.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := itemID(c)
		doc, err := a.Store.LoadOne(c.Request.Context(), kind, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "load failed"})
			logger.Errorf("rest: load %s/%s: %v", kind.Collection, id, err)
			return
		}
		c.JSON(http.StatusOK, doc.Fields)
	}
}

// itemPostHandler is the single-document mutation state machine: load the
// pre-merge document, gate, merge, validate the complete record, persist.
// The whole sequence runs under the per-id lock so two concurrent writers
// cannot overwrite each other's merge.
func (a *API) itemPostHandler(kind *document.Kind, after func(c *gin.Context, id string)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id := itemID(c)
		p := a.Identity.Resolve(c)

		key := kind.Collection + "/" + id
		a.locks.Lock(key)
		defer a.locks.Unlock(key)

		existing, err := a.Store.LoadOne(c.Request.Context(), kind, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "load failed"})
			return
		}
		if !a.Gate.CanMutate(existing, p) {
			metrics.MutationsDenied.WithLabelValues(kind.Collection).Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authorized"})
			return
		}
		merged := existing.Merge(body)
		merged.SetID(id)
		if len(merged.Owners()) == 0 && p != nil {
			merged.SetOwners([]string{p.Login})
		}
		if err := merged.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := a.Store.Upsert(c.Request.Context(), kind, merged); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
			logger.Errorf("rest: upsert %s/%s: %v", kind.Collection, id, err)
			return
		}
		a.Sink.Append(a.record(c, "update", kind, id, p))
		if after != nil {
			after(c, id)
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	}
}

// itemDeleteHandler gates on the stored document, then deletes. Deleting a
// nonexistent item is a no-op success.
func (a *API) itemDeleteHandler(kind *document.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := itemID(c)
		p := a.Identity.Resolve(c)

		key := kind.Collection + "/" + id
		a.locks.Lock(key)
		defer a.locks.Unlock(key)

		existing, err := a.Store.LoadOne(c.Request.Context(), kind, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "load failed"})
			return
		}
		if !a.Gate.CanMutate(existing, p) {
			metrics.MutationsDenied.WithLabelValues(kind.Collection).Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authorized"})
			return
		}
		if err := a.Store.Delete(c.Request.Context(), kind, id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
			logger.Errorf("rest: delete %s/%s: %v", kind.Collection, id, err)
			return
		}
		a.Sink.Append(a.record(c, "delete", kind, id, p))
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	}
}

// batchPostHandler implements all-or-nothing admission: every item is loaded
// and gated before anything is persisted; one denial rejects the whole batch.
// The commit phase then persists items one at a time. A failure mid-commit is
// not rolled back; readers may observe a partially committed batch.
func (a *API) batchPostHandler(kind *document.Kind, after func(c *gin.Context, id string)) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := bindBatch(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p := a.Identity.Resolve(c)

		// admission
		ids := make([]string, 0, len(items))
		for _, item := range items {
			id, _ := item[kind.PK].(string)
			if id == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "batch item missing id"})
				return
			}
			existing, err := a.Store.LoadOne(c.Request.Context(), kind, id)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "load failed"})
				return
			}
			if !a.Gate.CanMutate(existing, p) {
				metrics.MutationsDenied.WithLabelValues(kind.Collection).Inc()
				c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authorized"})
				return
			}
			ids = append(ids, id)
		}

		// commit
		for i, item := range items {
			id := ids[i]
			if err := a.commitItem(c, kind, id, item, p); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "item": id})
				return
			}
			a.Sink.Append(a.record(c, "update", kind, id, p))
			if after != nil {
				after(c, id)
			}
		}
		c.JSON(http.StatusOK, gin.H{"saved": len(items)})
	}
}

func (a *API) commitItem(c *gin.Context, kind *document.Kind, id string, item map[string]any, p *auth.Principal) error {
	key := kind.Collection + "/" + id
	a.locks.Lock(key)
	defer a.locks.Unlock(key)

	existing, err := a.Store.LoadOne(c.Request.Context(), kind, id)
	if err != nil {
		return err
	}
	merged := existing.Merge(item)
	merged.SetID(id)
	if len(merged.Owners()) == 0 && p != nil {
		merged.SetOwners([]string{p.Login})
	}
	if err := merged.Validate(); err != nil {
		return err
	}
	return a.Store.Upsert(c.Request.Context(), kind, merged)
}

// metricsListHandler is admin-only; non-admin callers receive an empty list
// rather than an authorization error.
func (a *API) metricsListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := a.Identity.Resolve(c)
		if !a.Gate.IsAdmin(p) {
			c.JSON(http.StatusOK, []map[string]any{})
			return
		}
		docs, err := a.Store.Find(c.Request.Context(), a.Kinds.Metrics, bson.M{}, "")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "find failed"})
			return
		}
		c.JSON(http.StatusOK, payload(docs))
	}
}

// schemaHandler serves the raw schema document for a kind.
func (a *API) schemaHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := strings.TrimSuffix(c.Param("kind"), "/")
		kind := a.Kinds.ByName(name)
		if kind == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown kind"})
			return
		}
		c.JSON(http.StatusOK, kind.Schema)
	}
}

func (a *API) record(c *gin.Context, action string, kind *document.Kind, id string, p *auth.Principal) metric.Record {
	username := ""
	if p != nil {
		username = p.Login
	}
	return metric.Record{
		Action:     action,
		Kind:       kind.Name,
		Item:       id,
		Username:   username,
		RemoteAddr: c.ClientIP(),
	}
}

// bindBatch accepts either a list of partial documents or a single object.
func bindBatch(c *gin.Context) ([]map[string]any, error) {
	var raw json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		return nil, err
	}
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}
	var single map[string]any
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return []map[string]any{single}, nil
}

func itemID(c *gin.Context) string {
	return strings.TrimSuffix(c.Param("id"), "/")
}
