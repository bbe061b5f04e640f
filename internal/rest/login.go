package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layersite/layersite/internal/identity"
	"github.com/layersite/layersite/pkg/logger"
)

// loginHandler materializes a session for an already-verified principal
// (bearer token or OIDC id token). Token exchange itself happens outside this
// service; the optional repo_token in the body is the delegated credential the
// ingestion pipeline uses to fetch repository content on the caller's behalf.
// This is the only request path that mutates the session table.
func (a *API) loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.Sessions == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sessions not configured"})
			return
		}
		p := a.Identity.Resolve(c)
		if p == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no verified identity"})
			return
		}
		var body struct {
			RepoToken string `json:"repo_token"`
		}
		_ = c.ShouldBindJSON(&body)
		token, err := a.Sessions.Create(c.Request.Context(), p.Login, body.RepoToken, a.SessionTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session create failed"})
			logger.Errorf("rest: session create for %s: %v", p.Login, err)
			return
		}
		c.SetCookie(identity.CookieName, token, int(a.SessionTTL.Seconds()), "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"login": p.Login, "token": token})
	}
}

func (a *API) logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.Sessions == nil {
			c.JSON(http.StatusOK, gin.H{"status": "OK"})
			return
		}
		if token, err := c.Cookie(identity.CookieName); err == nil && token != "" {
			if err := a.Sessions.Delete(c.Request.Context(), token); err != nil {
				logger.Warnf("rest: session delete failed: %v", err)
			}
		}
		c.SetCookie(identity.CookieName, "", -1, "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	}
}
