// Package identity resolves a request to a principal. Token exchange and the
// OAuth dance stay outside this service; the chain only verifies what the
// request already carries: a bearer JWT, an OIDC id token, or a session cookie.
package identity

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/layersite/layersite/internal/auth"
	"github.com/layersite/layersite/internal/sessions"
	"github.com/layersite/layersite/internal/tokens"
	"github.com/layersite/layersite/pkg/logger"
)

// CookieName carries the opaque session token for browser clients.
const CookieName = "layersite_session"

// Chain tries each configured mechanism in order and returns the first
// principal found; absence of a principal is allowed (anonymous reads).
type Chain struct {
	Secret   string
	Verifier *OIDCVerifier
	Sessions *sessions.Service
}

// Resolve maps the request to a principal, or nil for anonymous callers.
// The login is also placed on the gin context for downstream middleware.
func (ch *Chain) Resolve(c *gin.Context) *auth.Principal {
	if raw := bearer(c); raw != "" {
		if ch.Secret != "" {
			if login, err := tokens.Verify(ch.Secret, raw); err == nil {
				return ch.principal(c, login)
			}
		}
		if ch.Verifier != nil {
			if login, err := ch.Verifier.Login(c.Request.Context(), raw); err == nil {
				return ch.principal(c, login)
			} else {
				logger.Debugf("identity: oidc verify failed: %v", err)
			}
		}
	}
	if sess := ch.session(c); sess != nil {
		return ch.principal(c, sess.Login)
	}
	return nil
}

// DelegatedToken returns the repository credential bound to the caller's
// session, or "" when the caller has none.
func (ch *Chain) DelegatedToken(c *gin.Context) string {
	if sess := ch.session(c); sess != nil {
		return sess.RepoToken
	}
	return ""
}

func (ch *Chain) session(c *gin.Context) *sessions.Session {
	if ch.Sessions == nil {
		return nil
	}
	token, err := c.Cookie(CookieName)
	if err != nil || token == "" {
		return nil
	}
	sess, err := ch.Sessions.Resolve(c.Request.Context(), token)
	if err != nil {
		logger.Warnf("identity: session lookup failed: %v", err)
		return nil
	}
	return sess
}

func (ch *Chain) principal(c *gin.Context, login string) *auth.Principal {
	if login == "" {
		return nil
	}
	c.Set("login", login)
	return &auth.Principal{Login: login}
}

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
