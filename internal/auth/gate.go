// Package auth decides whether a principal may mutate a document.
package auth

import (
	"strings"

	"github.com/layersite/layersite/internal/document"
)

// Principal is a resolved request identity.
type Principal struct {
	Login string
}

// Gate evaluates mutation permission once per mutating request, against the
// pre-merge stored document, so a caller cannot escalate by editing owner in
// the same request.
type Gate struct {
	admins      map[string]struct{}
	groupPrefix string
}

// NewGate builds a gate from the configured admin allow-list and the reserved
// prefix marking group placeholder owners.
func NewGate(admins []string, groupPrefix string) *Gate {
	set := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		if a = strings.TrimSpace(a); a != "" {
			set[a] = struct{}{}
		}
	}
	if groupPrefix == "" {
		groupPrefix = "@"
	}
	return &Gate{admins: set, groupPrefix: groupPrefix}
}

// IsAdmin reports whether the principal is in the configured admin set.
func (g *Gate) IsAdmin(p *Principal) bool {
	if p == nil {
		return false
	}
	_, ok := g.admins[p.Login]
	return ok
}

// CanMutate applies the ownership rules in order: admins always may; a
// document with an empty owner list is open to anyone (kept deliberately,
// flagged for product review); otherwise the principal must appear among the
// owners, ignoring group-prefixed entries which are labels, not logins.
func (g *Gate) CanMutate(doc document.Document, p *Principal) bool {
	if g.IsAdmin(p) {
		return true
	}
	owners := doc.Owners()
	if len(owners) == 0 {
		return true
	}
	if p == nil {
		return false
	}
	for _, o := range owners {
		if strings.HasPrefix(o, g.groupPrefix) {
			continue
		}
		if o == p.Login {
			return true
		}
	}
	return false
}
