package auth

import (
	"context"
	"strings"
)

// RBACConfig maps role names to grants. Permissions are
// "<resource>:<action>" with "*" matching any segment:
// "commit:write", "lock:*", "*:read".
type RBACConfig struct {
	Roles map[string][]string

	// DefaultRole applies to identities that carry no roles, so
	// plainly-registered service keys still get the baseline grants.
	DefaultRole string
}

// RBACAuthorizer is the platform's role-based Authorizer. Policy is
// deliberately flat — no inheritance, no per-branch rules; a gateway
// in front of the platform owns anything richer.
type RBACAuthorizer struct {
	config RBACConfig
}

func NewRBACAuthorizer(config RBACConfig) *RBACAuthorizer {
	return &RBACAuthorizer{config: config}
}

func (a *RBACAuthorizer) Name() string { return "rbac" }

func (a *RBACAuthorizer) Authorize(_ context.Context, req *AuthzRequest) error {
	if req.Subject == nil || req.Subject.IsAnonymous() {
		return deny(req, "missing identity")
	}

	roles := req.Subject.Roles
	if len(roles) == 0 && a.config.DefaultRole != "" {
		roles = []string{a.config.DefaultRole}
	}

	for _, role := range roles {
		for _, perm := range a.config.Roles[role] {
			if permMatches(perm, req.Resource, req.Action) {
				return nil
			}
		}
	}
	return deny(req, "no role permits this action")
}

func permMatches(perm, resource, action string) bool {
	res, act, found := strings.Cut(perm, ":")
	if !found {
		return false
	}
	return (res == "*" || res == resource) && (act == "*" || act == action)
}

var _ Authorizer = (*RBACAuthorizer)(nil)
