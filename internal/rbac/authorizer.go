// Package rbac decides whether an authenticated subject may attempt an
// intent at all, before the policy service is consulted. It is a coarse
// role gate; fine-grained decisions belong to the policy evaluator.
package rbac

import (
	"strings"

	"conductor/internal/auth"
	dErrors "conductor/pkg/domain-errors"
)

// RoleSource exposes the required roles for an intent. The skill registry
// implements it.
type RoleSource interface {
	RequiredRoles(intent string) ([]string, bool)
}

type Authorizer struct {
	roles RoleSource
}

func New(roles RoleSource) *Authorizer {
	return &Authorizer{roles: roles}
}

// Authorize checks the subject's roles against the intent's requirements.
//
// An intent with an empty role set is public. An intent not present in the
// role source is left for the dispatcher to reject as unknown, except
// admin.* intents which always require the admin role regardless of
// registration state.
func (a *Authorizer) Authorize(token *auth.Token, intent string) error {
	required, known := a.roles.RequiredRoles(intent)
	if !known {
		if strings.HasPrefix(intent, "admin.") && !token.HasRole("admin") {
			return dErrors.New(dErrors.CodeForbidden, "insufficient role")
		}
		return nil
	}
	if len(required) == 0 {
		return nil
	}
	for _, role := range required {
		if token.HasRole(role) {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeForbidden, "insufficient role")
}
