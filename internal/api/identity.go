package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type Role string

const (
	RoleClient       Role = "client"
	RoleProfessional Role = "professional"
	RoleOperator     Role = "operator"
)

// Identity is the caller as asserted by the gateway in front of the API.
type Identity struct {
	CompanyID uuid.UUID
	ActorID   uuid.UUID
	Role      Role
}

// IdentityMiddleware reads X-Company-Id, X-Actor-Id and X-Role. Requests
// without a valid identity are rejected with 401.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		companyID, err := uuid.Parse(r.Header.Get("X-Company-Id"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing_identity", "X-Company-Id must be a valid UUID")
			return
		}
		actorID, err := uuid.Parse(r.Header.Get("X-Actor-Id"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing_identity", "X-Actor-Id must be a valid UUID")
			return
		}
		role := Role(r.Header.Get("X-Role"))
		switch role {
		case RoleClient, RoleProfessional, RoleOperator:
		default:
			writeError(w, http.StatusUnauthorized, "missing_identity", "X-Role must be client, professional or operator")
			return
		}

		id := Identity{CompanyID: companyID, ActorID: actorID, Role: role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

// RequireRole lets through only callers with one of the given roles.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := GetIdentity(r.Context())
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden", "role "+string(id.Role)+" cannot perform this action")
		})
	}
}

func GetIdentity(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey).(Identity)
	return id
}
