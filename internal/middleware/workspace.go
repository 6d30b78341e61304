package middleware

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
)

type ContextKey string

const WorkspaceIDKey ContextKey = "workspaceID"

const workspaceSessionKey = "workspaceID"

// Workspace gives every browser session its own bracket workspace. The id lives in the scs
// session, so it survives reloads the way the bracket used to survive in local storage.
func Workspace(sessionManager *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idStr := sessionManager.GetString(r.Context(), workspaceSessionKey)

			id, err := uuid.Parse(idStr)
			if err != nil {
				id = uuid.New()
				sessionManager.Put(r.Context(), workspaceSessionKey, id.String())
			}

			ctx := context.WithValue(r.Context(), WorkspaceIDKey, id.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetWorkspaceIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(WorkspaceIDKey)
	if val == nil {
		return "", false
	}

	id, ok := val.(string)
	return id, ok && id != ""
}

// WithWorkspaceID is used by tests and the CLI to run services without a session.
func WithWorkspaceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, WorkspaceIDKey, id)
}
