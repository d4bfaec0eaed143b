// Package workspace carries the caller's workspace and member identity
// through request contexts. Authentication happens upstream; this package
// only reads the identity headers the gateway forwards.
package workspace

import (
	"context"
	"net/http"
	"strings"
)

const (
	HeaderWorkspaceID = "X-Workspace-ID"
	HeaderMemberID    = "X-Member-ID"
)

type contextKey string

const (
	contextKeyWorkspace contextKey = "workspace_id"
	contextKeyMember    contextKey = "member_id"
)

func WithWorkspaceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyWorkspace, id)
}

func WorkspaceIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKeyWorkspace).(string)
	return id, ok && id != ""
}

func WithMemberID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyMember, id)
}

// MemberIDFromContext returns the acting member, or "" when the caller did
// not identify one.
func MemberIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyMember).(string)
	return id
}

// Middleware rejects requests without a workspace header and stores the
// workspace and member ids in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsID := strings.TrimSpace(r.Header.Get(HeaderWorkspaceID))
		if wsID == "" {
			http.Error(w, "missing "+HeaderWorkspaceID+" header", http.StatusBadRequest)
			return
		}
		ctx := WithWorkspaceID(r.Context(), wsID)
		if memberID := strings.TrimSpace(r.Header.Get(HeaderMemberID)); memberID != "" {
			ctx = WithMemberID(ctx, memberID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
