package server

import (
	"context"
	"net/http"

	"github.com/ludikoapp/ludiko/internal/docstore"
	"github.com/ludikoapp/ludiko/internal/history"
)

type ctxKey int

const (
	ctxKeyPlayer ctxKey = iota
	ctxKeyTeacher
)

const teacherCookieName = "teacher_session"

// playerInfo is what playerAuthMiddleware leaves in the context.
type playerInfo struct {
	Token   string
	Session playerSession
}

func playerAuthMiddleware(store docstore.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, sess, err := playerFromRequest(r, store)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or missing session token")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyPlayer, playerInfo{Token: token, Session: sess})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func teacherAuthMiddleware(store *history.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(teacherCookieName)
			if err != nil || cookie.Value == "" {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			sess, err := store.SessionByID(r.Context(), cookie.Value)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyTeacher, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func playerFrom(r *http.Request) playerInfo {
	return r.Context().Value(ctxKeyPlayer).(playerInfo)
}

func teacherFrom(r *http.Request) history.TeacherSession {
	return r.Context().Value(ctxKeyTeacher).(history.TeacherSession)
}
