package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ludikoapp/ludiko/internal/game"
	"github.com/ludikoapp/ludiko/internal/history"
)

type TeacherLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TeacherMeResponse struct {
	TeacherID string `json:"teacherId"`
	Email     string `json:"email"`
}

type TeacherRegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func handleTeacherRegister(store *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TeacherRegisterRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		t, err := store.CreateTeacher(r.Context(), req.Email, strings.TrimSpace(req.Name), req.Password)
		if err != nil {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		writeJSON(w, http.StatusOK, TeacherMeResponse{TeacherID: t.ID, Email: t.Email})
	}
}

func handleTeacherLogin(store *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TeacherLoginRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sess, err := store.Login(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)), req.Password)
		if errors.Is(err, history.ErrBadCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     teacherCookieName,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, TeacherMeResponse{TeacherID: sess.TeacherID, Email: sess.Email})
	}
}

func handleTeacherLogout(store *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(teacherCookieName); err == nil && cookie.Value != "" {
			store.Logout(r.Context(), cookie.Value)
		}
		http.SetCookie(w, &http.Cookie{
			Name:     teacherCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleTeacherMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := teacherFrom(r)
		writeJSON(w, http.StatusOK, TeacherMeResponse{TeacherID: sess.TeacherID, Email: sess.Email})
	}
}

type CreateClassSessionRequest struct {
	Name     string         `json:"name"`
	Students int            `json:"students"`
	Settings *game.Settings `json:"settings"`
}

func handleCreateClassSession(store *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateClassSessionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" || req.Students <= 0 {
			writeError(w, http.StatusBadRequest, "name and a positive student count are required")
			return
		}
		if req.Students > history.MaxStudentCodes {
			writeError(w, http.StatusBadRequest, "student count exceeds the code space")
			return
		}
		settings := game.DefaultSettings()
		if req.Settings != nil {
			settings = *req.Settings
		}
		if err := settings.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		cs, err := store.CreateClassSession(r.Context(), teacherFrom(r).TeacherID, req.Name, req.Students, settings)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, cs)
	}
}

func handleListClassSessions(store *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := store.ClassSessionsByTeacher(r.Context(), teacherFrom(r).TeacherID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if sessions == nil {
			sessions = []history.ClassSession{}
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

// classSessionFromRequest loads the class session in the path and checks
// it belongs to the calling teacher.
func classSessionFromRequest(r *http.Request, store *history.Store) (history.ClassSession, int, string) {
	cs, err := store.ClassSessionByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, history.ErrNotFound) {
		return history.ClassSession{}, http.StatusNotFound, "class session not found"
	}
	if err != nil {
		return history.ClassSession{}, http.StatusInternalServerError, "internal error"
	}
	if cs.TeacherID != teacherFrom(r).TeacherID {
		return history.ClassSession{}, http.StatusForbidden, "not your class session"
	}
	return cs, 0, ""
}

func handleGetClassSession(store *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs, status, msg := classSessionFromRequest(r, store)
		if status != 0 {
			writeError(w, status, msg)
			return
		}
		writeJSON(w, http.StatusOK, cs)
	}
}

func handleDeleteClassSession(store *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs, status, msg := classSessionFromRequest(r, store)
		if status != 0 {
			writeError(w, status, msg)
			return
		}
		if err := store.DeleteClassSession(r.Context(), cs.ID); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleClassSessionResults(store *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs, status, msg := classSessionFromRequest(r, store)
		if status != 0 {
			writeError(w, status, msg)
			return
		}
		results, err := store.ResultsForClassSession(r.Context(), cs.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if results == nil {
			results = []history.SessionResults{}
		}
		writeJSON(w, http.StatusOK, results)
	}
}

func handleExportResults(store *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs, status, msg := classSessionFromRequest(r, store)
		if status != 0 {
			writeError(w, status, msg)
			return
		}
		data, err := store.ExportResultsCSV(r.Context(), cs.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="results.csv"`)
		w.Write(data)
	}
}

type RecordResultsRequest struct {
	RoomID string `json:"roomId"`
}

// handleRecordClassResults snapshots a finished room's results under the
// class session for later review and export.
func handleRecordClassResults(store *history.Store, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs, status, msg := classSessionFromRequest(r, store)
		if status != 0 {
			writeError(w, status, msg)
			return
		}
		var req RecordResultsRequest
		if err := readJSON(r, &req); err != nil || req.RoomID == "" {
			writeError(w, http.StatusBadRequest, "roomId is required")
			return
		}

		rm, err := deps.Rooms.Get(r.Context(), req.RoomID)
		if err != nil {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		sess, err := deps.Sessions.Get(r.Context(), req.RoomID)
		if err != nil || sess == nil {
			writeError(w, http.StatusNotFound, "no game session for room")
			return
		}

		res, err := store.SaveSessionResults(r.Context(), cs.ID, history.BuildRecord(rm, sess))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type CreateTemplateRequest struct {
	Name     string        `json:"name"`
	Settings game.Settings `json:"settings"`
}

func handleCreateTemplate(store *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateTemplateRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if err := req.Settings.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		tpl, err := store.CreateTemplate(r.Context(), teacherFrom(r).TeacherID, req.Name, req.Settings)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, tpl)
	}
}

func handleListTemplates(store *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templates, err := store.TemplatesByTeacher(r.Context(), teacherFrom(r).TeacherID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if templates == nil {
			templates = []history.Template{}
		}
		writeJSON(w, http.StatusOK, templates)
	}
}

func handleDeleteTemplate(store *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
			if errors.Is(err, history.ErrNotFound) {
				writeError(w, http.StatusNotFound, "template not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
