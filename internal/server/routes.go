package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, deps Deps, hub *Hub) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Ludiko API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(deps.Logger, deps.DB, deps.Redis))

	r.Route("/api", func(r chi.Router) {
		// Room entry points: no session yet.
		r.Post("/rooms", handleCreateRoom(deps.Rooms, deps.Store))
		r.Get("/rooms/code/{code}", handleRoomLookup(deps.Rooms))
		r.Get("/rooms/code/{code}/qr", handleJoinQR(deps.Rooms, deps.PublicBaseURL))
		r.Post("/rooms/join", handleJoinRoom(deps.Rooms, deps.Store))

		// Streams resolve the token themselves (EventSource cannot set
		// headers; WebSocket mirrors that).
		r.Get("/game/events", handleEvents(deps, hub))
		r.Get("/game/ws", handleWS(deps, hub))

		// Player actions: bearer token required.
		r.Group(func(r chi.Router) {
			r.Use(playerAuthMiddleware(deps.Store))

			r.Route("/rooms/{roomID}", func(r chi.Router) {
				r.Get("/", handleGetRoom(deps.Rooms))
				r.Post("/ready", handleSetReady(deps.Rooms))
				r.Put("/settings", handleUpdateSettings(deps.Rooms))
				r.Post("/start", handleStartGame(deps.Rooms))
				r.Post("/replay", handleReplay(deps.Rooms))
				r.Post("/leave", handleLeave(deps.Rooms, deps.Store, hub))
				r.Get("/results", handleResults(deps.Rooms, deps.Sessions))
			})

			r.Post("/game/answer", handleAnswer(hub))
			r.Post("/game/flip", handleFlip(hub))
			r.Get("/game/state", handleGameState(hub))
		})

		// Records: public reads, same as the classroom projector.
		r.Get("/history", handleRecentHistory(deps.History))
		r.Get("/leaderboard", handleLeaderboard(deps.History))
		r.Get("/prefs", handleGetPrefs(deps.PrefsPath))
		r.Put("/prefs", handlePutPrefs(deps.PrefsPath))

		// Teacher area.
		r.Post("/teacher/register", handleTeacherRegister(deps.History))
		r.Post("/teacher/login", handleTeacherLogin(deps.History))
		r.Post("/teacher/logout", handleTeacherLogout(deps.History))

		r.Group(func(r chi.Router) {
			r.Use(teacherAuthMiddleware(deps.History))

			r.Get("/teacher/me", handleTeacherMe())

			r.Route("/teacher/classes", func(r chi.Router) {
				r.Get("/", handleListClassSessions(deps.History))
				r.Post("/", handleCreateClassSession(deps.History))
				r.Get("/{id}", handleGetClassSession(deps.History))
				r.Delete("/{id}", handleDeleteClassSession(deps.History))
				r.Get("/{id}/results", handleClassSessionResults(deps.History))
				r.Post("/{id}/results", handleRecordClassResults(deps.History, deps))
				r.Get("/{id}/results.csv", handleExportResults(deps.History))
			})

			r.Route("/teacher/templates", func(r chi.Router) {
				r.Get("/", handleListTemplates(deps.History))
				r.Post("/", handleCreateTemplate(deps.History))
				r.Delete("/{id}", handleDeleteTemplate(deps.History))
			})
		})
	})
}
