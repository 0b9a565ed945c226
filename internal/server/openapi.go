package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Ludiko API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the Ludiko classroom quiz platform.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/rooms
	postRooms, _ := r.NewOperationContext(http.MethodPost, "/api/rooms")
	postRooms.SetSummary("Create room")
	postRooms.SetDescription("Creates a room with the caller as host and returns a session token.")
	postRooms.AddReqStructure(CreateRoomRequest{})
	postRooms.AddRespStructure(RoomResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postRooms.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postRooms)

	// GET /api/rooms/code/{code}
	getByCode, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/code/{code}")
	getByCode.SetSummary("Look up room")
	getByCode.SetDescription("Resolves a 6-character room code to a joinable room.")
	getByCode.AddRespStructure(RoomLookupResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getByCode.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getByCode)

	// GET /api/rooms/code/{code}/qr
	getQR, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/code/{code}/qr")
	getQR.SetSummary("Join QR code")
	getQR.SetDescription("PNG QR code pointing at the join page for the room.")
	getQR.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("image/png"))
	getQR.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getQR)

	// POST /api/rooms/join
	postJoin, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/join")
	postJoin.SetSummary("Join room")
	postJoin.SetDescription("Joins a waiting room by code. Returns a session token.")
	postJoin.AddReqStructure(JoinRequest{})
	postJoin.AddRespStructure(RoomResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postJoin)

	// POST /api/rooms/{roomID}/ready
	postReady, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{roomID}/ready")
	postReady.SetSummary("Set ready")
	postReady.SetDescription("Marks the calling player ready or not ready. Requires Bearer token.")
	postReady.AddReqStructure(ReadyRequest{})
	postReady.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	postReady.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postReady)

	// POST /api/rooms/{roomID}/start
	postStart, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{roomID}/start")
	postStart.SetSummary("Start game")
	postStart.SetDescription("Host-only. Moves the room to playing once everyone is ready.")
	postStart.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	postStart.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postStart.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(postStart)

	// POST /api/rooms/{roomID}/replay
	postReplay, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{roomID}/replay")
	postReplay.SetSummary("Play again")
	postReplay.SetDescription("Host-only. Resets scores, clears the session, returns to the lobby.")
	postReplay.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	postReplay.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(postReplay)

	// GET /api/rooms/{roomID}/results
	getResults, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{roomID}/results")
	getResults.SetSummary("Final ranking")
	getResults.SetDescription("Recomputes the ranking from the live progress and finish-time maps.")
	getResults.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	getResults.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getResults)

	// POST /api/game/answer
	postAnswer, _ := r.NewOperationContext(http.MethodPost, "/api/game/answer")
	postAnswer.SetSummary("Submit answer")
	postAnswer.SetDescription("Submit a math or shape answer. Requires Bearer token and a live stream.")
	postAnswer.AddReqStructure(AnswerRequest{})
	postAnswer.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	postAnswer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	postAnswer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postAnswer)

	// POST /api/game/flip
	postFlip, _ := r.NewOperationContext(http.MethodPost, "/api/game/flip")
	postFlip.SetSummary("Flip memory card")
	postFlip.AddReqStructure(FlipRequest{})
	postFlip.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	postFlip.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postFlip)

	// GET /api/game/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/game/events")
	getEvents.SetSummary("SSE state stream")
	getEvents.SetDescription("Server-Sent Events stream of merged room, session, and local state. Pass token as query parameter.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /api/game/ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/api/game/ws")
	getWS.SetSummary("WebSocket state stream")
	getWS.SetDescription("Same stream as /api/game/events over a WebSocket.")
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	// GET /api/history
	getHistory, _ := r.NewOperationContext(http.MethodGet, "/api/history")
	getHistory.SetSummary("Recent games")
	getHistory.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getHistory)

	// GET /api/leaderboard
	getLeaderboard, _ := r.NewOperationContext(http.MethodGet, "/api/leaderboard")
	getLeaderboard.SetSummary("Leaderboard")
	getLeaderboard.SetDescription("Wins and average accuracy aggregated over recent games.")
	getLeaderboard.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getLeaderboard)

	// POST /api/teacher/login
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/api/teacher/login")
	postLogin.SetSummary("Teacher login")
	postLogin.SetDescription("Authenticate with email and password. Sets teacher_session cookie.")
	postLogin.AddReqStructure(TeacherLoginRequest{})
	postLogin.AddRespStructure(TeacherMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLogin)

	// POST /api/teacher/classes
	postClasses, _ := r.NewOperationContext(http.MethodPost, "/api/teacher/classes")
	postClasses.SetSummary("Create class session")
	postClasses.SetDescription("Creates a class session with pre-generated student codes.")
	postClasses.AddReqStructure(CreateClassSessionRequest{})
	postClasses.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	postClasses.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postClasses)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.Marshal(spec)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write(data)
	}
}
