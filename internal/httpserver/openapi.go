package httpserver

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/robalobadob/globetrotter/internal/catalog"
	"github.com/robalobadob/globetrotter/internal/challenge"
	"github.com/robalobadob/globetrotter/internal/game"
	"github.com/robalobadob/globetrotter/internal/model"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type userResponse struct {
	Success bool       `json:"success"`
	Data    model.User `json:"data"`
}

type registerResponse struct {
	Success bool        `json:"success"`
	Data    registerRes `json:"data"`
	Message string      `json:"message"`
}

type destinationResponse struct {
	Success bool              `json:"success"`
	Data    model.Destination `json:"data"`
	Message string            `json:"message,omitempty"`
}

type dailyResponse struct {
	Success bool     `json:"success"`
	Data    dailyRes `json:"data"`
}

type bulkResponse struct {
	Success bool               `json:"success"`
	Data    catalog.BulkResult `json:"data"`
	Message string             `json:"message"`
}

type sessionResponse struct {
	Success bool              `json:"success"`
	Data    model.GameSession `json:"data"`
}

type sessionsResponse struct {
	Success bool                `json:"success"`
	Data    []model.GameSession `json:"data"`
}

type cluesResponse struct {
	Success bool       `json:"success"`
	Data    game.Clues `json:"data"`
}

type answerResponse struct {
	Success bool              `json:"success"`
	Data    game.AnswerResult `json:"data"`
}

type leaderboardResponse struct {
	Success bool                     `json:"success"`
	Data    []model.LeaderboardEntry `json:"data"`
}

type challengeResponse struct {
	Success bool                `json:"success"`
	Data    challenge.Challenge `json:"data"`
	Message string              `json:"message"`
}

type inviteResponse struct {
	Success bool                    `json:"success"`
	Data    challenge.InviteSummary `json:"data"`
}

type healthResponse struct {
	Success bool           `json:"success"`
	Data    HealthResponse `json:"data"`
}

type idPath struct {
	ID string `path:"id"`
}

type idQuery struct {
	ID string `query:"id" required:"true"`
}

type limitQuery struct {
	Limit int `query:"limit" minimum:"1" maximum:"100"`
}

type invitePath struct {
	InviteCode string `path:"inviteCode"`
}

type patchRequest struct {
	idPath
	catalog.Patch
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Globetrotter API"
	r.Spec.Info.Version = "1.0.0"
	r.Spec.Info.WithDescription("Backend API for the Globetrotter destination guessing game.")

	type op struct {
		method, path, summary, description string
		req                                any
		resp                               any
		status                             int
		errors                             []int
	}
	ops := []op{
		{http.MethodGet, "/health", "Health check", "Returns the health status of backend dependencies.",
			nil, healthResponse{}, http.StatusOK, []int{http.StatusServiceUnavailable}},

		{http.MethodPost, "/user/logout", "Logout", "Clears the auth cookie.",
			nil, ErrorResponse{}, http.StatusOK, nil},
		{http.MethodPost, "/user/register", "Register", "Creates a user by unique name. Returns a token and sets the auth cookie.",
			registerReq{}, registerResponse{}, http.StatusCreated, []int{http.StatusBadRequest, http.StatusConflict}},
		{http.MethodGet, "/user/me", "Current user", "Returns the authenticated user. Requires Bearer token.",
			nil, userResponse{}, http.StatusOK, []int{http.StatusUnauthorized, http.StatusNotFound}},

		{http.MethodGet, "/destinations", "Get destination", "Looks up a destination by id query parameter.",
			idQuery{}, destinationResponse{}, http.StatusOK, []int{http.StatusBadRequest, http.StatusNotFound}},
		{http.MethodGet, "/destinations/{id}", "Get destination", "Looks up a destination by id.",
			idPath{}, destinationResponse{}, http.StatusOK, []int{http.StatusNotFound}},
		{http.MethodGet, "/destinations/random", "Random destination", "Returns a uniformly random destination.",
			nil, destinationResponse{}, http.StatusOK, []int{http.StatusNotFound}},
		{http.MethodGet, "/destinations/daily", "Destination of the day", "Returns the same destination for everyone on a given UTC date.",
			nil, dailyResponse{}, http.StatusOK, []int{http.StatusNotFound}},
		{http.MethodPost, "/destinations", "Create destination", "Adds a destination to the catalog.",
			catalog.Input{}, destinationResponse{}, http.StatusCreated, []int{http.StatusBadRequest}},
		{http.MethodPost, "/destinations/bulk", "Bulk create destinations", "Imports many destinations; invalid rows are counted as failed.",
			bulkReq{}, bulkResponse{}, http.StatusCreated, []int{http.StatusBadRequest}},
		{http.MethodPatch, "/destinations/{id}", "Update destination", "Partially updates a destination. Requires Bearer token.",
			patchRequest{}, destinationResponse{}, http.StatusOK, []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound}},

		{http.MethodPost, "/game/session", "Create game session", "Starts a session on a random destination. Owned by the caller when authenticated.",
			nil, sessionResponse{}, http.StatusCreated, []int{http.StatusUnauthorized, http.StatusNotFound}},
		{http.MethodGet, "/game/session/{id}/clues", "Get clues", "Returns one or two clues and the shuffled answer options.",
			idPath{}, cluesResponse{}, http.StatusOK, []int{http.StatusNotFound}},
		{http.MethodGet, "/game/session/{id}", "Get game session", "Returns a session with its destination.",
			idPath{}, sessionResponse{}, http.StatusOK, []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound}},
		{http.MethodPost, "/game/answer", "Submit answer", "Submits a destination id as the answer to a session.",
			answerReq{}, answerResponse{}, http.StatusOK, []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict}},
		{http.MethodGet, "/game/sessions/mine", "My sessions", "Lists the caller's most recent sessions. Requires Bearer token.",
			limitQuery{}, sessionsResponse{}, http.StatusOK, []int{http.StatusUnauthorized}},
		{http.MethodGet, "/game/leaderboard", "Leaderboard", "Ranks users by completed games and best score.",
			limitQuery{}, leaderboardResponse{}, http.StatusOK, nil},

		{http.MethodPost, "/challenge", "Create challenge", "Issues an invite code carrying the owner's best score. Requires Bearer token.",
			nil, challengeResponse{}, http.StatusCreated, []int{http.StatusUnauthorized, http.StatusNotFound}},
		{http.MethodGet, "/challenge/{inviteCode}", "Get challenge", "Resolves an invite code.",
			invitePath{}, inviteResponse{}, http.StatusOK, []int{http.StatusNotFound, http.StatusGone}},
		{http.MethodPost, "/challenge/join", "Join challenge", "Joins by invite code, named or anonymously, and starts a game session.",
			joinReq{}, challengeResponse{}, http.StatusCreated, []int{http.StatusBadRequest, http.StatusNotFound, http.StatusGone}},
	}

	for _, o := range ops {
		oc, err := r.NewOperationContext(o.method, o.path)
		if err != nil {
			continue
		}
		oc.SetSummary(o.summary)
		oc.SetDescription(o.description)
		if o.req != nil {
			oc.AddReqStructure(o.req)
		}
		oc.AddRespStructure(o.resp, openapi.WithHTTPStatus(o.status))
		for _, code := range o.errors {
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(code))
		}
		_ = r.AddOperation(oc)
	}

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
