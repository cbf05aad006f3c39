package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/microcom/cyberquest/pkg/catalog"
	"github.com/microcom/cyberquest/pkg/game"
	"github.com/microcom/cyberquest/pkg/render"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type StartRequest struct {
	UserID     string `json:"user_id"`
	PlayerName string `json:"player_name,omitempty"`
}

type AnswerRequest struct {
	UserID   string `json:"user_id"`
	ItemID   string `json:"item_id"`
	OptionID string `json:"option_id"`
}

type AdvanceRequest struct {
	UserID string `json:"user_id"`
	ItemID string `json:"item_id"`
}

// TurnResponse wraps a turn result with a pre-rendered progress line
// for quiz catalogs.
type TurnResponse struct {
	*game.TurnResult
	Progress string `json:"progress,omitempty"`
}

// GameHandler is the HTTP boundary over the game engine.
// Routes:
// POST /v1/game/start          - begin (or restart) a play-through
// POST /v1/game/answer         - submit an option for the current item
// POST /v1/game/advance        - move past quiz feedback to the next question
// GET  /v1/game/state/{userID} - read-only session snapshot
type GameHandler struct {
	engine  *game.Engine
	catalog *catalog.Catalog
	logger  *slog.Logger
}

func NewGameHandler(engine *game.Engine, c *catalog.Catalog, logger *slog.Logger) *GameHandler {
	return &GameHandler{
		engine:  engine,
		catalog: c,
		logger:  logger,
	}
}

func (h *GameHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/game"), "/")
	switch {
	case path == "start":
		h.requirePost(w, r, h.handleStart)
	case path == "answer":
		h.requirePost(w, r, h.handleAnswer)
	case path == "advance":
		h.requirePost(w, r, h.handleAdvance)
	case strings.HasPrefix(path, "state/"):
		if r.Method != http.MethodGet {
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported for state.")
			return
		}
		h.handleState(w, r, strings.TrimPrefix(path, "state/"))
	default:
		h.writeError(w, http.StatusNotFound, "Unknown game endpoint")
	}
}

func (h *GameHandler) requirePost(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request)) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}
	next(w, r)
}

func (h *GameHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body. Expected JSON with 'user_id' field.")
		return
	}
	if req.UserID == "" {
		h.writeError(w, http.StatusBadRequest, "Invalid request: user_id cannot be empty")
		return
	}

	result, err := h.engine.StartSession(r.Context(), req.UserID, render.DisplayName(req.PlayerName))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeTurn(w, http.StatusOK, result)
}

func (h *GameHandler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body. Expected JSON with 'user_id', 'item_id' and 'option_id' fields.")
		return
	}
	if req.UserID == "" || req.ItemID == "" || req.OptionID == "" {
		h.writeError(w, http.StatusBadRequest, "Invalid request: user_id, item_id and option_id are required")
		return
	}

	result, err := h.engine.SubmitAnswer(r.Context(), req.UserID, req.ItemID, req.OptionID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeTurn(w, http.StatusOK, result)
}

func (h *GameHandler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body. Expected JSON with 'user_id' and 'item_id' fields.")
		return
	}
	if req.UserID == "" || req.ItemID == "" {
		h.writeError(w, http.StatusBadRequest, "Invalid request: user_id and item_id are required")
		return
	}

	result, err := h.engine.Advance(r.Context(), req.UserID, req.ItemID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeTurn(w, http.StatusOK, result)
}

func (h *GameHandler) handleState(w http.ResponseWriter, r *http.Request, userID string) {
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "Invalid request: user ID is required")
		return
	}

	s, err := h.engine.CurrentState(r.Context(), userID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if s == nil {
		h.writeError(w, http.StatusNotFound, "No session for this user")
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(s); err != nil {
		h.logger.Error("Failed to encode session response", "error", err)
	}
}

func (h *GameHandler) writeTurn(w http.ResponseWriter, status int, result *game.TurnResult) {
	resp := TurnResponse{TurnResult: result}
	if h.catalog.Mode() == catalog.ModeQuiz {
		// The engine owns the effective thresholds; configured values
		// may have been normalized to defaults.
		resp.Progress = render.ProgressBar(result.Correct, result.Wrong, h.engine.WinAt(), h.engine.LoseAt())
	}

	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode turn response", "error", err)
	}
}

func (h *GameHandler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrNoActiveSession):
		h.writeError(w, http.StatusNotFound, "No active session. Start a new game.")
	case errors.Is(err, catalog.ErrItemNotFound), errors.Is(err, catalog.ErrOptionNotFound):
		h.logger.Error("Catalog lookup failed during request", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Scenario data is inconsistent")
	default:
		h.logger.Error("Game engine error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *GameHandler) writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}
