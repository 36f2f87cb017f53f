package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"copytrader/internal/repository"

	"github.com/gorilla/mux"
)

// PositionHandler exposes read-only visibility into a user's open
// positions, scoped per user. Realized PnL is not exposed.
//
// Endpoints:
// - GET /api/v1/users/{userID}/positions - открытые позиции пользователя
type PositionHandler struct {
	positions *repository.PositionRepository
}

// NewPositionHandler создает новый PositionHandler
func NewPositionHandler(positions *repository.PositionRepository) *PositionHandler {
	return &PositionHandler{positions: positions}
}

// GetOpenPositions возвращает открытые позиции пользователя
// GET /api/v1/users/{userID}/positions
func (h *PositionHandler) GetOpenPositions(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(mux.Vars(r)["userID"])
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid user id", "")
		return
	}

	positions, err := h.positions.GetOpenByUserID(userID)
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, "Failed to get positions", err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, positions)
}

func (h *PositionHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func (h *PositionHandler) respondWithError(w http.ResponseWriter, code int, message string, details string) {
	h.respondWithJSON(w, code, ErrorResponse{Error: message, Details: details})
}
