package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"copytrader/internal/models"
	"copytrader/internal/repository"

	"github.com/gorilla/mux"
)

// CreateFollowRequest - тело запроса на подписку на копирование кита
type CreateFollowRequest struct {
	UserID            int                   `json:"user_id"`
	WhaleID           int                   `json:"whale_id"`
	Exchange          string                `json:"exchange"`
	AutoCopy          bool                  `json:"auto_copy"`
	SizingStrategy    models.SizingStrategy `json:"sizing_strategy"`
	CopyTradeSizeUSDT float64               `json:"copy_trade_size_usdt,omitempty"`
	TradeSizePercent  float64               `json:"trade_size_percent,omitempty"`
	MaxLeverage       int                   `json:"max_leverage"`
}

// UpdateSizingRequest - тело запроса на изменение параметров сайзинга подписки
type UpdateSizingRequest struct {
	SizingStrategy    models.SizingStrategy `json:"sizing_strategy"`
	CopyTradeSizeUSDT float64               `json:"copy_trade_size_usdt,omitempty"`
	TradeSizePercent  float64               `json:"trade_size_percent,omitempty"`
	MaxLeverage       int                   `json:"max_leverage"`
}

// FollowHandler управляет подписками пользователей на копирование китов.
//
// Endpoints:
// - POST /api/v1/follows - подписаться на кита
// - GET /api/v1/follows/{id} - получить подписку
// - GET /api/v1/users/{userID}/follows - подписки пользователя
// - PATCH /api/v1/follows/{id}/sizing - изменить параметры сайзинга
// - DELETE /api/v1/follows/{id} - отписаться
type FollowHandler struct {
	follows *repository.WhaleFollowRepository
}

// NewFollowHandler создает новый FollowHandler
func NewFollowHandler(follows *repository.WhaleFollowRepository) *FollowHandler {
	return &FollowHandler{follows: follows}
}

// CreateFollow подписывает пользователя на копирование сделок кита
// POST /api/v1/follows
func (h *FollowHandler) CreateFollow(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req CreateFollowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if req.UserID == 0 || req.WhaleID == 0 {
		h.respondWithError(w, http.StatusBadRequest, "user_id and whale_id are required", "")
		return
	}
	if req.Exchange == "" {
		h.respondWithError(w, http.StatusBadRequest, "exchange is required", "")
		return
	}

	follow := &models.WhaleFollow{
		UserID:            req.UserID,
		WhaleID:           req.WhaleID,
		AutoCopy:          req.AutoCopy,
		CopyTradeSizeUSDT: req.CopyTradeSizeUSDT,
		TradeSizePercent:  req.TradeSizePercent,
		SizingStrategy:    req.SizingStrategy,
		MaxLeverage:       req.MaxLeverage,
		Exchange:          req.Exchange,
	}

	if err := h.follows.Create(follow); err != nil {
		if errors.Is(err, repository.ErrDuplicateFollow) {
			h.respondWithError(w, http.StatusConflict, "Already following this whale", "")
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, "Failed to create follow", err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, follow)
}

// GetFollow возвращает подписку по ID
// GET /api/v1/follows/{id}
func (h *FollowHandler) GetFollow(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid follow id", "")
		return
	}

	follow, err := h.follows.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrWhaleFollowNotFound) {
			h.respondWithError(w, http.StatusNotFound, "Follow not found", "")
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, "Failed to get follow", err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, follow)
}

// GetUserFollows возвращает все подписки пользователя
// GET /api/v1/users/{userID}/follows
func (h *FollowHandler) GetUserFollows(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(mux.Vars(r)["userID"])
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid user id", "")
		return
	}

	follows, err := h.follows.GetByUserID(userID)
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, "Failed to get follows", err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, follows)
}

// UpdateSizing обновляет параметры сайзинга подписки
// PATCH /api/v1/follows/{id}/sizing
func (h *FollowHandler) UpdateSizing(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid follow id", "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req UpdateSizingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if err := h.follows.UpdateSizing(id, req.SizingStrategy, req.CopyTradeSizeUSDT, req.TradeSizePercent, req.MaxLeverage); err != nil {
		h.respondWithError(w, http.StatusInternalServerError, "Failed to update sizing", err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"message": "sizing updated"})
}

// DeleteFollow отменяет подписку на копирование
// DELETE /api/v1/follows/{id}
func (h *FollowHandler) DeleteFollow(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid follow id", "")
		return
	}

	if err := h.follows.Delete(id); err != nil {
		h.respondWithError(w, http.StatusInternalServerError, "Failed to delete follow", err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"message": "follow deleted"})
}

func (h *FollowHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
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

func (h *FollowHandler) respondWithError(w http.ResponseWriter, code int, message string, details string) {
	h.respondWithJSON(w, code, ErrorResponse{Error: message, Details: details})
}
