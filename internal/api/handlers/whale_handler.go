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

// MaxRequestBodySize ограничение размера тела запроса (1 MB)
const MaxRequestBodySize = 1 << 20 // 1 MB

// CreateWhaleRequest - тело запроса на добавление кита под наблюдение
type CreateWhaleRequest struct {
	Name        string          `json:"name"`
	WhaleType   models.WhaleType `json:"whale_type"`
	Exchange    string          `json:"exchange,omitempty"`
	ExchangeUID string          `json:"exchange_uid,omitempty"`
	Chain       string          `json:"chain,omitempty"`
	Address     string          `json:"address,omitempty"`
}

// WhaleHandler отвечает за регистрацию и просмотр отслеживаемых трейдеров.
//
// Endpoints:
// - POST /api/v1/whales - добавить кита под наблюдение
// - GET /api/v1/whales/{id} - получить кита по ID
//
// Endpoint со списком всех китов не предоставляется.
type WhaleHandler struct {
	whales *repository.WhaleRepository
}

// NewWhaleHandler создает новый WhaleHandler
func NewWhaleHandler(whales *repository.WhaleRepository) *WhaleHandler {
	return &WhaleHandler{whales: whales}
}

// CreateWhale добавляет кита под наблюдение
// POST /api/v1/whales
func (h *WhaleHandler) CreateWhale(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req CreateWhaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if req.Name == "" {
		h.respondWithError(w, http.StatusBadRequest, "Name is required", "")
		return
	}
	if req.WhaleType != models.WhaleTypeCEXTrader && req.WhaleType != models.WhaleTypeOnchainWallet {
		h.respondWithError(w, http.StatusBadRequest, "whale_type must be CEX_TRADER or ONCHAIN_WALLET", "")
		return
	}

	whale := &models.Whale{
		Name:                   req.Name,
		WhaleType:              req.WhaleType,
		Exchange:               req.Exchange,
		ExchangeUID:            req.ExchangeUID,
		Chain:                  req.Chain,
		Address:                req.Address,
		DataStatus:             models.WhaleStatusActive,
		PollingIntervalSeconds: 60,
		IsActive:               true,
	}

	if err := h.whales.Create(whale); err != nil {
		h.respondWithError(w, http.StatusInternalServerError, "Failed to create whale", err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, whale)
}

// GetWhale возвращает кита по ID
// GET /api/v1/whales/{id}
func (h *WhaleHandler) GetWhale(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid whale id", "")
		return
	}

	whale, err := h.whales.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrWhaleNotFound) {
			h.respondWithError(w, http.StatusNotFound, "Whale not found", "")
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, "Failed to get whale", err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, whale)
}

func (h *WhaleHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
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

func (h *WhaleHandler) respondWithError(w http.ResponseWriter, code int, message string, details string) {
	h.respondWithJSON(w, code, ErrorResponse{Error: message, Details: details})
}
