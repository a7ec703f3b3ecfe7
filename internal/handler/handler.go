package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"weekly-rewards-api/internal/ledger"
	"weekly-rewards-api/internal/models"
	"weekly-rewards-api/internal/service"
	"weekly-rewards-api/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: svc,
		logger:  logger,
	}
}

// Routes mounts the API routes on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/users/{userId}/rewards", func(r chi.Router) {
		r.Get("/", h.ListRewards)
		r.Patch("/{availableAt}/redeem", h.RedeemReward)
	})
	r.Get("/health", h.Health)
}

// ListRewards handles GET /users/{userId}/rewards?at=...
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	userID := validation.SanitizeString(chi.URLParam(r, "userId"))
	at := r.URL.Query().Get("at")

	rewards, err := h.service.ListRewards(r.Context(), userID, at)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, models.DataResponse{Data: rewards})
}

// RedeemReward handles PATCH /users/{userId}/rewards/{availableAt}/redeem
func (h *Handler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	userID := validation.SanitizeString(chi.URLParam(r, "userId"))
	availableAt := chi.URLParam(r, "availableAt")

	reward, err := h.service.RedeemReward(r.Context(), userID, availableAt)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, models.DataResponse{Data: reward})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// statusForKind maps redemption rejections onto HTTP statuses.
var statusForKind = map[ledger.Kind]int{
	ledger.KindUserUnknown:        http.StatusNotFound,
	ledger.KindRewardNotActivated: http.StatusNotFound,
	ledger.KindAlreadyRedeemed:    http.StatusForbidden,
	ledger.KindNotYetAvailable:    http.StatusForbidden,
	ledger.KindExpired:            http.StatusForbidden,
}

func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var rejection *ledger.Error
	if errors.As(err, &rejection) {
		status, ok := statusForKind[rejection.Kind]
		if !ok {
			status = http.StatusForbidden
		}
		h.respondError(w, status, rejection.Message)
		return
	}

	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		h.respondError(w, http.StatusBadRequest, verr.Error())
		return
	}

	h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	h.respondError(w, http.StatusInternalServerError, "internal server error")
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: models.ErrorBody{Message: message}})
}
