package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/poubelles/poubelles-backend/internal/bins/service"
	"github.com/poubelles/poubelles-backend/pkg/httputil"
	"github.com/poubelles/poubelles-backend/pkg/logger"
)

// BinHandler handles bin endpoints
type BinHandler struct {
	service *service.BinService
	logger  *logger.Logger
}

// NewBinHandler creates a new bin handler
func NewBinHandler(svc *service.BinService, log *logger.Logger) *BinHandler {
	return &BinHandler{
		service: svc,
		logger:  log,
	}
}

// Routes mounts the bin endpoints. Query parameters are ignored.
func (h *BinHandler) Routes(r chi.Router) {
	r.Get("/poubelles", h.List)
}

// List returns every bin as a bare JSON array
func (h *BinHandler) List(w http.ResponseWriter, r *http.Request) {
	bins, err := h.service.ListBins(r.Context())
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("request_id", httputil.GetRequestID(r.Context())).
			Msg("failed to list bins")

		httputil.ErrorMessage(w, err)
		return
	}

	httputil.Raw(w, http.StatusOK, bins)
}
