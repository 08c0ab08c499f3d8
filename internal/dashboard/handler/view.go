package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/poubelles/poubelles-backend/internal/dashboard/state"
	"github.com/poubelles/poubelles-backend/internal/dashboard/view"
	"github.com/poubelles/poubelles-backend/pkg/errors"
	"github.com/poubelles/poubelles-backend/pkg/httputil"
	"github.com/poubelles/poubelles-backend/pkg/logger"
)

// ViewportRequest reports a new viewport width
type ViewportRequest struct {
	Width int `json:"width" validate:"required,min=1"`
}

// ViewHandler exposes the dashboard view and the user interactions that change it
type ViewHandler struct {
	dashboard *state.Dashboard
	widths    chan<- int
	done      <-chan struct{}
	logger    *logger.Logger
}

// NewViewHandler creates a view handler. Viewport changes are sent on widths
// when it is non-nil and applied directly otherwise. done is closed once
// nothing receives from widths any more; it may be nil.
func NewViewHandler(dashboard *state.Dashboard, widths chan<- int, done <-chan struct{}, log *logger.Logger) *ViewHandler {
	return &ViewHandler{
		dashboard: dashboard,
		widths:    widths,
		done:      done,
		logger:    log,
	}
}

// Routes registers the view routes
func (h *ViewHandler) Routes(r chi.Router) {
	r.Get("/view", h.Get)
	r.Post("/view/select/{id}", h.Select)
	r.Delete("/view/selection", h.ClearSelection)
	r.Post("/view/menu/toggle", h.ToggleMenu)
	r.Put("/view/viewport", h.Resize)
}

// Get returns the current page
func (h *ViewHandler) Get(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, view.Build(h.dashboard.Snapshot()))
}

// Select selects a bin from the current snapshot
func (h *ViewHandler) Select(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		httputil.Error(w, errors.BadRequest("invalid bin id").WithDetails(map[string]string{"id": raw}))
		return
	}

	if !h.dashboard.SelectByID(id) {
		httputil.Error(w, errors.NotFound("bin"))
		return
	}

	httputil.JSON(w, http.StatusOK, view.Build(h.dashboard.Snapshot()))
}

// ClearSelection closes the details panel
func (h *ViewHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	h.dashboard.ClearSelection()
	httputil.JSON(w, http.StatusOK, view.Build(h.dashboard.Snapshot()))
}

// ToggleMenu opens or closes the bin list in the compact layout
func (h *ViewHandler) ToggleMenu(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, h.dashboard.ToggleMenu())
}

// Resize reports a viewport resize
func (h *ViewHandler) Resize(w http.ResponseWriter, r *http.Request) {
	var req ViewportRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	if h.widths == nil {
		httputil.JSON(w, http.StatusOK, h.dashboard.Resize(req.Width))
		return
	}

	select {
	case h.widths <- req.Width:
		httputil.JSON(w, http.StatusAccepted, req)
	case <-h.done:
		httputil.Error(w, errors.Unavailable("dashboard is shutting down"))
	case <-r.Context().Done():
		h.logger.Warn().Int("width", req.Width).Msg("viewport update abandoned")
		httputil.Error(w, errors.Unavailable("viewport update abandoned"))
	}
}
