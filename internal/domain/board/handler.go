package board

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/triageboard/triageboard/internal/platform/triageapi"
)

type Handler struct {
	svc   *Service
	panel *PanelManager
}

func NewHandler(svc *Service, panel *PanelManager) *Handler {
	return &Handler{svc: svc, panel: panel}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/board", h.GetBoard)
	api.GET("/panel", h.GetPanel)
	api.POST("/panel/:id", h.OpenPanel)
	api.DELETE("/panel", h.ClosePanel)
}

// GetBoard returns the classified columns for every active encounter.
func (h *Handler) GetBoard(c echo.Context) error {
	b, err := h.svc.LoadBoard(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, b)
}

// OpenPanel switches the detail panel to the given encounter and returns its
// initial reconciled dashboard. Live updates follow over the websocket feed.
func (h *Handler) OpenPanel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid encounter id")
	}

	state, err := h.panel.Open(c.Request().Context(), id.String())
	if err != nil {
		return echo.NewHTTPError(panelErrorStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, state)
}

// ClosePanel cancels the live subscription and clears the panel.
func (h *Handler) ClosePanel(c echo.Context) error {
	h.panel.Close()
	return c.NoContent(http.StatusNoContent)
}

// GetPanel returns the panel's current reconciled dashboard.
func (h *Handler) GetPanel(c echo.Context) error {
	state := h.panel.State()
	if state == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no panel open")
	}
	return c.JSON(http.StatusOK, state)
}

// panelErrorStatus maps triage backend failures onto the panel endpoints: a
// backend 404 stays a 404, everything else upstream is a bad gateway.
func panelErrorStatus(err error) int {
	var statusErr *triageapi.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}
