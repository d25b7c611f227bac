package encounter

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/triageboard/triageboard/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/encounters", h.ListEncounters)
	api.GET("/encounters/:id", h.GetEncounter)
}

// ListEncounters returns encounters newest first. Supports ?stage= for a
// single-stage filter and ?in_progress=true for the intake board list.
func (h *Handler) ListEncounters(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	if stage := c.QueryParam("stage"); stage != "" {
		encs, total, err := h.svc.ListByStage(ctx, stage, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(encs, total, pg.Limit, pg.Offset))
	}

	if c.QueryParam("in_progress") == "true" {
		encs, total, err := h.svc.ListInProgress(ctx, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(encs, total, pg.Limit, pg.Offset))
	}

	encs, total, err := h.svc.ListEncounters(ctx, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(encs, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetEncounter(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	enc, err := h.svc.GetEncounter(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "encounter not found")
	}
	return c.JSON(http.StatusOK, enc)
}
