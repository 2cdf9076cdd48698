package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository"
)

type spaceReader interface {
	GetPublished(ctx context.Context, id uint64) (*model.Space, error)
	ListByVenue(ctx context.Context, venueID uint64) ([]model.Space, error)
}

// SpaceHandler serves the public, read-only space endpoints.
type SpaceHandler struct {
	Spaces spaceReader
	Engine *booking.Engine
	Log    *slog.Logger
}

func NewSpaceHandler(spaces spaceReader, e *booking.Engine, log *slog.Logger) *SpaceHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SpaceHandler{Spaces: spaces, Engine: e, Log: log}
}

// GetSpace handles GET /v1/spaces/:id.
func (h *SpaceHandler) GetSpace(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid space id"})
	}
	sp, err := h.Spaces.GetPublished(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "space not found"})
		}
		h.Log.Error("load space", "space_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load space"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": sp})
}

// ListVenueSpaces handles GET /v1/venues/:id/spaces.
func (h *SpaceHandler) ListVenueSpaces(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
	}
	items, err := h.Spaces.ListByVenue(c.Request().Context(), id)
	if err != nil {
		h.Log.Error("list venue spaces", "venue_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load spaces"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Reservations handles GET /v1/spaces/:id/reservations. It answers a bare
// JSON array of the active date ranges of the space, earliest first, as
// canonical-zone dates.
func (h *SpaceHandler) Reservations(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid space id"})
	}
	spans, err := h.Engine.Reservations(c.Request().Context(), id)
	if err != nil {
		if booking.Code(err) == booking.CodeStoreFailure {
			h.Log.Error("list reservations", "space_id", id, "err", err)
		}
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, spans)
}

// Availability handles GET /v1/spaces/:id/availability: the bookable window
// as of today plus the ranges already taken inside it.
func (h *SpaceHandler) Availability(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid space id"})
	}
	spans, err := h.Engine.Reservations(c.Request().Context(), id)
	if err != nil {
		return bookingError(c, err)
	}
	earliest, latest := h.Engine.Window()
	taken := make([]booking.Span, 0, len(spans))
	for _, sp := range spans {
		if sp.End.Before(earliest) || sp.Start.After(latest) {
			continue
		}
		taken = append(taken, sp)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"earliest": earliest,
		"latest":   latest,
		"taken":    taken,
	})
}

func queryLimit(c echo.Context, def int) int {
	n, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
