package handler

// Host endpoints let the owner of a venue see who booked its spaces and
// settle PENDING requests. Ownership is checked here against the venue's
// owner_id; the engine only knows renters.

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/repository"
)

type spaceOwners interface {
	OwnerOf(ctx context.Context, spaceID uint64) (uint64, error)
}

type HostHandler struct {
	Spaces spaceOwners
	Engine *booking.Engine
	Log    *slog.Logger
}

func NewHostHandler(spaces spaceOwners, e *booking.Engine, log *slog.Logger) *HostHandler {
	if spaces == nil || e == nil {
		panic("nil dependency passed to NewHostHandler")
	}
	if log == nil {
		log = slog.Default()
	}
	return &HostHandler{Spaces: spaces, Engine: e, Log: log}
}

// owns answers 404/403/500 itself and reports false when the caller must stop.
func (h *HostHandler) owns(c echo.Context, spaceID, hostID uint64) (bool, error) {
	owner, err := h.Spaces.OwnerOf(c.Request().Context(), spaceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, errorJSON(c, http.StatusNotFound, fieldError{Code: string(booking.CodeNotFound), Message: "space not found"})
		}
		h.Log.Error("load space owner", "space_id", spaceID, "err", err)
		return false, errorJSON(c, http.StatusInternalServerError, fieldError{Code: string(booking.CodeStoreFailure), Message: "internal error"})
	}
	if owner != hostID {
		return false, errorJSON(c, http.StatusForbidden, fieldError{Code: string(booking.CodeForbidden), Message: "forbidden"})
	}
	return true, nil
}

// ListSpaceBookings handles GET /v1/host/spaces/:id/bookings. It returns the
// active reservations of a space owned by the caller.
func (h *HostHandler) ListSpaceBookings(c echo.Context) error {
	hostID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	spaceID, ok := paramID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, fieldError{Code: "INVALID_ID", Message: "invalid space id"})
	}
	if ok, err := h.owns(c, spaceID, hostID); !ok {
		return err
	}
	items, err := h.Engine.ActiveReservations(c.Request().Context(), spaceID)
	if err != nil {
		return bookingError(c, err)
	}
	out := make([]hostBookingResp, 0, len(items))
	for _, r := range items {
		out = append(out, hostBookingResp{bookingResp: toBookingResp(r), RenterID: r.RenterID})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items": out,
		"count": len(out),
	})
}

type hostBookingResp struct {
	bookingResp
	RenterID uint64 `json:"renter_id"`
}

// Accept handles POST /v1/host/bookings/:id/accept.
func (h *HostHandler) Accept(c echo.Context) error { return h.decide(c, true) }

// Reject handles POST /v1/host/bookings/:id/reject.
func (h *HostHandler) Reject(c echo.Context) error { return h.decide(c, false) }

func (h *HostHandler) decide(c echo.Context, accept bool) error {
	hostID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, fieldError{Code: "INVALID_ID", Message: "invalid booking id"})
	}
	ctx := c.Request().Context()
	res, err := h.Engine.Find(ctx, id)
	if err != nil {
		return bookingError(c, err)
	}
	if ok, err := h.owns(c, res.SpaceID, hostID); !ok {
		return err
	}
	res, err = h.Engine.Decide(ctx, id, accept)
	if err != nil {
		if booking.Code(err) == booking.CodeStoreFailure {
			h.Log.Error("decide booking", "reservation_id", id, "err", err)
		}
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": toBookingResp(*res)})
}
