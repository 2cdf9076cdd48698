package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository"
)

type venueStore interface {
	Create(ctx context.Context, v *model.Venue) error
	GetOwned(ctx context.Context, id, ownerID uint64) (*model.Venue, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]model.Venue, error)
	Update(ctx context.Context, v *model.Venue) error
	Delete(ctx context.Context, id, ownerID uint64, now time.Time) error
}

type spaceStore interface {
	Get(ctx context.Context, id uint64) (*model.Space, error)
	ListAllByVenue(ctx context.Context, venueID uint64) ([]model.Space, error)
	OwnerOf(ctx context.Context, spaceID uint64) (uint64, error)
	Create(ctx context.Context, sp *model.Space) error
	Update(ctx context.Context, sp *model.Space) error
}

// InventoryHandler lets a host manage venues and the spaces inside them.
type InventoryHandler struct {
	Venues venueStore
	Spaces spaceStore
	Log    *slog.Logger
	Now    func() time.Time
}

func NewInventoryHandler(venues venueStore, spaces spaceStore, log *slog.Logger) *InventoryHandler {
	if venues == nil || spaces == nil {
		panic("nil dependency passed to NewInventoryHandler")
	}
	if log == nil {
		log = slog.Default()
	}
	return &InventoryHandler{Venues: venues, Spaces: spaces, Log: log, Now: time.Now}
}

type venueReq struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=10000"`
	Address     string `json:"address" validate:"max=255"`
	City        string `json:"city" validate:"max=100"`
	Country     string `json:"country" validate:"max=100"`
}

func (r *venueReq) trim() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.Address = strings.TrimSpace(r.Address)
	r.City = strings.TrimSpace(r.City)
	r.Country = strings.TrimSpace(r.Country)
}

func (r venueReq) apply(v *model.Venue) {
	v.Name, v.Description, v.Address, v.City, v.Country = r.Name, r.Description, r.Address, r.City, r.Country
}

type spaceReq struct {
	Name        string           `json:"name" validate:"required,max=255"`
	Description string           `json:"description" validate:"max=10000"`
	PricePerDay *decimal.Decimal `json:"price_per_day" validate:"required"`
	CleaningFee *decimal.Decimal `json:"cleaning_fee"`
	IsPublished bool             `json:"is_published"`
}

func (r *spaceReq) trim() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}

// check returns nil when amounts are usable.
func (r *spaceReq) check() *fieldError {
	if r.PricePerDay.IsNegative() {
		return &fieldError{Field: "price_per_day", Code: "INVALID_PRICE", Message: "price_per_day must be non-negative"}
	}
	if r.CleaningFee != nil && r.CleaningFee.IsNegative() {
		return &fieldError{Field: "cleaning_fee", Code: "INVALID_PRICE", Message: "cleaning_fee must be non-negative"}
	}
	return nil
}

func (r spaceReq) apply(sp *model.Space) {
	sp.Name, sp.Description = r.Name, r.Description
	sp.PricePerDay, sp.CleaningFee, sp.IsPublished = *r.PricePerDay, r.CleaningFee, r.IsPublished
}

// inventoryError answers repository failures shared by every inventory route.
func (h *InventoryHandler) inventoryError(c echo.Context, what string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return errorJSON(c, http.StatusNotFound, fieldError{Code: string(booking.CodeNotFound), Message: what + " not found"})
	case errors.Is(err, repository.ErrForbidden):
		return errorJSON(c, http.StatusForbidden, fieldError{Code: string(booking.CodeForbidden), Message: "forbidden"})
	case errors.Is(err, repository.ErrHasActiveReservations):
		return errorJSON(c, http.StatusConflict, fieldError{Code: "ACTIVE_RESERVATIONS", Message: what + " has upcoming bookings"})
	}
	h.Log.Error("inventory store", "what", what, "err", err)
	return errorJSON(c, http.StatusInternalServerError, fieldError{Code: string(booking.CodeStoreFailure), Message: "internal error"})
}

// ListVenues handles GET /v1/host/venues.
func (h *InventoryHandler) ListVenues(c echo.Context) error {
	hostID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	items, err := h.Venues.ListByOwner(c.Request().Context(), hostID)
	if err != nil {
		return h.inventoryError(c, "venue", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CreateVenue handles POST /v1/host/venues.
func (h *InventoryHandler) CreateVenue(c echo.Context) error {
	hostID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	var req venueReq
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, fieldError{Code: "INVALID_BODY", Message: "invalid request body"})
	}
	req.trim()
	if err := c.Validate(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, invalidField(err))
	}
	v := &model.Venue{OwnerID: hostID}
	req.apply(v)
	if err := h.Venues.Create(c.Request().Context(), v); err != nil {
		return h.inventoryError(c, "venue", err)
	}
	h.Log.Info("venue created", "venue_id", v.ID, "owner_id", hostID)
	return c.JSON(http.StatusCreated, echo.Map{"item": v})
}

// UpdateVenue handles PUT /v1/host/venues/:id.
func (h *InventoryHandler) UpdateVenue(c echo.Context) error {
	hostID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, fieldError{Code: "INVALID_ID", Message: "invalid venue id"})
	}
	var req venueReq
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, fieldError{Code: "INVALID_BODY", Message: "invalid request body"})
	}
	req.trim()
	if err := c.Validate(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, invalidField(err))
	}
	ctx := c.Request().Context()
	v, err := h.Venues.GetOwned(ctx, id, hostID)
	if err != nil {
		return h.inventoryError(c, "venue", err)
	}
	req.apply(v)
	if err := h.Venues.Update(ctx, v); err != nil {
		return h.inventoryError(c, "venue", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": v})
}

// DeleteVenue handles DELETE /v1/host/venues/:id.
func (h *InventoryHandler) DeleteVenue(c echo.Context) error {
	hostID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, fieldError{Code: "INVALID_ID", Message: "invalid venue id"})
	}
	if err := h.Venues.Delete(c.Request().Context(), id, hostID, h.Now()); err != nil {
		return h.inventoryError(c, "venue", err)
	}
	h.Log.Info("venue deleted", "venue_id", id, "owner_id", hostID)
	return c.NoContent(http.StatusNoContent)
}

// ListSpaces handles GET /v1/host/venues/:id/spaces, unpublished included.
func (h *InventoryHandler) ListSpaces(c echo.Context) error {
	hostID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, fieldError{Code: "INVALID_ID", Message: "invalid venue id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Venues.GetOwned(ctx, id, hostID); err != nil {
		return h.inventoryError(c, "venue", err)
	}
	items, err := h.Spaces.ListAllByVenue(ctx, id)
	if err != nil {
		return h.inventoryError(c, "space", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CreateSpace handles POST /v1/host/venues/:id/spaces.
func (h *InventoryHandler) CreateSpace(c echo.Context) error {
	hostID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	venueID, ok := paramID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, fieldError{Code: "INVALID_ID", Message: "invalid venue id"})
	}
	var req spaceReq
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, fieldError{Code: "INVALID_BODY", Message: "invalid request body"})
	}
	req.trim()
	if err := c.Validate(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, invalidField(err))
	}
	if fe := req.check(); fe != nil {
		return errorJSON(c, http.StatusBadRequest, *fe)
	}
	ctx := c.Request().Context()
	if _, err := h.Venues.GetOwned(ctx, venueID, hostID); err != nil {
		return h.inventoryError(c, "venue", err)
	}
	sp := &model.Space{VenueID: venueID}
	req.apply(sp)
	if err := h.Spaces.Create(ctx, sp); err != nil {
		return h.inventoryError(c, "space", err)
	}
	h.Log.Info("space created", "space_id", sp.ID, "venue_id", venueID)
	return c.JSON(http.StatusCreated, echo.Map{"item": sp})
}

// UpdateSpace handles PUT /v1/host/spaces/:id. Unpublishing hides the space
// from renters but leaves its bookings in place.
func (h *InventoryHandler) UpdateSpace(c echo.Context) error {
	hostID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, fieldError{Code: "INVALID_ID", Message: "invalid space id"})
	}
	var req spaceReq
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, fieldError{Code: "INVALID_BODY", Message: "invalid request body"})
	}
	req.trim()
	if err := c.Validate(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, invalidField(err))
	}
	if fe := req.check(); fe != nil {
		return errorJSON(c, http.StatusBadRequest, *fe)
	}
	ctx := c.Request().Context()
	owner, err := h.Spaces.OwnerOf(ctx, id)
	if err != nil {
		return h.inventoryError(c, "space", err)
	}
	if owner != hostID {
		return h.inventoryError(c, "space", repository.ErrForbidden)
	}
	sp, err := h.Spaces.Get(ctx, id)
	if err != nil {
		return h.inventoryError(c, "space", err)
	}
	req.apply(sp)
	if err := h.Spaces.Update(ctx, sp); err != nil {
		return h.inventoryError(c, "space", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": sp})
}
