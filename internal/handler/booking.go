package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/venue-booking/internal/booking"
)

// BookingHandler serves the renter-facing booking endpoints. Every route
// runs behind JWTAuth; the renter is always the token subject.
type BookingHandler struct {
	Engine *booking.Engine
	Log    *slog.Logger
}

func NewBookingHandler(e *booking.Engine, log *slog.Logger) *BookingHandler {
	if e == nil {
		panic("nil engine passed to NewBookingHandler")
	}
	if log == nil {
		log = slog.Default()
	}
	return &BookingHandler{Engine: e, Log: log}
}

// bookingReq accepts both the snake_case fields and the older
// StartDate/EndDate/totalCost names still sent by existing clients.
type bookingReq struct {
	StartDate  string           `json:"start_date"`
	EndDate    string           `json:"end_date"`
	TotalPrice *decimal.Decimal `json:"total_price"`
	Currency   string           `json:"currency" validate:"omitempty,len=3,alpha"`

	LegacyStartDate string           `json:"StartDate"`
	LegacyEndDate   string           `json:"EndDate"`
	LegacyTotalCost *decimal.Decimal `json:"totalCost"`
}

func (r *bookingReq) normalize() {
	if r.StartDate == "" {
		r.StartDate = r.LegacyStartDate
	}
	if r.EndDate == "" {
		r.EndDate = r.LegacyEndDate
	}
	if r.TotalPrice == nil {
		r.TotalPrice = r.LegacyTotalCost
	}
	r.StartDate = strings.TrimSpace(r.StartDate)
	r.EndDate = strings.TrimSpace(r.EndDate)
}

type rescheduleReq struct {
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

type bookingResp struct {
	ID            uint64          `json:"id"`
	SpaceID       uint64          `json:"space_id"`
	StartDate     booking.Date    `json:"start_date"`
	EndDate       booking.Date    `json:"end_date"`
	StartAt       time.Time       `json:"start_at"`
	EndAt         time.Time       `json:"end_at"`
	Status        booking.Status  `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Currency      string          `json:"currency"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toBookingResp(r booking.Reservation) bookingResp {
	return bookingResp{
		ID:            r.ID,
		SpaceID:       r.SpaceID,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		StartAt:       r.StartAt,
		EndAt:         r.EndAt,
		Status:        r.Status,
		PaymentStatus: string(r.PaymentStatus),
		TotalPrice:    r.TotalPrice,
		Currency:      r.Currency,
		CreatedAt:     r.CreatedAt,
	}
}

// parseDates reads a start/end pair of YYYY-MM-DD strings.
func parseDates(start, end string) (booking.Date, booking.Date, *fieldError) {
	s, err := booking.ParseDate(start)
	if err != nil {
		return booking.Date{}, booking.Date{}, &fieldError{Field: "start_date", Code: "INVALID_DATE", Message: "start_date must be YYYY-MM-DD"}
	}
	e, err := booking.ParseDate(end)
	if err != nil {
		return booking.Date{}, booking.Date{}, &fieldError{Field: "end_date", Code: "INVALID_DATE", Message: "end_date must be YYYY-MM-DD"}
	}
	return s, e, nil
}

// Confirm handles POST /v1/spaces/:id/bookings. On success it answers 201
// with the new reservation's id, status and payment label; every rejection
// carries a code under "error".
func (h *BookingHandler) Confirm(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	spaceID, ok := paramID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, fieldError{Field: "space_id", Code: "INVALID_ID", Message: "invalid space id"})
	}

	var req bookingReq
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, fieldError{Code: "INVALID_BODY", Message: "invalid request body"})
	}
	req.normalize()
	if err := c.Validate(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, fieldError{Field: "currency", Code: "INVALID_CURRENCY", Message: "currency must be a 3-letter code"})
	}
	if req.StartDate == "" || req.EndDate == "" {
		return errorJSON(c, http.StatusBadRequest, fieldError{Field: "dates", Code: "REQUIRED", Message: "start_date and end_date are required"})
	}
	if req.TotalPrice == nil || req.TotalPrice.IsNegative() {
		return errorJSON(c, http.StatusBadRequest, fieldError{Field: "total_price", Code: "INVALID_PRICE", Message: "total_price must be a non-negative decimal"})
	}
	start, end, fe := parseDates(req.StartDate, req.EndDate)
	if fe != nil {
		return errorJSON(c, http.StatusBadRequest, *fe)
	}

	res, err := h.Engine.Confirm(c.Request().Context(), booking.Request{
		SpaceID:    spaceID,
		RenterID:   uid,
		StartDate:  start,
		EndDate:    end,
		TotalPrice: *req.TotalPrice,
		Currency:   req.Currency,
	})
	if err != nil {
		if booking.Code(err) == booking.CodeStoreFailure {
			h.Log.Error("confirm booking", "space_id", spaceID, "err", err)
		}
		return bookingError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"reservation_id": res.ID,
		"status":         res.Status,
		"payment_status": res.PaymentStatus,
	})
}

// ListMine handles GET /v1/my-bookings.
func (h *BookingHandler) ListMine(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	items, err := h.Engine.ListForRenter(c.Request().Context(), uid)
	if err != nil {
		h.Log.Error("list bookings", "renter_id", uid, "err", err)
		return bookingError(c, err)
	}
	out := make([]bookingResp, 0, len(items))
	for _, r := range items {
		out = append(out, toBookingResp(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Get handles GET /v1/bookings/:id; 403 when the booking is someone else's.
func (h *BookingHandler) Get(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, fieldError{Code: "INVALID_ID", Message: "invalid booking id"})
	}
	res, err := h.Engine.Get(c.Request().Context(), id, uid)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": toBookingResp(*res)})
}

// Cancel handles POST /v1/bookings/:id/cancel. A booking whose first day has
// arrived can no longer be cancelled (409).
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, fieldError{Code: "INVALID_ID", Message: "invalid booking id"})
	}
	res, err := h.Engine.Cancel(c.Request().Context(), id, uid)
	if err != nil {
		if booking.Code(err) == booking.CodeStoreFailure {
			h.Log.Error("cancel booking", "reservation_id", id, "err", err)
		}
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": toBookingResp(*res)})
}

// Reschedule handles PUT /v1/bookings/:id/dates.
func (h *BookingHandler) Reschedule(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, fieldError{Code: "INVALID_ID", Message: "invalid booking id"})
	}
	var req rescheduleReq
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, fieldError{Code: "INVALID_BODY", Message: "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, fieldError{Field: "dates", Code: "REQUIRED", Message: "start_date and end_date are required"})
	}
	start, end, fe := parseDates(req.StartDate, req.EndDate)
	if fe != nil {
		return errorJSON(c, http.StatusBadRequest, *fe)
	}
	res, err := h.Engine.Reschedule(c.Request().Context(), id, uid, start, end)
	if err != nil {
		if booking.Code(err) == booking.CodeStoreFailure {
			h.Log.Error("reschedule booking", "reservation_id", id, "err", err)
		}
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": toBookingResp(*res)})
}
