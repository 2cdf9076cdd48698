package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/repository"
	"github.com/iliyamo/venue-booking/internal/service"
)

type ReviewHandler struct {
	Reviews *service.ReviewService
	Log     *slog.Logger
}

func NewReviewHandler(s *service.ReviewService, log *slog.Logger) *ReviewHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ReviewHandler{Reviews: s, Log: log}
}

type reviewReq struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment"` // length is checked after trimming
}

// Create handles POST /v1/bookings/:id/review.
func (h *ReviewHandler) Create(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, fieldError{Code: "INVALID_ID", Message: "invalid booking id"})
	}
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, fieldError{Code: "INVALID_BODY", Message: "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, fieldError{Field: "rating", Code: "INVALID_RATING", Message: service.ErrInvalidRating.Error()})
	}

	rv, err := h.Reviews.Create(c.Request().Context(), id, uid, req.Rating, req.Comment)
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, echo.Map{"item": rv})
	case errors.Is(err, service.ErrInvalidRating):
		return errorJSON(c, http.StatusBadRequest, fieldError{Field: "rating", Code: "INVALID_RATING", Message: err.Error()})
	case errors.Is(err, service.ErrCommentTooLong):
		return errorJSON(c, http.StatusBadRequest, fieldError{Field: "comment", Code: "INVALID_COMMENT", Message: err.Error()})
	case errors.Is(err, service.ErrNotReviewable):
		return errorJSON(c, http.StatusUnprocessableEntity, fieldError{Code: "NOT_REVIEWABLE", Message: err.Error()})
	case errors.Is(err, repository.ErrReviewExists):
		return errorJSON(c, http.StatusConflict, fieldError{Code: "REVIEW_EXISTS", Message: err.Error()})
	case booking.Code(err) != "" && booking.Code(err) != booking.CodeStoreFailure:
		return bookingError(c, err)
	default:
		h.Log.Error("create review", "reservation_id", id, "err", err)
		return errorJSON(c, http.StatusInternalServerError, fieldError{Code: "STORE_FAILURE", Message: "internal error"})
	}
}

// ListForSpace handles GET /v1/spaces/:id/reviews?limit=N.
func (h *ReviewHandler) ListForSpace(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid space id"})
	}
	items, err := h.Reviews.ListForSpace(c.Request().Context(), id, queryLimit(c, 20))
	if err != nil {
		h.Log.Error("list reviews", "space_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reviews"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
