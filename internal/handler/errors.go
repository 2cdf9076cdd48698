package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/middleware"
)

// fieldError is the structured body of a rejected request:
// {"error": {"field": ..., "code": ..., "message": ...}}.
type fieldError struct {
	Field    string        `json:"field,omitempty"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Earliest *booking.Date `json:"earliest,omitempty"`
	Latest   *booking.Date `json:"latest,omitempty"`
}

func errorJSON(c echo.Context, status int, fe fieldError) error {
	return c.JSON(status, echo.Map{"error": fe})
}

// bookingError translates an engine error into its HTTP status and body.
func bookingError(c echo.Context, err error) error {
	fe := fieldError{Code: string(booking.Code(err)), Message: err.Error()}
	status := http.StatusInternalServerError

	switch booking.Code(err) {
	case booking.CodeInvalidRange:
		status, fe.Field = http.StatusBadRequest, "dates"
	case booking.CodeOutOfWindow:
		status, fe.Field = http.StatusUnprocessableEntity, "dates"
		var we *booking.WindowError
		if errors.As(err, &we) {
			fe.Earliest, fe.Latest = &we.Earliest, &we.Latest
		}
	case booking.CodeConflict:
		status, fe.Field = http.StatusConflict, "dates"
	case booking.CodeNotFound:
		status = http.StatusNotFound
	case booking.CodeForbidden:
		status = http.StatusForbidden
	case booking.CodeNotModifiable:
		status = http.StatusConflict
	default:
		// driver errors stay in the logs
		fe.Code = string(booking.CodeStoreFailure)
		fe.Message = "internal error"
	}
	return errorJSON(c, status, fe)
}

func paramID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id != 0
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func currentUser(c echo.Context) (uint64, bool) { return middleware.UserID(c) }

// invalidField reports the first failed validation rule against its json field.
func invalidField(err error) fieldError {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		return fieldError{Field: fe.Field(), Code: "INVALID_FIELD", Message: fe.Field() + " failed " + fe.Tag()}
	}
	return fieldError{Code: "INVALID_BODY", Message: "invalid request body"}
}
