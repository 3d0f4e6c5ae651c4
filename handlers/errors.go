package handlers

import (
	"errors"
	"net/http"

	"moveflow/services/booking"
	"moveflow/services/fleet"
	"moveflow/utils"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var (
		validation *booking.ValidationError
		conflict   *booking.BookingConflictError
		transition *booking.InvalidTransitionError
		cancelled  *booking.BookingAlreadyCancelledError
		notCancel  *booking.BookingNotCancellableError
		assignment *booking.AssignmentError
	)

	switch {
	case errors.As(err, &validation):
		utils.JSONError(c, http.StatusBadRequest, "Validation failed", validation.Error())
	case errors.As(err, &conflict):
		var data interface{}
		if conflict.SuggestedSlot != nil {
			data = gin.H{"suggested_slot": conflict.SuggestedSlot}
		}
		utils.JSONErrorWithData(c, http.StatusConflict, "Booking conflict", conflict.Error(), data)
	case errors.As(err, &transition):
		utils.JSONError(c, http.StatusBadRequest, "Invalid status transition", transition.Error())
	case errors.As(err, &cancelled):
		utils.JSONError(c, http.StatusConflict, "Booking already cancelled", cancelled.Error())
	case errors.As(err, &notCancel):
		utils.JSONError(c, http.StatusBadRequest, "Booking cannot be cancelled", notCancel.Error())
	case errors.As(err, &assignment):
		status := http.StatusBadRequest
		if errors.Is(err, booking.ErrNotFound) {
			status = http.StatusNotFound
		}
		utils.JSONError(c, status, "Driver assignment failed", assignment.Error())
	case errors.Is(err, booking.ErrNotFound):
		utils.JSONError(c, http.StatusNotFound, "Not found", err.Error())
	case errors.Is(err, fleet.ErrAlreadyExists):
		utils.JSONError(c, http.StatusConflict, "Already exists", err.Error())
	default:
		utils.JSONError(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
}

func badRequest(c *gin.Context, err error) {
	utils.JSONError(c, http.StatusBadRequest, "Invalid request payload", err.Error())
}
