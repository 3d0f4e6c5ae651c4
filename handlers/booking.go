package handlers

import (
	"net/http"

	bookingRepo "moveflow/database/repository/booking"
	"moveflow/middleware"
	"moveflow/models"
	"moveflow/services/booking"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type BookingHandler struct {
	Service booking.BookingService
	Logger  *zap.Logger
}

func NewBookingHandler(svc booking.BookingService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{Service: svc, Logger: logger}
}

// actor returns the authenticated caller, or the system actor for
// unauthenticated internal routes.
func actor(c *gin.Context) models.Actor {
	if a, ok := middleware.ActorFromContext(c); ok {
		return a
	}
	return models.SystemActor("api")
}

// CheckAvailabilityHandler handles POST /bookings/availability.
func (h *BookingHandler) CheckAvailabilityHandler(c *gin.Context) {
	var req booking.TruckAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.Service.CheckTruckAvailability(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CreateBookingHandler prices the move with the organization's config and writes the booking.
func (h *BookingHandler) CreateBookingHandler(c *gin.Context) {
	var req booking.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	price, err := h.Service.EstimatePrice(ctx, req.OrgID, req.PriceInput())
	if err != nil {
		respondError(c, err)
		return
	}
	b, err := h.Service.CreateBooking(ctx, req, *price)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Logger.Info("Booking created",
		zap.String("booking_id", b.ID),
		zap.String("truck_id", b.TruckID),
		zap.String("status", string(b.Status)),
	)
	c.JSON(http.StatusCreated, gin.H{"booking": b, "price": price})
}

// ListBookingsHandler handles GET /bookings.
func (h *BookingHandler) ListBookingsHandler(c *gin.Context) {
	f := bookingRepo.BookingFilter{
		OrgID:         c.Query("org_id"),
		TruckID:       c.Query("truck_id"),
		DriverID:      c.Query("driver_id"),
		CustomerEmail: c.Query("customer_email"),
	}
	var err error
	if f.Statuses, err = queryStatuses(c); err != nil {
		respondError(c, err)
		return
	}
	if f.From, err = queryTime(c, "from", false); err != nil {
		respondError(c, err)
		return
	}
	if f.To, err = queryTime(c, "to", false); err != nil {
		respondError(c, err)
		return
	}
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		respondError(c, err)
		return
	}
	if f.Offset, err = queryInt(c, "offset"); err != nil {
		respondError(c, err)
		return
	}

	bookings, err := h.Service.ListBookings(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

func (h *BookingHandler) GetBookingHandler(c *gin.Context) {
	b, err := h.Service.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type updateBookingBody struct {
	FinalAmount   *float64 `json:"final_amount"`
	InternalNotes *string  `json:"internal_notes"`
	CustomerNotes *string  `json:"customer_notes"`
}

// UpdateBookingHandler handles PATCH /bookings/:id. Status is not editable here.
func (h *BookingHandler) UpdateBookingHandler(c *gin.Context) {
	var body updateBookingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.Service.UpdateBooking(c.Request.Context(), c.Param("id"), bookingRepo.BookingUpdate{
		FinalAmount:   body.FinalAmount,
		InternalNotes: body.InternalNotes,
		CustomerNotes: body.CustomerNotes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type transitionBody struct {
	Status models.BookingStatus `json:"status" binding:"required"`
	Notes  string               `json:"notes"`
}

// TransitionStatusHandler handles POST /bookings/:id/status. Cancelling goes
// through /cancel so the cancellation record and refund are written.
func (h *BookingHandler) TransitionStatusHandler(c *gin.Context) {
	var body transitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	if body.Status == models.StatusCancelled {
		respondError(c, &booking.ValidationError{Field: "status", Message: "use POST /bookings/:id/cancel to cancel a booking"})
		return
	}
	b, err := h.Service.TransitionStatus(c.Request.Context(), c.Param("id"), body.Status, actor(c), body.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) ConfirmBookingHandler(c *gin.Context) {
	b, err := h.Service.AutoConfirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) StartMoveHandler(c *gin.Context) {
	b, err := h.Service.MarkInProgress(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) CompleteMoveHandler(c *gin.Context) {
	b, err := h.Service.MarkCompleted(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) StatusHistoryHandler(c *gin.Context) {
	history, err := h.Service.GetStatusHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

type cancelBody struct {
	Reason      string             `json:"reason" binding:"required"`
	CancelledBy models.CancelledBy `json:"cancelled_by"`
}

// cancelledByFor derives the cancelling party from the caller's actor type.
func cancelledByFor(t models.ActorType) models.CancelledBy {
	switch t {
	case models.ActorCustomer:
		return models.CancelledByCustomer
	case models.ActorMover:
		return models.CancelledByMover
	}
	return models.CancelledByPlatform
}

// CancelBookingHandler handles POST /bookings/:id/cancel.
func (h *BookingHandler) CancelBookingHandler(c *gin.Context) {
	var body cancelBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	a := actor(c)
	if body.CancelledBy == "" {
		body.CancelledBy = cancelledByFor(a.Type)
	}

	cancellation, err := h.Service.CancelBooking(c.Request.Context(), booking.CancelRequest{
		BookingID:   c.Param("id"),
		Reason:      body.Reason,
		CancelledBy: body.CancelledBy,
		ActorName:   a.Name,
		ActorID:     a.ID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cancellation)
}

func (h *BookingHandler) GetCancellationHandler(c *gin.Context) {
	cancellation, err := h.Service.GetCancellation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cancellation)
}

func (h *BookingHandler) RefundPolicyHandler(c *gin.Context) {
	policy, err := h.Service.RefundPolicyInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, policy)
}

type driverBody struct {
	DriverID *string `json:"driver_id"`
	Reason   string  `json:"reason"`
}

// AssignDriverHandler assigns the given driver, or picks one when driver_id is absent.
func (h *BookingHandler) AssignDriverHandler(c *gin.Context) {
	var body driverBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
	}

	ctx := c.Request.Context()
	var (
		b   *models.Booking
		err error
	)
	if body.DriverID == nil || *body.DriverID == "" {
		b, err = h.Service.AutoAssignDriver(ctx, c.Param("id"))
	} else {
		b, err = h.Service.AssignDriver(ctx, c.Param("id"), *body.DriverID)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) ReassignDriverHandler(c *gin.Context) {
	var body driverBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	if body.DriverID == nil || *body.DriverID == "" {
		respondError(c, &booking.ValidationError{Field: "driver_id", Message: "is required"})
		return
	}
	b, err := h.Service.ReassignDriver(c.Request.Context(), c.Param("id"), *body.DriverID, body.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) UnassignDriverHandler(c *gin.Context) {
	b, err := h.Service.UnassignDriver(c.Request.Context(), c.Param("id"), c.Query("reason"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
