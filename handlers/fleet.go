package handlers

import (
	"net/http"

	"moveflow/services/booking"
	"moveflow/services/fleet"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FleetHandler serves organizations, trucks, drivers and their calendars.
type FleetHandler struct {
	Fleet    fleet.FleetService
	Bookings booking.BookingService
	Logger   *zap.Logger
}

func NewFleetHandler(fleetSvc fleet.FleetService, bookings booking.BookingService, logger *zap.Logger) *FleetHandler {
	return &FleetHandler{Fleet: fleetSvc, Bookings: bookings, Logger: logger}
}

func (h *FleetHandler) CreateOrganizationHandler(c *gin.Context) {
	var req fleet.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	org, err := h.Fleet.CreateOrganization(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Logger.Info("Organization created", zap.String("org_id", org.ID))
	c.JSON(http.StatusCreated, org)
}

func (h *FleetHandler) GetOrganizationHandler(c *gin.Context) {
	org, err := h.Fleet.GetOrganization(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

// AvailableDriversHandler handles GET /organizations/:id/drivers/available?start=&end=.
func (h *FleetHandler) AvailableDriversHandler(c *gin.Context) {
	start, end, err := queryRange(c, "start", "end")
	if err != nil {
		respondError(c, err)
		return
	}
	drivers, err := h.Bookings.AvailableDrivers(c.Request.Context(), c.Param("id"), start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drivers": drivers})
}

func (h *FleetHandler) OrgCalendarHandler(c *gin.Context) {
	from, to, err := queryRange(c, "from", "to")
	if err != nil {
		respondError(c, err)
		return
	}
	statuses, err := queryStatuses(c)
	if err != nil {
		respondError(c, err)
		return
	}
	bookings, err := h.Bookings.OrgCalendar(c.Request.Context(), c.Param("id"), from, to, statuses)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

func (h *FleetHandler) UpsertPricingHandler(c *gin.Context) {
	var req fleet.PricingConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cfg, err := h.Fleet.UpsertPricingConfig(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *FleetHandler) CreateTruckHandler(c *gin.Context) {
	var req fleet.CreateTruckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	truck, err := h.Fleet.CreateTruck(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, truck)
}

func (h *FleetHandler) TruckScheduleHandler(c *gin.Context) {
	from, to, err := queryRange(c, "from", "to")
	if err != nil {
		respondError(c, err)
		return
	}
	bookings, err := h.Bookings.TruckSchedule(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

func (h *FleetHandler) CreateDriverHandler(c *gin.Context) {
	var req fleet.CreateDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	driver, err := h.Fleet.CreateDriver(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, driver)
}

type verificationBody struct {
	Verified *bool `json:"verified" binding:"required"`
}

func (h *FleetHandler) SetDriverVerificationHandler(c *gin.Context) {
	var body verificationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	driver, err := h.Fleet.SetDriverVerified(c.Request.Context(), c.Param("id"), *body.Verified)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, driver)
}

func (h *FleetHandler) DriverScheduleHandler(c *gin.Context) {
	from, to, err := queryRange(c, "from", "to")
	if err != nil {
		respondError(c, err)
		return
	}
	bookings, err := h.Bookings.DriverSchedule(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}
