package routes

import (
	"time"

	"moveflow/handlers"
	"moveflow/middleware"
	"moveflow/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Options carries the router settings that come from config.
type Options struct {
	JWTSecret   string
	CORSOrigins []string
	Limiter     *middleware.LimiterStore
}

var operators = []models.ActorType{models.ActorMover, models.ActorPlatformAdmin, models.ActorSystem}

// RegisterBookingRoutes sets up the booking lifecycle endpoints.
func RegisterBookingRoutes(api *gin.RouterGroup, h *handlers.BookingHandler) {
	bookings := api.Group("/bookings")
	{
		bookings.POST("/availability", h.CheckAvailabilityHandler)
		bookings.POST("", h.CreateBookingHandler)
		bookings.GET("", h.ListBookingsHandler)
		bookings.GET("/:id", h.GetBookingHandler)
		bookings.PATCH("/:id", h.UpdateBookingHandler)

		bookings.POST("/:id/status", h.TransitionStatusHandler)
		bookings.POST("/:id/confirm", h.ConfirmBookingHandler)
		bookings.GET("/:id/history", h.StatusHistoryHandler)

		bookings.POST("/:id/cancel", h.CancelBookingHandler)
		bookings.GET("/:id/cancellation", h.GetCancellationHandler)
		bookings.GET("/:id/refund-policy", h.RefundPolicyHandler)

		// Move execution and driver ops are limited to the fleet side.
		ops := bookings.Group("")
		ops.Use(middleware.RequireActorType(operators...))
		ops.POST("/:id/start", h.StartMoveHandler)
		ops.POST("/:id/complete", h.CompleteMoveHandler)
		ops.POST("/:id/driver", h.AssignDriverHandler)
		ops.PUT("/:id/driver", h.ReassignDriverHandler)
		ops.DELETE("/:id/driver", h.UnassignDriverHandler)
	}
}

// RegisterFleetRoutes sets up organization, truck and driver endpoints.
func RegisterFleetRoutes(api *gin.RouterGroup, h *handlers.FleetHandler) {
	orgs := api.Group("/organizations")
	{
		orgs.GET("/:id", h.GetOrganizationHandler)
		orgs.GET("/:id/drivers/available", h.AvailableDriversHandler)
		orgs.GET("/:id/calendar", h.OrgCalendarHandler)

		orgs.POST("", middleware.RequireActorType(operators...), h.CreateOrganizationHandler)
		orgs.PUT("/:id/pricing", middleware.RequireActorType(operators...), h.UpsertPricingHandler)
	}

	trucks := api.Group("/trucks")
	{
		trucks.GET("/:id/schedule", h.TruckScheduleHandler)
		trucks.POST("", middleware.RequireActorType(operators...), h.CreateTruckHandler)
	}

	drivers := api.Group("/drivers")
	{
		drivers.GET("/:id/schedule", h.DriverScheduleHandler)
		drivers.POST("", middleware.RequireActorType(operators...), h.CreateDriverHandler)
		drivers.PUT("/:id/verification", middleware.RequireActorType(models.ActorPlatformAdmin, models.ActorSystem), h.SetDriverVerificationHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.HealthHandler)
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, opts Options) {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: len(origins) != 1 || origins[0] != "*",
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r, hb)

	api := r.Group("/api/v1")
	if opts.Limiter != nil {
		api.Use(middleware.RateLimitMiddleware(opts.Limiter))
	}
	api.Use(middleware.ActorAuth(opts.JWTSecret))

	RegisterBookingRoutes(api, hb.Bookings)
	RegisterFleetRoutes(api, hb.Fleet)
}
