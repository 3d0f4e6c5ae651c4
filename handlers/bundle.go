package handlers

import (
	"net/http"

	"moveflow/utils"

	"github.com/gin-gonic/gin"
)

// HandlerBundle groups the endpoint handlers registered by routes.RegisterRoutes.
type HandlerBundle struct {
	Bookings *BookingHandler
	Fleet    *FleetHandler
	Health   *utils.HealthMonitor
}

// HealthHandler reports the last dependency check; 503 when any store is down.
func (hb *HandlerBundle) HealthHandler(c *gin.Context) {
	if hb.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	st := hb.Health.Status()
	if st.CheckedAt.IsZero() {
		st = hb.Health.Check(c.Request.Context())
	}
	code := http.StatusOK
	if !st.Healthy() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, st)
}
