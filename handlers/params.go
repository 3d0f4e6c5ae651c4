package handlers

import (
	"strconv"
	"strings"
	"time"

	"moveflow/models"
	"moveflow/services/booking"

	"github.com/gin-gonic/gin"
)

// queryTime parses an RFC 3339 query parameter. A missing optional value is nil.
func queryTime(c *gin.Context, name string, required bool) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		if required {
			return nil, &booking.ValidationError{Field: name, Message: "is required"}
		}
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, &booking.ValidationError{Field: name, Message: "must be an RFC 3339 timestamp"}
	}
	t = t.UTC()
	return &t, nil
}

// queryRange reads the required from/to pair.
func queryRange(c *gin.Context, fromKey, toKey string) (time.Time, time.Time, error) {
	from, err := queryTime(c, fromKey, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := queryTime(c, toKey, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return *from, *to, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &booking.ValidationError{Field: name, Message: "must be an integer"}
	}
	return n, nil
}

// queryStatuses accepts repeated or comma separated status values.
func queryStatuses(c *gin.Context) ([]models.BookingStatus, error) {
	var out []models.BookingStatus
	for _, v := range c.QueryArray("status") {
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			st := models.BookingStatus(s)
			if !st.IsValid() {
				return nil, &booking.ValidationError{Field: "status", Message: "unknown status " + s}
			}
			out = append(out, st)
		}
	}
	return out, nil
}
