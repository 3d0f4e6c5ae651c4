package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"moveflow/database/repository/memory"
	"moveflow/handlers"
	"moveflow/models"
	"moveflow/services/booking"
	"moveflow/services/fleet"
	"moveflow/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const secret = "routes-test-secret"

type apiClient struct {
	t      *testing.T
	router *gin.Engine
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	logger := zap.NewNop()
	bookingSvc := booking.NewDefaultBookingService(store, store, logger)
	fleetSvc := fleet.NewDefaultFleetService(store, logger)

	r := gin.New()
	RegisterRoutes(r, &handlers.HandlerBundle{
		Bookings: handlers.NewBookingHandler(bookingSvc, logger),
		Fleet:    handlers.NewFleetHandler(fleetSvc, bookingSvc, logger),
	}, Options{JWTSecret: secret})
	return &apiClient{t: t, router: r}
}

func (a *apiClient) token(actorType models.ActorType) string {
	a.t.Helper()
	id := "actor-" + string(actorType)
	tok, err := utils.GenerateActorToken(secret, models.Actor{ID: &id, Type: actorType, Name: "Test " + string(actorType)}, time.Hour)
	if err != nil {
		a.t.Fatal(err)
	}
	return tok
}

func (a *apiClient) do(method, path string, actorType models.ActorType, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actorType != "" {
		req.Header.Set("Authorization", "Bearer "+a.token(actorType))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func expect(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d: %s", w.Code, status, w.Body.String())
	}
}

// seed registers an org with pricing, one truck and one verified driver.
func (a *apiClient) seed() (orgID, truckID, driverID string) {
	t := a.t
	t.Helper()

	var org models.Organization
	w := a.do(http.MethodPost, "/api/v1/organizations", models.ActorPlatformAdmin, fleet.CreateOrganizationRequest{Name: "Acme Movers", Email: "ops@acme.test"})
	expect(t, w, http.StatusCreated)
	decode(t, w, &org)

	w = a.do(http.MethodPut, "/api/v1/organizations/"+org.ID+"/pricing", models.ActorPlatformAdmin, fleet.PricingConfigRequest{
		BaseHourlyRate: 100, BaseMileageRate: 2, MinimumCharge: 150,
	})
	expect(t, w, http.StatusOK)

	var truck models.Truck
	w = a.do(http.MethodPost, "/api/v1/trucks", models.ActorMover, fleet.CreateTruckRequest{OrgID: org.ID, LicensePlate: "mv-100", CapacityCubicFeet: 800})
	expect(t, w, http.StatusCreated)
	decode(t, w, &truck)

	var driver models.Driver
	w = a.do(http.MethodPost, "/api/v1/drivers", models.ActorMover, fleet.CreateDriverRequest{OrgID: org.ID, Name: "Sam", LicenseNumber: "DL-1"})
	expect(t, w, http.StatusCreated)
	decode(t, w, &driver)

	w = a.do(http.MethodPut, "/api/v1/drivers/"+driver.ID+"/verification", models.ActorPlatformAdmin, gin.H{"verified": true})
	expect(t, w, http.StatusOK)

	return org.ID, truck.ID, driver.ID
}

func bookingRequest(orgID, truckID string, moveDate time.Time) booking.CreateBookingRequest {
	return booking.CreateBookingRequest{
		OrgID:                  orgID,
		TruckID:                truckID,
		CustomerName:           "Jordan Lee",
		CustomerEmail:          "jordan@example.com",
		CustomerPhone:          "555-0100",
		MoveDate:               moveDate,
		PickupAddress:          "1 Main St",
		DropoffAddress:         "9 Elm St",
		EstimatedDistanceMiles: 10,
		EstimatedDurationHours: 4,
	}
}

type createResponse struct {
	Booking models.Booking       `json:"booking"`
	Price   models.PriceEstimate `json:"price"`
}

func TestBookingLifecycle(t *testing.T) {
	api := newAPI(t)
	orgID, truckID, driverID := api.seed()
	moveDate := time.Now().UTC().Add(96 * time.Hour).Truncate(time.Hour)

	var created createResponse
	w := api.do(http.MethodPost, "/api/v1/bookings", models.ActorCustomer, bookingRequest(orgID, truckID, moveDate))
	expect(t, w, http.StatusCreated)
	decode(t, w, &created)
	if created.Booking.Status != models.StatusConfirmed {
		t.Fatalf("status = %s", created.Booking.Status)
	}
	if created.Booking.EstimatedAmount <= 0 {
		t.Errorf("estimated amount = %v", created.Booking.EstimatedAmount)
	}

	// the same truck two hours later overlaps the first window
	w = api.do(http.MethodPost, "/api/v1/bookings", models.ActorCustomer, bookingRequest(orgID, truckID, moveDate.Add(2*time.Hour)))
	expect(t, w, http.StatusConflict)
	var conflict utils.ErrorResponse
	decode(t, w, &conflict)
	if conflict.Data == nil {
		t.Error("conflict response should carry a suggested slot")
	}

	id := created.Booking.ID

	w = api.do(http.MethodPost, "/api/v1/bookings/"+id+"/start", models.ActorCustomer, nil)
	expect(t, w, http.StatusForbidden)

	var assigned models.Booking
	w = api.do(http.MethodPost, "/api/v1/bookings/"+id+"/driver", models.ActorMover, nil)
	expect(t, w, http.StatusOK)
	decode(t, w, &assigned)
	if assigned.DriverID == nil || *assigned.DriverID != driverID {
		t.Fatalf("driver = %v, want %s", assigned.DriverID, driverID)
	}

	var policy booking.RefundPolicy
	w = api.do(http.MethodGet, "/api/v1/bookings/"+id+"/refund-policy", models.ActorCustomer, nil)
	expect(t, w, http.StatusOK)
	decode(t, w, &policy)
	if policy.Current.Percentage != 100 || !policy.CanCancel {
		t.Errorf("policy = %+v", policy)
	}

	var cancellation models.BookingCancellation
	w = api.do(http.MethodPost, "/api/v1/bookings/"+id+"/cancel", models.ActorCustomer, gin.H{"reason": "plans changed"})
	expect(t, w, http.StatusOK)
	decode(t, w, &cancellation)
	if cancellation.CancelledBy != models.CancelledByCustomer || cancellation.RefundPercentage != 100 {
		t.Errorf("cancellation = %+v", cancellation)
	}

	w = api.do(http.MethodPost, "/api/v1/bookings/"+id+"/cancel", models.ActorCustomer, gin.H{"reason": "again"})
	expect(t, w, http.StatusConflict)

	var history struct {
		History []models.BookingStatusHistory `json:"history"`
	}
	w = api.do(http.MethodGet, "/api/v1/bookings/"+id+"/history", models.ActorCustomer, nil)
	expect(t, w, http.StatusOK)
	decode(t, w, &history)
	if len(history.History) != 1 || history.History[0].ToStatus != models.StatusCancelled {
		t.Errorf("history = %+v", history.History)
	}

	// the freed window can be booked again
	w = api.do(http.MethodPost, "/api/v1/bookings", models.ActorCustomer, bookingRequest(orgID, truckID, moveDate.Add(2*time.Hour)))
	expect(t, w, http.StatusCreated)
}

func TestErrorMapping(t *testing.T) {
	api := newAPI(t)
	orgID, truckID, _ := api.seed()

	w := api.do(http.MethodGet, "/api/v1/bookings/missing", models.ActorCustomer, nil)
	expect(t, w, http.StatusNotFound)

	w = api.do(http.MethodGet, "/api/v1/bookings", "", nil)
	expect(t, w, http.StatusUnauthorized)

	req := bookingRequest(orgID, truckID, time.Now().Add(48*time.Hour))
	req.CustomerEmail = "not-an-email"
	w = api.do(http.MethodPost, "/api/v1/bookings", models.ActorCustomer, req)
	expect(t, w, http.StatusBadRequest)

	var created createResponse
	w = api.do(http.MethodPost, "/api/v1/bookings", models.ActorCustomer, bookingRequest(orgID, truckID, time.Now().UTC().Add(48*time.Hour)))
	expect(t, w, http.StatusCreated)
	decode(t, w, &created)

	w = api.do(http.MethodPost, "/api/v1/bookings/"+created.Booking.ID+"/status", models.ActorMover, gin.H{"status": "pending"})
	expect(t, w, http.StatusBadRequest)

	w = api.do(http.MethodPost, "/api/v1/bookings/"+created.Booking.ID+"/status", models.ActorPlatformAdmin, gin.H{"status": "cancelled"})
	expect(t, w, http.StatusBadRequest)
	w = api.do(http.MethodGet, "/api/v1/bookings/"+created.Booking.ID+"/cancellation", models.ActorCustomer, nil)
	expect(t, w, http.StatusNotFound)
	var still models.Booking
	w = api.do(http.MethodGet, "/api/v1/bookings/"+created.Booking.ID, models.ActorCustomer, nil)
	expect(t, w, http.StatusOK)
	decode(t, w, &still)
	if still.Status != models.StatusConfirmed {
		t.Errorf("status = %s, booking must not be cancelled through /status", still.Status)
	}

	w = api.do(http.MethodPost, "/api/v1/bookings/"+created.Booking.ID+"/driver", models.ActorMover, gin.H{"driver_id": "ghost"})
	expect(t, w, http.StatusNotFound)

	w = api.do(http.MethodPost, "/api/v1/trucks", models.ActorMover, fleet.CreateTruckRequest{OrgID: orgID, LicensePlate: "MV-100"})
	expect(t, w, http.StatusConflict)

	w = api.do(http.MethodGet, "/api/v1/trucks/"+truckID+"/schedule?from=yesterday", models.ActorMover, nil)
	expect(t, w, http.StatusBadRequest)
}

func TestHealthIsPublic(t *testing.T) {
	api := newAPI(t)
	w := api.do(http.MethodGet, "/health", "", nil)
	expect(t, w, http.StatusOK)
}
