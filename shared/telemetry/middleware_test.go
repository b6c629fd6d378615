package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_InjectsTelemetryAndKeepsStatus(t *testing.T) {
	tel := NewTelemetry(BookingServiceConfig)

	r := chi.NewRouter()
	r.Use(Middleware(tel))
	r.Get("/api/v1/bookings/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Same(t, tel, FromContext(r.Context()))
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/bookings/abc/events", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestGetStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", getStatusClass(201))
	assert.Equal(t, "4xx", getStatusClass(409))
	assert.Equal(t, "5xx", getStatusClass(503))
	assert.Equal(t, "unknown", getStatusClass(0))
}
