package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/draftea/booking-system/booking-service/domain"
	"github.com/draftea/booking-system/shared/logging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPReservationClient_Reserve(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantID      string
		wantFailure string
	}{
		{
			name: "reserved",
			handler: func(w http.ResponseWriter, r *http.Request) {
				var req domain.ReservationRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, domain.ResourceHotel, req.Kind)
				assert.NotNil(t, req.Hotel)
				assert.Nil(t, req.Flight)

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(domain.ReservationResult{
					ReservationID:    "HTL-9",
					ConfirmationCode: "ABC123",
					Status:           "confirmed",
					Amount:           decimal.RequireFromString("450.00"),
					Currency:         "USD",
				})
			},
			wantID: "HTL-9",
		},
		{
			name: "error message is passed through",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
				w.Write([]byte(`{"error":"Hotel fully booked"}`))
			},
			wantFailure: "Hotel fully booked",
		},
		{
			name: "plain text error body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("maintenance window\n"))
			},
			wantFailure: "maintenance window",
		},
		{
			name: "undecodable success body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
			wantFailure: "invalid reservation response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/reservations", r.URL.Path)
				tt.handler(w, r)
			}))
			defer server.Close()

			client := NewHTTPReservationClient(domain.ResourceHotel, HTTPReservationConfig{Endpoint: server.URL + "/"}, logging.Discard())
			result, err := client.Reserve(context.Background(), &domain.ReservationRequest{
				Kind:  domain.ResourceHotel,
				Hotel: &domain.HotelDetails{City: "Madrid"},
			})

			if tt.wantFailure != "" {
				var failure *domain.ReservationFailure
				require.ErrorAs(t, err, &failure)
				assert.Equal(t, domain.ResourceHotel, failure.Kind)
				assert.Contains(t, failure.Message, tt.wantFailure)
				assert.Nil(t, result)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantID, result.ReservationID)
			assert.True(t, result.Amount.Equal(decimal.NewFromInt(450)))
		})
	}
}

func TestHTTPReservationClient_Cancel(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "cancelled", status: http.StatusNoContent},
		{name: "already gone", status: http.StatusNotFound},
		{name: "remote failure", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				gotPath = r.URL.Path
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewHTTPReservationClient(domain.ResourceFlight, HTTPReservationConfig{Endpoint: server.URL}, logging.Discard())
			err := client.Cancel(context.Background(), "FLT-1")

			assert.Equal(t, "/reservations/FLT-1", gotPath)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHTTPReservationClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	client := NewHTTPReservationClient(domain.ResourceCar, HTTPReservationConfig{Endpoint: endpoint}, logging.Discard())
	_, err := client.Reserve(context.Background(), &domain.ReservationRequest{Kind: domain.ResourceCar})

	var failure *domain.ReservationFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, domain.ResourceCar, failure.Kind)
}
