package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealthReadyHandler(t *testing.T) {
	tests := []struct {
		name string
		deps []Pinger
		want int
	}{
		{"no deps", nil, http.StatusOK},
		{"healthy", []Pinger{pingFunc(func(context.Context) error { return nil })}, http.StatusOK},
		{"failing", []Pinger{pingFunc(func(context.Context) error { return errors.New("down") })}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HealthReadyHandler(tt.deps...)(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
