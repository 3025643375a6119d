package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDashboardEventsReturns503WithoutEnableRealtime(t *testing.T) {
	m, _ := newTestMonitor(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/events", nil)
	w := httptest.NewRecorder()
	m.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
