package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	require.NotNil(t, harvesterWindowsTotal)
	require.NotNil(t, harvesterCyclesTotal)
}

func TestObserveHelpersDoNotPanic(t *testing.T) {
	Init()

	ObserveWindow("regular", "ok", 10, 3)
	ObserveWindow("catch_up", "failed", 0, 0)
	ObserveFailure()
	ObserveCycle("completed", 2*time.Second)
	ObserveCycle("skipped", 0)
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	ObserveWindow("regular", "ok", 1, 1)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "harvester_windows_total")
}
