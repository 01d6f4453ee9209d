package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapMirrorsCounters(t *testing.T) {
	before := Snap()
	IncPCANRx()
	IncPCANTx()
	IncFDRx()
	IncFDTx()
	IncBusStatus("bus_off")
	IncError(ErrPCANRead)
	after := Snap()

	assert.Equal(t, before.PCANRx+1, after.PCANRx)
	assert.Equal(t, before.PCANTx+1, after.PCANTx)
	assert.Equal(t, before.FDRx+1, after.FDRx)
	assert.Equal(t, before.FDTx+1, after.FDTx)
	assert.Equal(t, before.BusStatus+1, after.BusStatus)
	assert.Equal(t, before.Errors+1, after.Errors)
}

func TestReadiness(t *testing.T) {
	t.Cleanup(func() { SetReadinessFunc(nil) })
	SetReadinessFunc(nil)
	assert.True(t, IsReady(), "unset readiness reports ready")

	ready := false
	SetReadinessFunc(func() bool { return ready })
	assert.False(t, Ready())
	ready = true
	assert.True(t, Ready())
}

func TestBackendFramesLabelled(t *testing.T) {
	IncSerialTx()
	IncSocketCANRx()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `backend_frames_total{backend="serial",dir="tx"}`)
	assert.Contains(t, body, `backend_frames_total{backend="socketcan",dir="rx"}`)
}

func TestHandlerReady(t *testing.T) {
	t.Cleanup(func() { SetReadinessFunc(nil) })
	h := Handler()

	SetReadinessFunc(func() bool { return false })
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	SetReadinessFunc(func() bool { return true })
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	InitBuildInfo("v1", "abc", "today")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `errors_total{where="trace"} 0`)
	assert.Contains(t, rec.Body.String(), `build_info{commit="abc",date="today",version="v1"} 1`)
}
