package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func down() Pinger {
	return pingerFunc(func(context.Context) error { return errors.New("connection refused") })
}

func readiness(t *testing.T, h *HealthHandler) (int, ReadinessResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	return rec.Code, decode[ReadinessResponse](t, rec)
}

func TestLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(nil, nil, "test", "v1").Liveness(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[LivenessResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "v1", resp.Version)
}

func TestReadiness(t *testing.T) {
	code, resp := readiness(t, NewHealthHandler(healthy(), healthy(), "test", "v1"))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)

	code, resp = readiness(t, NewHealthHandler(healthy(), down(), "test", "v1"))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "down", resp.Dependencies["redis"])
	assert.Equal(t, "ok", resp.Dependencies["postgres"])

	code, resp = readiness(t, NewHealthHandler(down(), healthy(), "test", "v1"))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "down", resp.Dependencies["postgres"])
}

func TestRedisPinger(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	require.NoError(t, RedisPinger{Client: rdb}.Ping(context.Background()))

	mr.Close()
	assert.Error(t, RedisPinger{Client: rdb}.Ping(context.Background()))
}
