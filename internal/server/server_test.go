package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"payroll-core/internal/handler"
	"payroll-core/internal/ledger"
	"payroll-core/internal/payroll"
)

type stubRunner struct{}

func (stubRunner) Sender() common.Address { return common.Address{} }

func (stubRunner) RunBatchFromRoster(context.Context, string) (*payroll.RunResult, error) {
	return &payroll.RunResult{}, nil
}

func (stubRunner) RunBatchFromPayload(context.Context, string, []byte) (*payroll.RunResult, error) {
	return &payroll.RunResult{}, nil
}

func (stubRunner) Ledger(context.Context) ([]ledger.Record, error) { return nil, nil }

func (stubRunner) Summary(context.Context) (payroll.Summary, error) {
	return payroll.Summarize(nil), nil
}

func TestRouterRegistersRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewHTTPRouter(handler.NewPayrollHandler(stubRunner{}))

	for _, path := range []string{"/health", "/metrics", "/api/v1/ping", "/api/v1/payroll/ledger", "/api/v1/payroll/ledger/summary"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestAppGracefulShutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	grpcServer, hs := NewGRPCServer()
	app, err := New(Config{HttpPort: "0", GrpcPort: "0", ShutdownTimeout: time.Second}, gin.New(), grpcServer, hs)
	require.NoError(t, err)

	status, err := app.ServingStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	status, err = app.ServingStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)
}
