package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payroll-core/internal/handler/response"
	"payroll-core/internal/ledger"
	"payroll-core/internal/payroll"
	"payroll-core/pkg/errno"
)

type fakeRunner struct {
	gotURL     string
	gotPayload []byte
	result     *payroll.RunResult
	err        error
	records    []ledger.Record
	onRun      func(ctx context.Context)
}

func (f *fakeRunner) Sender() common.Address {
	return common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
}

func (f *fakeRunner) RunBatchFromRoster(ctx context.Context, url string) (*payroll.RunResult, error) {
	f.gotURL = url
	if f.onRun != nil {
		f.onRun(ctx)
	}
	return f.result, f.err
}

func (f *fakeRunner) RunBatchFromPayload(_ context.Context, url string, payload []byte) (*payroll.RunResult, error) {
	f.gotURL, f.gotPayload = url, payload
	return f.result, f.err
}

func (f *fakeRunner) Ledger(context.Context) ([]ledger.Record, error) {
	return f.records, f.err
}

func (f *fakeRunner) Summary(context.Context) (payroll.Summary, error) {
	return payroll.Summarize(f.records), f.err
}

func setupRouter(runner PayrollRunner) *gin.Engine {
	return routerFor(NewPayrollHandler(runner))
}

func routerFor(h *PayrollHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", h.HealthCheck)
	g := r.Group("/api/v1/payroll")
	g.POST("/runs/roster", h.RunFromRoster)
	g.POST("/runs/payload", h.RunFromPayload)
	g.GET("/ledger", h.ListLedger)
	g.GET("/ledger/summary", h.LedgerSummary)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) response.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func okResult() *payroll.RunResult {
	return &payroll.RunResult{Outcomes: []payroll.TransferOutcome{
		{Index: 0, Status: payroll.StatusSuccess},
		{Index: 1, Status: payroll.StatusReverted},
	}}
}

func TestRunFromPayload(t *testing.T) {
	runner := &fakeRunner{result: okResult()}
	r := setupRouter(runner)

	resp := do(t, r, http.MethodPost, "/api/v1/payroll/runs/payload",
		`{"rpc_url":"https://rpc.example.org","employees":[{"accountId":"0x1111111111111111111111111111111111111111","salary":"1"}]}`)
	assert.Equal(t, errno.OK.Code, resp.Code)
	assert.Equal(t, "https://rpc.example.org", runner.gotURL)
	assert.JSONEq(t, `[{"accountId":"0x1111111111111111111111111111111111111111","salary":"1"}]`, string(runner.gotPayload))

	data := resp.Data.(map[string]interface{})
	assert.EqualValues(t, 1, data["delivered"])
	assert.EqualValues(t, 1, data["undelivered"])
}

func TestRunFromPayloadValidation(t *testing.T) {
	r := setupRouter(&fakeRunner{result: okResult()})

	resp := do(t, r, http.MethodPost, "/api/v1/payroll/runs/payload", `{"rpc_url":"https://rpc.example.org"}`)
	assert.Equal(t, errno.ErrBind.Code, resp.Code)

	resp = do(t, r, http.MethodPost, "/api/v1/payroll/runs/payload", `{"rpc_url":"not a url","employees":[]}`)
	assert.Equal(t, errno.ErrBind.Code, resp.Code)
}

func TestRunErrorsMapToCodes(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: 0xabc", payroll.ErrRunInProgress), errno.ErrRunInProgress.Code},
		{fmt.Errorf("%w: dial", payroll.ErrEndpointUnreachable), errno.ErrEndpointUnreachable.Code},
		{fmt.Errorf("%w: not an array", payroll.ErrMalformedBatch), errno.ErrMalformedBatch.Code},
		{&payroll.RecipientError{Index: 2, Reason: "negative amount"}, errno.ErrInvalidRecipient.Code},
		{payroll.ErrSigning, errno.ErrSigning.Code},
		{fmt.Errorf("boom"), errno.InternalServerError.Code},
	}
	for _, tt := range tests {
		r := setupRouter(&fakeRunner{err: tt.err})
		resp := do(t, r, http.MethodPost, "/api/v1/payroll/runs/roster", `{}`)
		assert.Equal(t, tt.code, resp.Code, tt.err.Error())
	}
}

func TestRunCancelledReturnsPartialResult(t *testing.T) {
	r := setupRouter(&fakeRunner{result: okResult(), err: fmt.Errorf("%w: client gone", payroll.ErrRunCancelled)})

	resp := do(t, r, http.MethodPost, "/api/v1/payroll/runs/roster", `{}`)
	assert.Equal(t, errno.ErrRunCancelled.Code, resp.Code)
	data := resp.Data.(map[string]interface{})
	assert.Contains(t, data, "run")
}

func TestLedgerEndpoints(t *testing.T) {
	runner := &fakeRunner{records: []ledger.Record{
		{TxHash: "0x1", Status: "success", Amount: "1000000000000000000"},
		{TxHash: "0x2", Status: "failed", Amount: "5"},
	}}
	r := setupRouter(runner)

	resp := do(t, r, http.MethodGet, "/api/v1/payroll/ledger", "")
	require.Equal(t, errno.OK.Code, resp.Code)
	assert.EqualValues(t, 2, resp.Data.(map[string]interface{})["total"])

	resp = do(t, r, http.MethodGet, "/api/v1/payroll/ledger/summary", "")
	require.Equal(t, errno.OK.Code, resp.Code)
	assert.Equal(t, "1000000000000000000", resp.Data.(map[string]interface{})["delivered_wei"])

	empty := setupRouter(&fakeRunner{})
	resp = do(t, empty, http.MethodGet, "/api/v1/payroll/ledger", "")
	assert.Equal(t, []interface{}{}, resp.Data.(map[string]interface{})["records"])
}

func TestHealthCheck(t *testing.T) {
	resp := do(t, setupRouter(&fakeRunner{}), http.MethodGet, "/health", "")
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "UP", data["status"])
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", data["sender"])
}

func TestRunSurvivesClientDisconnect(t *testing.T) {
	var (
		called bool
		runErr error
	)
	runner := &fakeRunner{result: okResult(), onRun: func(ctx context.Context) {
		called = true
		runErr = ctx.Err()
	}}
	r := setupRouter(runner)

	// 客户端已经断开
	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/runs/roster", bytes.NewBufferString(`{}`)).WithContext(reqCtx)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, called)
	assert.NoError(t, runErr)
}

func TestRunStopsOnShutdown(t *testing.T) {
	lifecycle, shutdown := context.WithCancel(context.Background())
	defer shutdown()

	stopped := false
	runner := &fakeRunner{result: okResult(), onRun: func(ctx context.Context) {
		shutdown()
		select {
		case <-ctx.Done():
			stopped = true
		case <-time.After(time.Second):
		}
	}}
	r := routerFor(NewPayrollHandler(runner).WithLifecycle(lifecycle))

	do(t, r, http.MethodPost, "/api/v1/payroll/runs/roster", `{}`)
	assert.True(t, stopped)
}
