package handler

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"payroll-core/internal/handler/request"
	"payroll-core/internal/handler/response"
	"payroll-core/internal/ledger"
	"payroll-core/internal/payroll"
	"payroll-core/internal/roster"
	"payroll-core/pkg/errno"
	"payroll-core/pkg/validator"
)

// PayrollRunner 由 service.PayrollService 实现
type PayrollRunner interface {
	Sender() common.Address
	RunBatchFromRoster(ctx context.Context, endpointURL string) (*payroll.RunResult, error)
	RunBatchFromPayload(ctx context.Context, endpointURL string, payload []byte) (*payroll.RunResult, error)
	Ledger(ctx context.Context) ([]ledger.Record, error)
	Summary(ctx context.Context) (payroll.Summary, error)
}

type PayrollHandler struct {
	svc       PayrollRunner
	lifecycle context.Context
}

func NewPayrollHandler(svc PayrollRunner) *PayrollHandler {
	return &PayrollHandler{svc: svc, lifecycle: context.Background()}
}

// WithLifecycle 批次只在 ctx 取消 (服务退出) 时停止，客户端断开不影响
func (h *PayrollHandler) WithLifecycle(ctx context.Context) *PayrollHandler {
	h.lifecycle = ctx
	return h
}

// runContext 与请求解耦的运行 ctx，保留请求里的值
func (h *PayrollHandler) runContext(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	stop := context.AfterFunc(h.lifecycle, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// RunFromRoster 按花名册发薪
// @Summary 按花名册发薪
// @Description 读取服务端花名册，逐笔转账并写入流水。客户端断开不会中断批次
// @Tags Payroll
// @Accept json
// @Produce json
// @Param request body request.RunFromRosterRequest false "RPC 节点 (可选)"
// @Success 200 {object} response.Response
// @Router /payroll/runs/roster [post]
func (h *PayrollHandler) RunFromRoster(c *gin.Context) {
	var req request.RunFromRosterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}

	ctx, cancel := h.runContext(c)
	defer cancel()
	res, err := h.svc.RunBatchFromRoster(ctx, req.RpcUrl)
	respondRun(c, res, err)
}

// RunFromPayload 按请求体中的员工列表发薪
// @Summary 按请求体发薪
// @Description employees 为 [{"accountId","salary"}] 数组，或包含该数组的 JSON 字符串
// @Tags Payroll
// @Accept json
// @Produce json
// @Param request body request.RunFromPayloadRequest true "Payroll Batch"
// @Success 200 {object} response.Response
// @Router /payroll/runs/payload [post]
func (h *PayrollHandler) RunFromPayload(c *gin.Context) {
	var req request.RunFromPayloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}

	ctx, cancel := h.runContext(c)
	defer cancel()
	res, err := h.svc.RunBatchFromPayload(ctx, req.RpcUrl, req.Employees)
	respondRun(c, res, err)
}

// ListLedger 转账流水
// @Summary 查询转账流水
// @Tags Payroll
// @Produce json
// @Success 200 {object} response.Response
// @Router /payroll/ledger [get]
func (h *PayrollHandler) ListLedger(c *gin.Context) {
	records, err := h.svc.Ledger(c.Request.Context())
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	if records == nil {
		records = []ledger.Record{}
	}
	response.Success(c, gin.H{"total": len(records), "records": records})
}

// LedgerSummary 流水统计
// @Summary 流水统计
// @Description 按状态统计笔数，以及已到账 / 未到账金额
// @Tags Payroll
// @Produce json
// @Success 200 {object} response.Response
// @Router /payroll/ledger/summary [get]
func (h *PayrollHandler) LedgerSummary(c *gin.Context) {
	summary, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, summary)
}

func respondRun(c *gin.Context, res *payroll.RunResult, err error) {
	if err != nil {
		if res != nil {
			response.ErrorWithData(c, toErrno(err), runView(res))
			return
		}
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, runView(res))
}

func runView(res *payroll.RunResult) gin.H {
	return gin.H{
		"run":         res,
		"counts":      res.Counts(),
		"delivered":   len(res.Delivered()),
		"undelivered": len(res.Undelivered()),
	}
}

// toErrno 领域错误 -> API 错误码
func toErrno(err error) error {
	var mapped errno.Errno
	switch {
	case errors.Is(err, payroll.ErrRunInProgress):
		mapped = errno.ErrRunInProgress
	case errors.Is(err, payroll.ErrEndpointUnreachable):
		mapped = errno.ErrEndpointUnreachable
	case errors.Is(err, payroll.ErrMalformedBatch):
		mapped = errno.ErrMalformedBatch
	case errors.Is(err, payroll.ErrInvalidRecipient):
		mapped = errno.ErrInvalidRecipient
	case errors.Is(err, payroll.ErrSigning):
		mapped = errno.ErrSigning
	case errors.Is(err, payroll.ErrRunCancelled):
		mapped = errno.ErrRunCancelled
	case errors.Is(err, roster.ErrUnavailable):
		mapped = errno.ErrRosterUnavailable
	case errors.Is(err, ledger.ErrRead):
		mapped = errno.ErrLedgerRead
	default:
		return errno.InternalServerError.WithMessage(err.Error())
	}
	return mapped.WithMessage(err.Error())
}
