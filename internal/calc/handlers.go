package calc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tracklet-io/tracklet/internal/apperr"
	"github.com/tracklet-io/tracklet/internal/arith"
	"github.com/tracklet-io/tracklet/internal/httpx"
	"github.com/tracklet-io/tracklet/internal/model"
	"github.com/tracklet-io/tracklet/internal/pipeline"
)

// Handlers holds HTTP handler dependencies for the arithmetic service.
type Handlers struct {
	builder             *pipeline.Builder
	logger              *slog.Logger
	serviceName         string
	maxRequestBodyBytes int64
}

// operationRequest is the body for POST /arithmetic_operation and
// POST /sum_and_save. Arguments are pointers so a missing argument is
// distinguishable from an explicit zero.
type operationRequest struct {
	pipeline.Payload
	Arg1      *float64 `json:"arg1"`
	Arg2      *float64 `json:"arg2"`
	Operation string   `json:"operation,omitempty"`
}

// HandleArithmeticOperation handles POST /arithmetic_operation. The
// operation field selects among sum, diff, mult, div, pwr, and root.
func (h *Handlers) HandleArithmeticOperation(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, "arithmetic_operation", "")
}

// HandleSumAndSave handles POST /sum_and_save, a fixed-operation
// endpoint that always sums its two arguments.
func (h *Handlers) HandleSumAndSave(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, "sum_and_save", arith.OpSum)
}

// runOperation is the shared flow: build the run context, record the
// input arguments, compute, record the result, and advance run status.
// forcedOp overrides the request's operation field when non-empty.
func (h *Handlers) runOperation(w http.ResponseWriter, r *http.Request, routeName, forcedOp string) {
	ctx := r.Context()

	var req operationRequest
	if err := httpx.DecodeBody(r, h.maxRequestBodyBytes, &req); err != nil {
		httpx.WriteError(w, h.serviceName, routeName, err, nil)
		return
	}

	op := req.Operation
	if forcedOp != "" {
		op = forcedOp
	}
	if op == "" {
		httpx.WriteError(w, h.serviceName, routeName,
			apperr.Validation("calc.runOperation", "operation is required"), nil)
		return
	}
	if req.Arg1 == nil || req.Arg2 == nil {
		httpx.WriteError(w, h.serviceName, routeName,
			apperr.Validation("calc.runOperation", "arg1 and arg2 are required"), nil)
		return
	}

	rc, err := h.builder.Build(ctx, req.Payload, r.Header)
	if err != nil {
		// rc is non-nil when the run was created before the failure, so
		// the failing status still lands on it.
		h.fail(ctx, w, rc, routeName, err)
		return
	}

	h.saveInputArgs(ctx, rc, *req.Arg1, *req.Arg2, op)

	result, err := arith.Compute(*req.Arg1, *req.Arg2, op)
	if err != nil {
		h.fail(ctx, w, rc, routeName, err)
		return
	}

	if err := h.builder.SaveOutcome(ctx, rc, model.Outcome{
		IDCategory:  model.CategoryRuntime,
		IDType:      model.TypeResult,
		VFloatpoint: &result,
	}); err != nil {
		h.fail(ctx, w, rc, routeName, err)
		return
	}

	msg := fmt.Sprintf("operation %s completed, result %g", op, result)
	if err := h.builder.UpdateStatus(ctx, rc, nil, msg); err != nil {
		h.fail(ctx, w, rc, routeName, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, model.OperationResponse{
		Result:          result,
		ExecutionTimeMS: time.Since(rc.Start).Milliseconds(),
		IDRun:           rc.IDRun,
	})
}

// saveInputArgs records the request arguments as a jsonb outcome.
// Best-effort: a store failure is logged and the operation proceeds.
func (h *Handlers) saveInputArgs(ctx context.Context, rc *pipeline.RunContext, arg1, arg2 float64, op string) {
	args, err := json.Marshal(map[string]any{"arg1": arg1, "arg2": arg2, "operation": op})
	if err != nil {
		return
	}
	if err := h.builder.SaveOutcome(ctx, rc, model.Outcome{
		IDCategory: model.CategoryExecution,
		IDType:     model.TypeInputArgs,
		VJSONB:     args,
	}); err != nil {
		h.logger.WarnContext(ctx, "failed to save input arguments", "error", err)
	}
}

// fail records the failing status on the run, logs the error to the
// run's log trail, and writes the error envelope.
func (h *Handlers) fail(ctx context.Context, w http.ResponseWriter, rc *pipeline.RunContext, routeName string, err error) {
	status := apperr.StatusCode(err)
	h.builder.LogError(ctx, rc, err.Error())
	h.builder.FailRun(ctx, rc, status)
	var idRun *int64
	if rc != nil {
		idRun = rc.IDRun
	}
	httpx.WriteError(w, h.serviceName, routeName, err, idRun)
}

// HandleIndex handles GET /, listing the routes this service serves.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"service": h.serviceName,
		"routes": []string{
			"POST /arithmetic_operation",
			"POST /sum_and_save",
			"GET /health",
		},
	})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, model.HealthResponse{
		Status:    "ok",
		Service:   h.serviceName,
		Timestamp: time.Now().UTC(),
	})
}
