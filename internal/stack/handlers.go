package stack

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tracklet-io/tracklet/internal/apperr"
	"github.com/tracklet-io/tracklet/internal/dispatch"
	"github.com/tracklet-io/tracklet/internal/httpx"
	"github.com/tracklet-io/tracklet/internal/model"
	"github.com/tracklet-io/tracklet/internal/pipeline"
)

// Handlers holds HTTP handler dependencies for the orchestrator.
type Handlers struct {
	builder             *pipeline.Builder
	dispatcher          *dispatch.Dispatcher
	logger              *slog.Logger
	serviceName         string
	maxRequestBodyBytes int64
}

// stackRequest is the body for POST /execute_script_stack.
type stackRequest struct {
	pipeline.Payload
	Stack []dispatch.Step `json:"stack"`
}

// HandleExecuteScriptStack handles POST /execute_script_stack. Steps
// run strictly in order; a failed step is recorded and later steps
// still run. The response carries one entry per step.
func (h *Handlers) HandleExecuteScriptStack(w http.ResponseWriter, r *http.Request) {
	const routeName = "execute_script_stack"
	ctx := r.Context()

	var req stackRequest
	if err := httpx.DecodeBody(r, h.maxRequestBodyBytes, &req); err != nil {
		httpx.WriteError(w, h.serviceName, routeName, err, nil)
		return
	}
	if len(req.Stack) == 0 {
		httpx.WriteError(w, h.serviceName, routeName,
			apperr.Validation("stack.HandleExecuteScriptStack", "stack must contain at least one step"), nil)
		return
	}
	for i, step := range req.Stack {
		if step.Service == "" || step.Endpoint == "" {
			httpx.WriteError(w, h.serviceName, routeName,
				apperr.Validationf("stack.HandleExecuteScriptStack",
					"step %d must name a service and an endpoint", i), nil)
			return
		}
	}

	rc, err := h.builder.Build(ctx, req.Payload, r.Header)
	if err != nil {
		// rc is non-nil when the run was created before the failure, so
		// the failing status still lands on it.
		h.fail(ctx, w, rc, routeName, err)
		return
	}

	h.saveInputArgs(ctx, rc, req.Stack)

	results := h.dispatcher.RunStack(ctx, req.Stack, rc)

	failed := 0
	for i, res := range results {
		h.saveStepResult(ctx, rc, i, res)
		if res.Error != "" {
			failed++
			h.builder.LogError(ctx, rc, fmt.Sprintf("step %d %s%s failed: %s", i, res.Service, res.Endpoint, res.Error))
		} else {
			h.builder.Log(ctx, rc, fmt.Sprintf("step %d %s%s returned %d", i, res.Service, res.Endpoint, res.Status))
		}
	}

	msg := fmt.Sprintf("stack completed, %d steps, %d failed", len(results), failed)
	if err := h.builder.UpdateStatus(ctx, rc, nil, msg); err != nil {
		h.fail(ctx, w, rc, routeName, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, model.StackResponse{
		Results:         results,
		ExecutionTimeMS: time.Since(rc.Start).Milliseconds(),
		IDRun:           rc.IDRun,
	})
}

// saveInputArgs records the requested stack as a jsonb outcome.
// Best-effort: a store failure never aborts the stack.
func (h *Handlers) saveInputArgs(ctx context.Context, rc *pipeline.RunContext, steps []dispatch.Step) {
	encoded, err := json.Marshal(map[string]any{"stack": steps})
	if err != nil {
		return
	}
	if err := h.builder.SaveOutcome(ctx, rc, model.Outcome{
		IDCategory: model.CategoryExecution,
		IDType:     model.TypeInputArgs,
		VJSONB:     encoded,
	}); err != nil {
		h.logger.WarnContext(ctx, "failed to save stack input arguments", "error", err)
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

// saveStepResult records one step's outcome row. Best-effort.
func (h *Handlers) saveStepResult(ctx context.Context, rc *pipeline.RunContext, i int, res model.StepResult) {
	encoded, err := json.Marshal(map[string]any{"step": i, "result": res})
	if err != nil {
		return
	}
	if err := h.builder.SaveOutcome(ctx, rc, model.Outcome{
		IDCategory: model.CategoryRuntime,
		IDType:     model.TypeResult,
		VJSONB:     encoded,
	}); err != nil {
		h.logger.WarnContext(ctx, "failed to save step result", "error", err, "step", i)
	}
}

// HandleIndex handles GET /, listing the routes this service serves.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"service": h.serviceName,
		"routes": []string{
			"POST /execute_script_stack",
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
