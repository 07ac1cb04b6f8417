package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tracklet-io/tracklet/internal/apperr"
	"github.com/tracklet-io/tracklet/internal/httpx"
	"github.com/tracklet-io/tracklet/internal/model"
	"github.com/tracklet-io/tracklet/internal/storage"
)

// Handlers holds HTTP handler dependencies for the run store.
type Handlers struct {
	db                  *storage.DB
	logger              *slog.Logger
	serviceName         string
	maxRequestBodyBytes int64
	startedAt           time.Time
}

// writeError maps err to the uniform error envelope. Rows that do not
// exist surface as 404 rather than being folded into the generic 500.
func (h *Handlers) writeError(w http.ResponseWriter, routeName string, err error, idRun *int64) {
	if errors.Is(err, storage.ErrNotFound) {
		httpx.WriteErrorEnvelope(w, h.serviceName, routeName, http.StatusNotFound, "not found", "", idRun)
		return
	}
	if apperr.KindOf(err) == apperr.KindInternal {
		h.logger.Error("request failed", "route", routeName, "error", err)
	}
	httpx.WriteError(w, h.serviceName, routeName, err, idRun)
}

// HandleCreateRun handles POST /create_new_run.
func (h *Handlers) HandleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req model.CreateRunRequest
	if err := httpx.DecodeBody(r, h.maxRequestBodyBytes, &req); err != nil {
		h.writeError(w, "create_new_run", err, nil)
		return
	}
	if req.IDScript == nil {
		h.writeError(w, "create_new_run", apperr.Validation("server.HandleCreateRun", "id_script is required"), nil)
		return
	}
	if req.IDRunFather != nil && req.FatherServiceID == nil {
		h.writeError(w, "create_new_run", apperr.Validation("server.HandleCreateRun",
			"id_run_father requires father_service_id"), nil)
		return
	}

	idRun, err := h.db.CreateRun(r.Context(), req)
	if err != nil {
		h.writeError(w, "create_new_run", err, nil)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, model.CreateRunResponse{IDRun: idRun})
}

// HandleUpdateRunStatus handles POST /update_run_status.
func (h *Handlers) HandleUpdateRunStatus(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateRunStatusRequest
	if err := httpx.DecodeBody(r, h.maxRequestBodyBytes, &req); err != nil {
		h.writeError(w, "update_run_status", err, nil)
		return
	}
	if req.IDRun == 0 {
		h.writeError(w, "update_run_status", apperr.Validation("server.HandleUpdateRunStatus", "id_run is required"), nil)
		return
	}

	run, err := h.db.UpdateRunStatus(r.Context(), req)
	if err != nil {
		h.writeError(w, "update_run_status", err, &req.IDRun)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, run)
}

// HandleGetRun handles POST /get_run.
func (h *Handlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	var req model.GetRunRequest
	if err := httpx.DecodeBody(r, h.maxRequestBodyBytes, &req); err != nil {
		h.writeError(w, "get_run", err, nil)
		return
	}
	if req.IDRun == 0 {
		h.writeError(w, "get_run", apperr.Validation("server.HandleGetRun", "id_run is required"), nil)
		return
	}

	run, err := h.db.GetRun(r.Context(), req.IDRun)
	if err != nil {
		h.writeError(w, "get_run", err, &req.IDRun)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, run)
}

// HandleGetAllRuns handles GET /get_all_runs, listing every run newest
// first.
func (h *Handlers) HandleGetAllRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.db.GetAllRuns(r.Context())
	if err != nil {
		h.writeError(w, "get_all_runs", err, nil)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	httpx.WriteJSON(w, http.StatusOK, runs)
}

// HandleGetFatherRuns handles GET /get_father_runs, listing the runs
// that have no parent.
func (h *Handlers) HandleGetFatherRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.db.GetFatherRuns(r.Context())
	if err != nil {
		h.writeError(w, "get_father_runs", err, nil)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	httpx.WriteJSON(w, http.StatusOK, runs)
}

// HandleGetRunChildren handles GET /get_runid_childs/{id_run}.
func (h *Handlers) HandleGetRunChildren(w http.ResponseWriter, r *http.Request) {
	idRun, err := pathIDRun(r)
	if err != nil {
		h.writeError(w, "get_runid_childs", err, nil)
		return
	}

	children, err := h.db.GetRunChildren(r.Context(), idRun)
	if err != nil {
		h.writeError(w, "get_runid_childs", err, &idRun)
		return
	}
	if children == nil {
		children = []int64{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"id_run": idRun, "childs": children})
}

// HandleInsertLog handles POST /insert_log.
func (h *Handlers) HandleInsertLog(w http.ResponseWriter, r *http.Request) {
	var entry model.LogEntry
	if err := httpx.DecodeBody(r, h.maxRequestBodyBytes, &entry); err != nil {
		h.writeError(w, "insert_log", err, nil)
		return
	}
	if entry.IDRun == 0 {
		h.writeError(w, "insert_log", apperr.Validation("server.HandleInsertLog", "id_run is required"), nil)
		return
	}

	if err := h.db.InsertLog(r.Context(), entry); err != nil {
		h.writeError(w, "insert_log", err, &entry.IDRun)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// HandleGetLogs handles GET /get_log_from_idrun/{id_run}.
func (h *Handlers) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	idRun, err := pathIDRun(r)
	if err != nil {
		h.writeError(w, "get_log_from_idrun", err, nil)
		return
	}

	entries, err := h.db.GetLogsByRun(r.Context(), idRun)
	if err != nil {
		h.writeError(w, "get_log_from_idrun", err, &idRun)
		return
	}
	if entries == nil {
		entries = []model.LogEntry{}
	}
	httpx.WriteJSON(w, http.StatusOK, entries)
}

// insertOutcomeRequest carries the outcome row plus the reporting
// service's name, which is accepted but not stored on the row.
type insertOutcomeRequest struct {
	model.Outcome
	ServiceName string `json:"service_name,omitempty"`
}

// HandleInsertOutcome handles POST /insert_outcome_run.
func (h *Handlers) HandleInsertOutcome(w http.ResponseWriter, r *http.Request) {
	var req insertOutcomeRequest
	if err := httpx.DecodeBody(r, h.maxRequestBodyBytes, &req); err != nil {
		h.writeError(w, "insert_outcome_run", err, nil)
		return
	}
	if req.IDRun == 0 {
		h.writeError(w, "insert_outcome_run", apperr.Validation("server.HandleInsertOutcome", "id_run is required"), nil)
		return
	}
	if err := req.Outcome.Validate(); err != nil {
		h.writeError(w, "insert_outcome_run",
			apperr.Wrap(apperr.KindValidation, "server.HandleInsertOutcome", "invalid outcome", err), &req.IDRun)
		return
	}

	if err := h.db.InsertOutcome(r.Context(), req.Outcome); err != nil {
		h.writeError(w, "insert_outcome_run", err, &req.IDRun)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// HandleGetOutcomes handles GET /get_outcome_run with id_run,
// id_category, and id_type query parameters.
func (h *Handlers) HandleGetOutcomes(w http.ResponseWriter, r *http.Request) {
	idRun, err := queryInt64(r, "id_run")
	if err != nil {
		h.writeError(w, "get_outcome_run", err, nil)
		return
	}
	idCategory, err := queryInt(r, "id_category")
	if err != nil {
		h.writeError(w, "get_outcome_run", err, &idRun)
		return
	}
	idType, err := queryInt(r, "id_type")
	if err != nil {
		h.writeError(w, "get_outcome_run", err, &idRun)
		return
	}

	outcomes, err := h.db.GetOutcomes(r.Context(), idRun, idCategory, idType)
	if err != nil {
		h.writeError(w, "get_outcome_run", err, &idRun)
		return
	}
	if outcomes == nil {
		outcomes = []model.Outcome{}
	}
	httpx.WriteJSON(w, http.StatusOK, outcomes)
}

// HandleGetDataRunTypes handles GET /get_data_run_types. All query
// parameters are optional filters.
func (h *Handlers) HandleGetDataRunTypes(w http.ResponseWriter, r *http.Request) {
	var f storage.DataRunTypeFilter
	q := r.URL.Query()
	if v := q.Get("id_category"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, "get_data_run_types",
				apperr.Validationf("server.HandleGetDataRunTypes", "id_category %q is not an integer", v), nil)
			return
		}
		f.IDCategory = &n
	}
	if v := q.Get("id_type"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, "get_data_run_types",
				apperr.Validationf("server.HandleGetDataRunTypes", "id_type %q is not an integer", v), nil)
			return
		}
		f.IDType = &n
	}
	if v := q.Get("category_name"); v != "" {
		f.CategoryName = &v
	}
	if v := q.Get("type_name"); v != "" {
		f.TypeName = &v
	}

	types, err := h.db.GetDataRunTypes(r.Context(), f)
	if err != nil {
		h.writeError(w, "get_data_run_types", err, nil)
		return
	}
	if types == nil {
		types = []model.DataRunType{}
	}
	httpx.WriteJSON(w, http.StatusOK, types)
}

// HandleHealth handles GET /health. Degrades to 503 when the database
// is unreachable.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := model.HealthResponse{
		Status:    "ok",
		Service:   h.serviceName,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
	}
	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		status = http.StatusServiceUnavailable
		body.Status = "degraded"
	}
	httpx.WriteJSON(w, status, body)
}

func pathIDRun(r *http.Request) (int64, error) {
	raw := r.PathValue("id_run")
	idRun, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.Validationf("server.pathIDRun", "id_run %q is not an integer", raw)
	}
	return idRun, nil
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, apperr.Validationf("server.queryInt64", "%s query parameter is required", name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.Validationf("server.queryInt64", "%s %q is not an integer", name, raw)
	}
	return v, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v, err := queryInt64(r, name)
	return int(v), err
}
