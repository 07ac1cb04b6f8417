// Package runstore is the HTTP client for the run store service. It
// covers the run, outcome, log, and catalog endpoints consumed by the
// metadata pipeline and the run lifecycle manager.
package runstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tracklet-io/tracklet/internal/apperr"
	"github.com/tracklet-io/tracklet/internal/model"
)

// Client talks to the run store. All methods are safe for concurrent use.
type Client struct {
	baseURL     string
	serviceName string
	client      *http.Client
}

// New creates a Client for the run store at baseURL. serviceName is
// stamped on every write so the store can attribute rows to the calling
// service. A zero timeout defaults to 30 seconds.
func New(baseURL, serviceName string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		serviceName: serviceName,
		client:      &http.Client{Timeout: timeout},
	}
}

// CreateRun inserts a new run row and returns its id. Not idempotent:
// calling twice creates two runs.
func (c *Client) CreateRun(ctx context.Context, req model.CreateRunRequest) (int64, error) {
	const op = "runstore.CreateRun"

	req.ServiceName = c.serviceName
	var resp model.CreateRunResponse
	if err := c.post(ctx, op, "/create_new_run", req, http.StatusCreated, &resp); err != nil {
		return 0, err
	}
	return resp.IDRun, nil
}

// UpdateRunStatus updates the status and/or user of an existing run.
func (c *Client) UpdateRunStatus(ctx context.Context, req model.UpdateRunStatusRequest) error {
	const op = "runstore.UpdateRunStatus"

	req.ServiceName = c.serviceName
	return c.post(ctx, op, "/update_run_status", req, http.StatusOK, nil)
}

// GetRun fetches a run row by id.
func (c *Client) GetRun(ctx context.Context, idRun int64) (model.Run, error) {
	const op = "runstore.GetRun"

	var run model.Run
	req := model.GetRunRequest{ServiceName: c.serviceName, IDRun: idRun}
	if err := c.post(ctx, op, "/get_run", req, http.StatusOK, &run); err != nil {
		return model.Run{}, err
	}
	return run, nil
}

// InsertLog appends a log entry to a run.
func (c *Client) InsertLog(ctx context.Context, entry model.LogEntry) error {
	const op = "runstore.InsertLog"

	entry.ServiceName = c.serviceName
	return c.post(ctx, op, "/insert_log", entry, http.StatusCreated, nil)
}

// SaveOutcome appends a typed outcome row to a run.
func (c *Client) SaveOutcome(ctx context.Context, outcome model.Outcome) error {
	const op = "runstore.SaveOutcome"

	if err := outcome.Validate(); err != nil {
		return apperr.Wrap(apperr.KindValidation, op, "invalid outcome", err)
	}
	if outcome.Timestamp.IsZero() {
		outcome.Timestamp = time.Now().UTC()
	}
	body := outcomeBody{Outcome: outcome, ServiceName: c.serviceName}
	return c.post(ctx, op, "/insert_outcome_run", body, http.StatusCreated, nil)
}

// GetDataRunTypes fetches catalog rows for a (category, type) pair.
func (c *Client) GetDataRunTypes(ctx context.Context, idCategory, idType int) ([]model.DataRunType, error) {
	const op = "runstore.GetDataRunTypes"

	params := url.Values{}
	params.Set("id_category", strconv.Itoa(idCategory))
	params.Set("id_type", strconv.Itoa(idType))

	var types []model.DataRunType
	if err := c.get(ctx, op, "/get_data_run_types?"+params.Encode(), &types); err != nil {
		return nil, err
	}
	return types, nil
}

// outcomeBody is the wire format for POST /insert_outcome_run: the
// outcome columns plus the calling service's name.
type outcomeBody struct {
	model.Outcome
	ServiceName string `json:"service_name,omitempty"`
}

func (c *Client) post(ctx context.Context, op, path string, body any, wantStatus int, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, op, "marshal request body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, op, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(op, req, wantStatus, dest)
}

func (c *Client) get(ctx context.Context, op, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, op, "create request", err)
	}
	return c.do(op, req, http.StatusOK, dest)
}

func (c *Client) do(op string, req *http.Request, wantStatus int, dest any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return apperr.FromTransport(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.Wrap(apperr.KindAPI, op, "read response body", err)
	}

	if resp.StatusCode != wantStatus {
		return apperr.FromStatus(op, resp.StatusCode, serverError(bodyBytes))
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, dest); err != nil {
		return apperr.Wrap(apperr.KindAPI, op, "decode response", err)
	}
	return nil
}

// serverError extracts the error string from a run store error envelope,
// falling back to the raw body.
func serverError(body []byte) string {
	var envelope model.ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		if envelope.Details != "" {
			return fmt.Sprintf("%s: %s", envelope.Error, envelope.Details)
		}
		return envelope.Error
	}
	return string(body)
}
