package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tracklet-io/tracklet/internal/model"
	"github.com/tracklet-io/tracklet/internal/pipeline"
)

// Step is one entry in a script stack: a named service, an endpoint on
// it, and the payload to POST.
type Step struct {
	Service  string         `json:"service"`
	Endpoint string         `json:"endpoint"`
	Payload  map[string]any `json:"payload"`
}

// Dispatcher invokes stack steps sequentially against resolved service
// addresses.
type Dispatcher struct {
	dir    *Directory
	client *http.Client
}

// NewDispatcher creates a Dispatcher. A zero timeout defaults to 30
// seconds.
func NewDispatcher(dir *Directory, timeout time.Duration) *Dispatcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		dir:    dir,
		client: &http.Client{Timeout: timeout},
	}
}

// RunStack executes the steps strictly in order, best-effort: a failed
// step contributes an error entry and later steps still run. Each
// step's payload is augmented with the current run id and the context's
// service id, establishing the run hierarchy across service hops, and
// carries the context's bearer token or Basic credentials.
func (d *Dispatcher) RunStack(ctx context.Context, steps []Step, rc *pipeline.RunContext) []model.StepResult {
	results := make([]model.StepResult, 0, len(steps))
	for _, step := range steps {
		results = append(results, d.runStep(ctx, step, rc))
	}
	return results
}

func (d *Dispatcher) runStep(ctx context.Context, step Step, rc *pipeline.RunContext) model.StepResult {
	result := model.StepResult{Service: step.Service, Endpoint: step.Endpoint}

	hostport, err := d.dir.Resolve(step.Service)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	payload := make(map[string]any, len(step.Payload)+2)
	for k, v := range step.Payload {
		payload[k] = v
	}
	if rc.IDRun != nil {
		payload["id_father_run"] = *rc.IDRun
		payload["id_father_service"] = rc.IDService
	}
	if use, ok := payload["use_db"]; !ok || use == nil {
		payload["use_db"] = rc.UseDB
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		result.Error = fmt.Sprintf("marshal step payload: %v", err)
		return result
	}

	endpoint := strings.TrimLeft(step.Endpoint, "/")
	url := fmt.Sprintf("http://%s/%s", hostport, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		result.Error = fmt.Sprintf("create request: %v", err)
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case rc.TokenAccess != "":
		req.Header.Set("Authorization", "Bearer "+rc.TokenAccess)
	case rc.User != "":
		req.SetBasicAuth(rc.User, rc.Password)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("call %s: %v", url, err)
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		result.Error = fmt.Sprintf("read response from %s: %v", url, err)
		return result
	}

	result.Status = resp.StatusCode
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		decoded = string(body)
	}
	result.Response = decoded
	return result
}
