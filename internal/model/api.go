package model

import "time"

// CreateRunRequest is the request body for POST /create_new_run.
type CreateRunRequest struct {
	IDScript        *int64 `json:"id_script"`
	IDUser          *int64 `json:"id_user,omitempty"`
	FatherServiceID *int64 `json:"father_service_id,omitempty"`
	IDRunFather     *int64 `json:"id_run_father,omitempty"`
	ServiceName     string `json:"service_name,omitempty"`
}

// UpdateRunStatusRequest is the request body for POST /update_run_status.
// Nil fields are left unchanged.
type UpdateRunStatusRequest struct {
	IDRun       int64  `json:"id_run"`
	ServiceName string `json:"service_name,omitempty"`
	Status      *int   `json:"status,omitempty"`
	IDUser      *int64 `json:"id_user,omitempty"`
}

// GetRunRequest is the request body for POST /get_run.
type GetRunRequest struct {
	ServiceName string `json:"service_name"`
	IDRun       int64  `json:"id_run"`
}

// CreateRunResponse is the 201 body for POST /create_new_run.
type CreateRunResponse struct {
	IDRun int64 `json:"id_run"`
}

// ErrorResponse is the uniform JSON error envelope emitted at every HTTP
// boundary in the system.
type ErrorResponse struct {
	Service    string `json:"service"`
	RouteName  string `json:"route_name"`
	Error      string `json:"error"`
	IDRun      *int64 `json:"id_run"`
	StatusCode int    `json:"status_code"`
	Details    string `json:"details,omitempty"`
}

// OperationResponse is the 200 body for a completed arithmetic operation.
type OperationResponse struct {
	Result          float64 `json:"result"`
	ExecutionTimeMS int64   `json:"execution_time_ms"`
	IDRun           *int64  `json:"id_run,omitempty"`
}

// StackResponse is the 200 body for a completed script stack.
type StackResponse struct {
	Results         []StepResult `json:"results"`
	ExecutionTimeMS int64        `json:"execution_time_ms"`
	IDRun           *int64       `json:"id_run,omitempty"`
}

// StepResult is one entry in a stack response. Either Response (with
// Status) or Error is populated, never both.
type StepResult struct {
	Service  string `json:"service"`
	Endpoint string `json:"endpoint"`
	Status   int    `json:"status,omitempty"`
	Response any    `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// TokenPair is an access/refresh token pair issued by the credential
// validator.
type TokenPair struct {
	TokenAccess  string `json:"token_access"`
	TokenRefresh string `json:"token_refresh"`
}

// Credentials is the credential validator's response to POST /get_token.
type Credentials struct {
	IDUser       int64  `json:"id_user"`
	TokenAccess  string `json:"token_access"`
	TokenRefresh string `json:"token_refresh"`
}

// HealthResponse is the body for GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime,omitempty"`
}
