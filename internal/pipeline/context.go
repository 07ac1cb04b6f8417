// Package pipeline builds the per-request RunContext — credential
// resolution, run creation, and the logging and outcome helpers bound
// to that run — and manages run status transitions.
package pipeline

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

// RunContext is the per-request bundle of identity, auth, and
// run-tracking state threaded through a call. Built once by
// Builder.Build and treated as read-only afterwards except for the
// fields assigned during the build itself.
type RunContext struct {
	// IDScript identifies which operation this request executes.
	IDScript int64

	// IDService is the id of the service that built this context. Steps
	// dispatched downstream carry it as id_father_service.
	IDService int64

	// UseDB gates all persistence. When false no run is created, no
	// credential is checked, and logging falls back to the local logger.
	UseDB bool

	// Credentials. Either a token pair or user/password; once a token
	// was presented, password auth is never silently substituted.
	User         string
	Password     string
	TokenAccess  string
	TokenRefresh string

	// Run hierarchy. IDFatherService must be present whenever
	// IDFatherRun is.
	IDFatherRun     *int64
	IDFatherService *int64

	// Assigned exactly once during Build.
	IDRun  *int64
	IDUser *int64

	// Start anchors elapsed-time outcomes.
	Start time.Time
}

// Payload carries the run-tracking fields common to every inbound
// request body. Service-specific bodies embed it.
type Payload struct {
	IDScript        *int64 `json:"id_script,omitempty"`
	IDFatherRun     *int64 `json:"id_father_run,omitempty"`
	IDFatherService *int64 `json:"id_father_service,omitempty"`
	User            string `json:"user,omitempty"`
	Password        string `json:"password,omitempty"`
	TokenAccess     string `json:"token_access,omitempty"`
	TokenRefresh    string `json:"token_refresh,omitempty"`
	UseDB           *bool  `json:"use_db,omitempty"`
}

// credentialsFromHeader fills credential fields absent from the payload
// from the request's Authorization header: Basic supplies user/password,
// Bearer supplies an access token.
func (p *Payload) credentialsFromHeader(h http.Header) {
	authHeader := h.Get("Authorization")
	if authHeader == "" {
		return
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return
	}
	switch {
	case strings.EqualFold(parts[0], "Basic") && p.User == "":
		decoded, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			return
		}
		user, password, ok := strings.Cut(string(decoded), ":")
		if !ok {
			return
		}
		p.User = user
		p.Password = password
	case strings.EqualFold(parts[0], "Bearer") && p.TokenAccess == "":
		p.TokenAccess = parts[1]
	}
}
