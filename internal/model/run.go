// Package model defines the core domain types for Tracklet.
//
// Types correspond directly to run store tables and wire payloads.
// Optional columns are modeled as pointers rather than loosely-keyed maps.
package model

import "time"

// Run is one logical execution instance of a script, optionally nested
// under a parent run. Runs form a forest via IDRunFather.
type Run struct {
	IDRun           int64     `json:"id_run"`
	IDScript        int64     `json:"id_script"`
	IDUser          *int64    `json:"id_user,omitempty"`
	IDRunFather     *int64    `json:"id_run_father,omitempty"`
	IDFatherService *int64    `json:"id_father_service,omitempty"`
	Status          *int      `json:"status,omitempty"`
	ServiceName     string    `json:"service_name,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// IsFather reports whether the run has no parent.
func (r Run) IsFather() bool {
	return r.IDRunFather == nil
}
