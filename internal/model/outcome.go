package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Outcome is a single typed data point attached to a run. Exactly one
// value column is populated per row; outcomes are append-only and read
// back by (run, category, type) triples.
type Outcome struct {
	ID          int64           `json:"id,omitempty"`
	IDRun       int64           `json:"id_run"`
	IDCategory  int             `json:"id_category"`
	IDType      int             `json:"id_type"`
	VInteger    *int64          `json:"v_integer,omitempty"`
	VFloatpoint *float64        `json:"v_floatpoint,omitempty"`
	VString     *string         `json:"v_string,omitempty"`
	VBoolean    *bool           `json:"v_boolean,omitempty"`
	VTimestamp  *time.Time      `json:"v_timestamp,omitempty"`
	VJSONB      json.RawMessage `json:"v_jsonb,omitempty"`
	Timestamp   time.Time       `json:"timestamp,omitempty"`
}

// ValueCount returns how many value columns are populated.
func (o Outcome) ValueCount() int {
	n := 0
	if o.VInteger != nil {
		n++
	}
	if o.VFloatpoint != nil {
		n++
	}
	if o.VString != nil {
		n++
	}
	if o.VBoolean != nil {
		n++
	}
	if o.VTimestamp != nil {
		n++
	}
	if len(o.VJSONB) > 0 {
		n++
	}
	return n
}

// Validate checks that exactly one value column is set.
func (o Outcome) Validate() error {
	switch n := o.ValueCount(); n {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("outcome for run %d has no value column set", o.IDRun)
	default:
		return fmt.Errorf("outcome for run %d has %d value columns set, want exactly one", o.IDRun, n)
	}
}

// LogEntry is an append-only log line attached to a run. The caller
// pre-formats Log with a millisecond timestamp; the store assigns
// LogTimestamp on insert.
type LogEntry struct {
	IDRun        int64     `json:"id_run"`
	Log          string    `json:"log"`
	Debug        bool      `json:"debug"`
	Warning      bool      `json:"warning"`
	Error        bool      `json:"error"`
	ServiceName  string    `json:"service_name,omitempty"`
	LogTimestamp time.Time `json:"log_timestamp,omitempty"`
}

// DataRunType labels a (category, type) slot in the outcome catalog.
type DataRunType struct {
	IDCategory   int    `json:"id_category"`
	IDType       int    `json:"id_type"`
	CategoryName string `json:"category_name"`
	TypeName     string `json:"type_name"`
}

// Outcome catalog slots. The (category, type) pairs select a semantic
// meaning for the populated value column.
const (
	CategoryExecution = 0 // input arguments, execution time
	CategoryRuntime   = 1 // pipeline milestones, operation results

	TypeInputArgs     = 0 // CategoryExecution: v_jsonb with the request arguments
	TypeExecutionTime = 1 // CategoryExecution: v_integer, milliseconds

	TypeMetadata = 0 // CategoryRuntime: v_string milestone marker
	TypeResult   = 1 // CategoryRuntime: v_floatpoint or v_jsonb operation result
)
