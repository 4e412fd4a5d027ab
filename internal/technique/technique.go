// Package technique defines the interface for SQL injection detection
// and exploitation techniques (error-based, boolean-based, time-based, etc.).
package technique

import (
	"context"
	"io"

	"github.com/dvorasec/errsqli/internal/engine"
	"github.com/dvorasec/errsqli/internal/payload"
	"github.com/dvorasec/errsqli/internal/transport"
)

// Technique defines a SQL injection detection and exploitation method.
type Technique interface {
	// Name returns the human-readable name of the technique (e.g., "error-based").
	Name() string

	// Priority returns the execution priority. Lower values are tried first.
	// Error=1, Boolean=2, Time=3, Union=4.
	Priority() int

	// Detect tests whether a parameter is injectable using this technique.
	Detect(ctx context.Context, req *InjectionRequest) (*DetectionResult, error)

	// Extract retrieves the value of a SQL expression using this technique.
	Extract(ctx context.Context, req *ExtractionRequest) (*ExtractionResult, error)
}

// InjectionRequest contains everything needed to test an injection point.
type InjectionRequest struct {
	Target    *engine.ScanTarget
	Parameter *engine.Parameter
	Baseline  *transport.Response
	DBMS      string // Hint from fingerprinting; empty means unknown
	Client    transport.Client
}

// DetectionResult indicates whether injection was detected.
type DetectionResult struct {
	Injectable bool
	Confidence float64
	Technique  string
	Payload    *payload.Payload
	Evidence   string
}

// ExtractionRequest asks to extract a specific SQL expression's value.
type ExtractionRequest struct {
	InjectionRequest
	Query string // SQL expression to evaluate, e.g., "@@version"

	// Dump requests multi-row extraction with an explicit row range,
	// consulted only by techniques that support tuple-returning
	// expressions (error-based does, via errorextract's RowPlanner).
	Dump bool

	// LimitStart/LimitStop are the operator-supplied 1-based dump range,
	// used when the expression carries no LIMIT/TOP of its own. Zero
	// values let the technique fall back to its own default range.
	LimitStart int
	LimitStop  int

	// Threads bounds a dump's worker concurrency. Zero means the
	// technique's own default.
	Threads int

	// InfoWriter receives per-row operator progress lines ("retrieved"/
	// "resumed"). Nil discards them.
	InfoWriter io.Writer
}

// ExtractionResult contains extracted data.
type ExtractionResult struct {
	Value    string
	Partial  bool
	Requests int

	// Rows holds a multi-row dump's entries when the technique supports
	// expanding a tuple-returning expression into more than one logical
	// value. Each entry is either *string (single-field row) or []*string
	// (multi-field row). Left nil by techniques that only ever resolve a
	// single scalar.
	Rows []any
}
