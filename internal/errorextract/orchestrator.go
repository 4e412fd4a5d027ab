package errorextract

import (
	"context"
	"fmt"
	"time"
)

// Result is the Orchestrator's return value (spec §4.8): a scalar, a list
// of rows (each itself a scalar or a list of per-field values), or nil.
type Result struct {
	// Scalar holds the unwrapped single value when the outputs list
	// collapsed to exactly one string (spec §4.8 step 4).
	Scalar *string

	// Rows holds the raw OutputBuffer contents otherwise: each element is
	// either *string (single-field row) or []*string (multi-field row).
	Rows []any
}

// Extract is the Orchestrator (C8): extract(expression) tying
// RowPlanner -> WorkerPool -> RowExpander -> SingleShotRetriever together.
func (s *Session) Extract(ctx context.Context, expression string) (Result, error) {
	start := time.Now()
	s.ErrorCount.Store(0)

	fieldsRaw, fieldsList := s.Agent.GetFields(expression)

	plan, err := s.Plan(ctx, expression, fieldsRaw)
	if err != nil {
		return Result{}, fmt.Errorf("errorextract: plan: %w", err)
	}

	var outputs []any

	switch {
	case plan.MultiRow && plan.StopLimit > plan.StartLimit:
		cursor := NewRowCursor(plan.StartLimit, plan.StopLimit)
		buf := NewOutputBuffer()

		numThreads := s.Config.Threads
		if numThreads < 1 {
			numThreads = 1
		}
		if span := plan.StopLimit - plan.StartLimit; span < numThreads {
			numThreads = span
		}

		s.RunPool(ctx, numThreads, cursor, buf, plan.Expression, fieldsRaw, fieldsList)
		outputs = buf.Rows()

		s.SuppressResumeInfo.Store(false)

	case plan.MultiRow:
		// Count resolved to zero or empty: spec §4.5 "return empty list
		// to caller" without issuing any row queries.
		outputs = nil

	default:
		row := s.ExpandRow(ctx, expression, fieldsRaw, fieldsList, nil)
		if row != nil {
			if len(row) == 1 {
				outputs = []any{row[0]}
			} else {
				outputs = []any{row}
			}
		}
	}

	result := Result{Rows: outputs}
	if len(outputs) == 1 {
		// Unwrap only when the sole element is an actual string value —
		// a lone null stays a one-element Rows list, matching the source
		// behaviour of leaving a null singleton unwrapped (spec §4.8).
		if scalar, ok := outputs[0].(*string); ok && scalar != nil {
			result.Scalar = scalar
			result.Rows = nil
		}
	}

	if !s.Config.BruteMode {
		s.Logger.Debug("performed queries",
			"count", s.ErrorCount.Load(),
			"seconds", time.Since(start).Seconds(),
		)
	}

	return result, nil
}
