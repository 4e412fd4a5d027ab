package errorextract

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ExpandRow is the RowExpander (C4): it expands a tuple-returning
// expression into one SingleShotRetriever call per projected field,
// optionally rewriting the expression for a single row via the Agent's
// LimitQuery when rowIndex is non-nil.
//
// Returns nil if the CancelFlag was observed cleared after any field, or
// if the expression projects no retrievable field at all.
func (s *Session) ExpandRow(ctx context.Context, expression, fieldsRaw string, fieldsList []string, rowIndex *int) []*string {
	var results []*string

	for _, field := range fieldsList {
		if strings.HasPrefix(field, "ROWNUM ") {
			continue
		}

		current := expression
		if rowIndex != nil {
			current = s.Agent.LimitQuery(*rowIndex, expression, field, fieldsList[0])
		}

		var toRetrieve string
		if containsRownum(fieldsList) {
			toRetrieve = current
		} else {
			toRetrieve = strings.Replace(current, fieldsRaw, field, 1)
		}

		value, resumed, err := s.Retrieve(ctx, toRetrieve, field)
		if err != nil {
			s.Logger.Error("row field retrieval failed", "field", field, "error", err)
			value = nil
		}

		if value != nil {
			s.logFieldResult(resumed, *value)
		}

		results = append(results, value)

		if !s.Cancel.Continue() {
			return nil
		}
	}

	return results
}

// containsRownum reports whether any projected field is (or starts) the
// dialect's synthetic ROWNUM marker, in which case row selection is
// already embedded in the expression and fieldsRaw must not be replaced
// (spec §4.4).
func containsRownum(fieldsList []string) bool {
	for _, f := range fieldsList {
		if f == "ROWNUM" || strings.HasPrefix(f, "ROWNUM ") {
			return true
		}
	}
	return false
}

// logFieldResult writes the per-field progress line (spec §4.4, §6
// Operator UI stdout format), unless RowPlanner suppressed it for a large
// dump.
func (s *Session) logFieldResult(resumed bool, value string) {
	if s.SuppressResumeInfo.Load() {
		return
	}
	status := "retrieved"
	if resumed {
		status = "resumed"
	}
	fmt.Fprintf(s.InfoWriter, "[%s] [INFO] %s: %s\r\n", time.Now().Format("15:04:05"), status, s.displayEncode(value))
}
