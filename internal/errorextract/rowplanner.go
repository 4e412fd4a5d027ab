package errorextract

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dvorasec/errsqli/internal/dbms"
)

// Plan is the outcome of RowPlanner (C5): whether expression may return
// multiple rows and, if so, the absolute [StartLimit, StopLimit) row
// range to fan out over. Expression is expr with any existing LIMIT/TOP
// clause and a dropped slow ORDER BY stripped; it is what the Orchestrator
// passes on to RowExpander/WorkerPool.
type Plan struct {
	MultiRow   bool
	StartLimit int
	StopLimit  int
	Expression string
}

// Plan decides whether expression may return multiple rows and, if so,
// counts them (spec §4.5).
func (s *Session) Plan(ctx context.Context, expression, fieldsRaw string) (Plan, error) {
	limit := s.DBMS.LimitClause()

	// ORACLE-style dialects have no rewindable LIMIT/TOP syntax; row
	// selection there relies entirely on the expression's own ROWNUM, so
	// RowPlanner never expands it (spec §4.5: "limitCond = false").
	noRewindableClause := limit.Regexp == nil && !limit.SupportsTop

	if noRewindableClause || !s.isMultiRowCandidate(expression) {
		return Plan{MultiRow: false, Expression: expression}, nil
	}

	startLimit, stopLimit, rewritten, hasClause := parseExistingLimit(expression, limit)
	expression = rewritten

	if !hasClause && s.Config.Dump {
		startLimit = s.Config.LimitStart - 1
		stopLimit = s.Config.LimitStop
	}

	countExpr := strings.Replace(expression, fieldsRaw, s.DBMS.CountQuery("*"), 1)
	if idx := indexOfOrderBy(countExpr); idx >= 0 {
		countExpr = countExpr[:idx]
	}
	countFieldsRaw, _ := s.Agent.GetFields(countExpr)

	count, _, err := s.Retrieve(ctx, countExpr, countFieldsRaw)
	if err != nil {
		return Plan{}, fmt.Errorf("errorextract: count query: %w", err)
	}

	if count == nil || *count == "" {
		s.Logger.Warn("the SQL query provided does not return any output")
		return Plan{MultiRow: true, StartLimit: startLimit, StopLimit: startLimit, Expression: expression}, nil
	}

	n, convErr := strconv.Atoi(*count)
	switch {
	case convErr == nil && n > 0:
		if stopLimit > 0 {
			stopLimit = min(n, stopLimit)
		} else {
			stopLimit = n
			s.Logger.Info("the SQL query used returns entries", "entries", stopLimit)
		}
	case convErr == nil && n == 0:
		s.Logger.Warn("the SQL query provided does not return any output")
		return Plan{MultiRow: true, StartLimit: startLimit, StopLimit: startLimit, Expression: expression}, nil
	default:
		s.Logger.Warn("it was not possible to count the number of entries for the SQL query provided; assuming it returns only one entry")
		stopLimit = 1
	}

	if idx := indexOfOrderBy(expression); idx >= 0 && (stopLimit-startLimit) > SlowOrderCountThreshold {
		answer := "N"
		if s.Prompt != nil {
			answer = s.Prompt("due to huge table size do you want to remove ORDER BY clause gaining speed over consistency?", "N")
		}
		if strings.HasPrefix(strings.ToUpper(answer), "Y") {
			expression = expression[:idx]
		}
	}

	s.SuppressResumeInfo.Store(stopLimit > TurnOffResumeInfoLimit)

	return Plan{MultiRow: true, StartLimit: startLimit, StopLimit: stopLimit, Expression: expression}, nil
}

// isMultiRowCandidate implements spec §4.5's FROM/CASE/scalar heuristic.
func (s *Session) isMultiRowCandidate(expression string) bool {
	upper := strings.ToUpper(expression)

	dumpRange := s.Config.Dump && (s.Config.LimitStart != 0 || s.Config.LimitStop != 0)

	hasFrom := strings.Contains(upper, " FROM ")
	dummyTable := s.DBMS.DummyTable()
	isDummyTableQuery := dummyTable != "" && strings.HasSuffix(upper, strings.ToUpper(dummyTable))
	fromCandidate := hasFrom && !isDummyTableQuery

	if !dumpRange && !fromCandidate {
		return false
	}

	hasCase := strings.Contains(upper, "(CASE")
	if hasCase && !strings.Contains(expression, "WHEN use") {
		return false
	}

	return !scalarExpressionPattern.MatchString(expression)
}

// parseExistingLimit recognises a DBMS-specific LIMIT/TOP clause already
// present in expression and, if found, returns the absolute row range it
// encodes plus expression with that clause (and, for MSSQL/Sybase, the
// matched "TOP N " text) stripped (spec §4.5).
func parseExistingLimit(expression string, limit dbms.LimitDialect) (startLimit, stopLimit int, rewritten string, hasClause bool) {
	rewritten = expression

	if limit.Regexp != nil {
		m := limit.Regexp.FindStringSubmatch(expression)
		if m == nil {
			return 0, 0, rewritten, false
		}
		names := limit.Regexp.SubexpNames()
		groups := make(map[string]string, len(names))
		for i, n := range names {
			if n != "" && i < len(m) {
				groups[n] = m[i]
			}
		}
		if limit.HasStart {
			if v, err := strconv.Atoi(groups["start"]); err == nil {
				startLimit = v
			}
		}
		stop, _ := strconv.Atoi(groups["stop"])
		stopLimit = stop + startLimit

		if limit.Marker != "" {
			if idx := strings.Index(expression, limit.Marker); idx >= 0 {
				rewritten = expression[:idx]
			}
		}
		return startLimit, stopLimit, rewritten, true
	}

	if limit.SupportsTop {
		if m := dbms.MSSQLTopRegexp.FindStringSubmatchIndex(expression); m != nil {
			n, _ := strconv.Atoi(expression[m[2]:m[3]])
			rewritten = expression[:m[0]] + expression[m[1]:]
			return 0, n, rewritten, true
		}
	}

	return 0, 0, rewritten, false
}

func indexOfOrderBy(expr string) int {
	return strings.Index(strings.ToUpper(expr), " ORDER BY ")
}
