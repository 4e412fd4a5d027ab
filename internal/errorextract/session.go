// Package errorextract implements the error-based SQL injection extraction
// engine: forging requests that coerce a diagnostic error message out of
// the target database, reassembling per-DBMS length-capped output into a
// full scalar, expanding tuple-returning expressions row by row, and
// fanning row retrieval out across a bounded, cooperatively-cancellable
// worker pool backed by a persistent resume cache.
//
// Everything outside this package is an external collaborator consumed by
// contract: the HTTP transport (Requester), injection-vector payload
// construction (Agent, internal/agent), per-DBMS SQL knowledge
// (DialectCatalogue, internal/dbms), and the resume cache (ResumeStore,
// internal/resume).
package errorextract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sync/atomic"

	"github.com/dvorasec/errsqli/internal/agent"
	"github.com/dvorasec/errsqli/internal/dbms"
	"github.com/dvorasec/errsqli/internal/marker"
	"github.com/dvorasec/errsqli/internal/payload"
	"github.com/dvorasec/errsqli/internal/resume"
)

// Settings the DialectCatalogue/Requester contract doesn't already carry
// (spec §6 Settings).
const (
	// SlowOrderCountThreshold is the row-count above which a pending
	// ORDER BY on a multi-row expression triggers the operator prompt to
	// drop it for speed (spec §4.5).
	SlowOrderCountThreshold = 10000

	// TurnOffResumeInfoLimit is the row-count above which per-row resume
	// info lines are suppressed to avoid flooding the console during a
	// large dump (spec §4.5).
	TurnOffResumeInfoLimit = 500
)

// scalarExpressionPattern approximates SQL_SCALAR_REGEX (spec §6): an
// expression projecting only an aggregate function is syntactically
// scalar and is never row-expanded, even if it has a FROM clause. The
// exact upstream pattern lives in a settings module outside the retrieval
// pack; this is a reasonable reconstruction from the aggregates RowPlanner
// must recognise (documented in DESIGN.md).
var scalarExpressionPattern = regexp.MustCompile(`(?i)\A\s*SELECT\s+(?:COUNT|MIN|MAX|SUM|AVG)\s*\(`)

// Requester is the transport contract the engine drives every request
// through (spec §6 Requester). Implementations must tag each response with
// a monotonically assigned request UID and, when a redirect was followed,
// the body of the redirect response tied to that same UID.
type Requester interface {
	QueryPage(ctx context.Context, payload string) (QueryResult, error)
}

// QueryResult is a single Requester round trip, reduced to what the
// Extractor needs to locate the marked output.
type QueryResult struct {
	Body       string
	Headers    http.Header
	RequestUID uint64
	Redirect   *marker.RedirectMessage
}

// Config holds the process-wide settings threaded through a Session (spec
// §9 "process-wide Session value" design note, folding in conf.hexConvert,
// kb.safeCharEncode, conf.threads, and the operator-supplied dump range).
type Config struct {
	// HexConvert decodes assembled scalars as hex before HTML-unescaping,
	// for DBMS dialects transporting output as hex literals.
	HexConvert bool

	// SafeCharEncode, when set, applies DisplayEncode to the value
	// SingleShotRetriever returns to its caller (not to what is cached).
	SafeCharEncode bool

	// Threads bounds the WorkerPool's concurrency (spec §4.6).
	Threads int

	// Dump requests multi-row extraction with an explicit row range.
	Dump bool

	// LimitStart/LimitStop are the operator-configured 1-based dump
	// range, consulted only when the expression carries no LIMIT/TOP of
	// its own (spec §4.5).
	LimitStart int
	LimitStop  int

	// BruteMode suppresses the Orchestrator's closing duration log line
	// (spec §4.8 step 5).
	BruteMode bool
}

// Params constructs a Session. DBMS, Agent, Requester, and Resume are
// required; the remaining fields have the zero-cost defaults noted below.
type Params struct {
	DBMS      dbms.DBMS
	Agent     *agent.Agent
	Requester Requester
	Resume    resume.Store
	Config    Config

	// InfoWriter receives per-field progress lines (spec §6 Operator UI).
	// Defaults to io.Discard.
	InfoWriter io.Writer

	// DisplayEncode is the safe-character display-encoding collaborator
	// (spec §1 lists "safe-character encoding for display" as deliberately
	// out of scope). Nil means identity — values pass through unencoded.
	DisplayEncode func(string) string

	// Prompt is the Operator UI readInput(prompt, default) collaborator
	// consulted before dropping a slow ORDER BY clause (spec §4.5, §6).
	// Nil means always keep the default answer (do not drop the clause).
	Prompt func(question, def string) string

	Logger *slog.Logger
}

// Session is the process-wide value the engine threads through every
// component: markers, the safe-char placeholder map, the resume cache,
// the bound DBMS dialect and Agent, the Requester, counters, and the
// cooperative CancelFlag (spec §9 "Global mutable state" design note).
type Session struct {
	Markers   marker.Markers
	Extractor *marker.Extractor
	SafeChars payload.SafeCharMap

	Resume    resume.Store
	DBMS      dbms.DBMS
	Agent     *agent.Agent
	Requester Requester
	Config    Config

	// ErrorCount is the process-wide ERROR-technique request counter
	// (spec §6 Settings, §8 invariant on request counts).
	ErrorCount atomic.Int64

	// Cancel is the cooperative cancellation flag read by workers and
	// cleared by the Orchestrator on operator abort (spec §5, §4.6).
	Cancel *CancelFlag

	// SuppressResumeInfo silences per-row info lines once RowPlanner
	// detects a row count above TurnOffResumeInfoLimit (spec §4.5).
	SuppressResumeInfo atomic.Bool

	InfoWriter    io.Writer
	DisplayEncode func(string) string
	Prompt        func(question, def string) string
	Logger        *slog.Logger
}

// New builds a Session with freshly generated Markers and SafeCharMap.
func New(p Params) (*Session, error) {
	if p.DBMS == nil || p.Agent == nil || p.Requester == nil || p.Resume == nil {
		return nil, fmt.Errorf("errorextract: DBMS, Agent, Requester, and Resume are required")
	}

	m, err := marker.New()
	if err != nil {
		return nil, fmt.Errorf("errorextract: generate markers: %w", err)
	}
	sc, err := payload.NewSafeCharMap()
	if err != nil {
		return nil, fmt.Errorf("errorextract: generate safe-char map: %w", err)
	}

	infoWriter := p.InfoWriter
	if infoWriter == nil {
		infoWriter = io.Discard
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		Markers:       m,
		Extractor:     marker.NewExtractor(m),
		SafeChars:     sc,
		Resume:        p.Resume,
		DBMS:          p.DBMS,
		Agent:         p.Agent,
		Requester:     p.Requester,
		Config:        p.Config,
		Cancel:        NewCancelFlag(),
		InfoWriter:    infoWriter,
		DisplayEncode: p.DisplayEncode,
		Prompt:        p.Prompt,
		Logger:        logger,
	}, nil
}

// displayEncode applies the DisplayEncode collaborator, or identity if the
// caller configured none.
func (s *Session) displayEncode(v string) string {
	if s.DisplayEncode == nil {
		return v
	}
	return s.DisplayEncode(v)
}
