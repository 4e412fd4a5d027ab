package errorextract

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/dvorasec/errsqli/internal/agent"
	"github.com/dvorasec/errsqli/internal/dbms"
	"github.com/dvorasec/errsqli/internal/resume"
)

// fakeRequester returns a scripted sequence of QueryResults, ignoring the
// forged payload content (the engine's own construction of that payload
// is exercised indirectly through the extracted values it returns).
type fakeRequester struct {
	mu        sync.Mutex
	responses []QueryResult
	errAt     map[int]error
	calls     int
	payloads  []string
}

func (f *fakeRequester) QueryPage(ctx context.Context, payload string) (QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	idx := f.calls
	f.calls++
	if err, ok := f.errAt[idx]; ok {
		return QueryResult{}, err
	}
	if idx >= len(f.responses) {
		return QueryResult{RequestUID: uint64(idx + 1)}, nil
	}
	r := f.responses[idx]
	if r.RequestUID == 0 {
		r.RequestUID = uint64(idx + 1)
	}
	return r, nil
}

func (f *fakeRequester) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// newTestSession builds a Session wired to a fakeRequester and an
// in-memory resume cache, returning both for assertions.
func newTestSession(t *testing.T, d dbms.DBMS, tmpl string, req *fakeRequester) *Session {
	t.Helper()

	store, err := resume.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("resume.NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	a := agent.New(agent.Vector{Prefix: "", Suffix: "-- ", DBMS: d}, tmpl)

	s, err := New(Params{
		DBMS:      d,
		Agent:     a,
		Requester: req,
		Resume:    store,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// marked wraps value between the session's markers inside a minimal HTML
// body, simulating the target echoing it in a diagnostic error message.
func marked(s *Session, value string) string {
	return "<html><body>Error: " + s.Markers.Start + value + s.Markers.Stop + "</body></html>"
}

func result(body string) QueryResult {
	return QueryResult{Body: body, Headers: http.Header{}}
}
