package errorextract

import (
	"context"
	"sync"
	"testing"

	"github.com/dvorasec/errsqli/internal/dbms"
)

func TestCancelFlagStartsTrueAndCancelClearsIt(t *testing.T) {
	f := NewCancelFlag()
	if !f.Continue() {
		t.Fatal("a fresh CancelFlag must start in the continue state")
	}
	f.Cancel()
	if f.Continue() {
		t.Fatal("Continue() = true after Cancel()")
	}
}

func TestRowCursorAcquireNextExhaustsMonotonically(t *testing.T) {
	c := NewRowCursor(2, 5)
	var got []int
	for {
		n, ok := c.AcquireNext()
		if !ok {
			break
		}
		got = append(got, n)
	}
	want := []int{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestRowCursorAcquireNextConcurrentSafe(t *testing.T) {
	c := NewRowCursor(0, 200)
	var mu sync.Mutex
	seen := make(map[int]bool)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				n, ok := c.AcquireNext()
				if !ok {
					return
				}
				mu.Lock()
				if seen[n] {
					t.Errorf("row %d acquired twice", n)
				}
				seen[n] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 200 {
		t.Fatalf("len(seen) = %d, want 200", len(seen))
	}
}

func TestOutputBufferAppendFlattensSingleElementRows(t *testing.T) {
	b := NewOutputBuffer()
	scalar := "root"
	b.Append([]*string{&scalar})

	col1, col2 := "a", "b"
	b.Append([]*string{&col1, &col2})

	rows := b.Rows()
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if v, ok := rows[0].(*string); !ok || *v != "root" {
		t.Errorf("rows[0] = %v, want flattened scalar \"root\"", rows[0])
	}
	if _, ok := rows[1].([]*string); !ok {
		t.Errorf("rows[1] = %v, want the unflattened multi-field row", rows[1])
	}
}

func TestOutputBufferRowsReturnsDefensiveCopy(t *testing.T) {
	b := NewOutputBuffer()
	v := "x"
	b.Append([]*string{&v})

	rows := b.Rows()
	rows[0] = nil

	again := b.Rows()
	if again[0] == nil {
		t.Fatal("mutating the slice returned by Rows() affected the buffer's internal state")
	}
}

func TestRunPoolSingleThreadPopulatesBufferForEachRow(t *testing.T) {
	d := &dbms.Oracle{}
	req := &fakeRequester{}
	s := newTestSession(t, d, "{{.Query}}", req)
	req.responses = []QueryResult{
		result(marked(s, "row0")),
		result(marked(s, "row1")),
		result(marked(s, "row2")),
	}

	cursor := NewRowCursor(0, 3)
	buf := NewOutputBuffer()
	s.RunPool(context.Background(), 1, cursor, buf, "col", "col", []string{"col"})

	rows := buf.Rows()
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	want := []string{"row0", "row1", "row2"}
	for i, w := range want {
		v, ok := rows[i].(*string)
		if !ok || v == nil || *v != w {
			t.Errorf("rows[%d] = %v, want %q", i, rows[i], w)
		}
	}
}

func TestRunPoolStopsWithoutCommittingAfterPriorCancellation(t *testing.T) {
	d := &dbms.Oracle{}
	req := &fakeRequester{}
	s := newTestSession(t, d, "{{.Query}}", req)
	req.responses = []QueryResult{result(marked(s, "row0"))}
	s.Cancel.Cancel()

	cursor := NewRowCursor(0, 5)
	buf := NewOutputBuffer()
	s.RunPool(context.Background(), 1, cursor, buf, "col", "col", []string{"col"})

	if len(buf.Rows()) != 0 {
		t.Fatalf("rows = %v, want none committed once CancelFlag is cleared", buf.Rows())
	}
	if req.callCount() != 1 {
		t.Errorf("callCount = %d, want 1 (worker exits after its first row observes the cleared flag)", req.callCount())
	}
}

func TestExpandRowRecoveredRecoversFromPanicAndLogsInsteadOfCrashing(t *testing.T) {
	d := &dbms.Oracle{}
	req := &fakeRequester{}
	s := newTestSession(t, d, "{{.Query}}", req)
	s.Agent = nil // forces a nil-pointer panic inside LimitQuery's row-index path

	result := s.expandRowRecovered(context.Background(), "col", "col", []string{"col"}, 0)
	if result != nil {
		t.Fatalf("result = %v, want nil after a recovered panic", result)
	}
}
