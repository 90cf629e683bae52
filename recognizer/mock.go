package recognizer

import (
	"context"
	"sync"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/ink"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/model"
)

// Call records one Recognize invocation.
type Call struct {
	Model   model.Identifier
	Strokes int
	Context Context
}

// Mock returns a canned result.
type Mock struct {
	mu     sync.Mutex
	result *Result
	err    error
	calls  []Call
}

func NewMock() *Mock {
	return &Mock{result: &Result{}}
}

// SetResult sets what Recognize returns. A nil result is allowed.
func (m *Mock) SetResult(r *Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = r
}

func (m *Mock) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Mock) Recognize(_ context.Context, h model.Handle, in ink.Ink, rc Context) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Model: h.Tag(), Strokes: in.Len(), Context: rc})
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
