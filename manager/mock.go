package manager

import (
	"context"
	"sync"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/model"
)

// Mock is an in-memory Manager whose completions are driven by the test.
type Mock struct {
	mu         sync.Mutex
	downloaded map[model.Identifier]bool
	downloads  []model.Identifier
	deletes    []model.Identifier
	pending    map[model.Identifier][]chan error
	startErr   map[model.Identifier]error
	checkErr   error
	conditions []Conditions
	events     chan Event
}

func NewMock() *Mock {
	return &Mock{
		downloaded: make(map[model.Identifier]bool),
		pending:    make(map[model.Identifier][]chan error),
		startErr:   make(map[model.Identifier]error),
		events:     make(chan Event, 256),
	}
}

// SetDownloaded marks tags as present.
func (m *Mock) SetDownloaded(tags ...model.Identifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tags {
		m.downloaded[t] = true
	}
}

// SetCheckError makes every presence check fail with err.
func (m *Mock) SetCheckError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkErr = err
}

// FailDownloadStart makes Download return err for tag without emitting an
// event.
func (m *Mock) FailDownloadStart(tag model.Identifier, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr[tag] = err
}

func (m *Mock) IsModelDownloaded(_ context.Context, h model.Handle) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checkErr != nil {
		return false, m.checkErr
	}
	return m.downloaded[h.Tag()], nil
}

func (m *Mock) Download(_ context.Context, h model.Handle, c Conditions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.startErr[h.Tag()]; err != nil {
		return err
	}
	m.downloads = append(m.downloads, h.Tag())
	m.conditions = append(m.conditions, c)
	return nil
}

func (m *Mock) DeleteDownloadedModel(_ context.Context, h model.Handle) <-chan error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, h.Tag())
	if !m.downloaded[h.Tag()] {
		return done(ErrNotDownloaded)
	}
	ch := make(chan error, 1)
	m.pending[h.Tag()] = append(m.pending[h.Tag()], ch)
	return ch
}

func (m *Mock) Events() <-chan Event {
	return m.events
}

// CompleteDownload emits the completion event for tag. A nil err marks the
// model as present.
func (m *Mock) CompleteDownload(tag model.Identifier, err error) {
	m.mu.Lock()
	ev := Event{Kind: DownloadSucceeded, Model: tag}
	if err != nil {
		ev = Event{Kind: DownloadFailed, Model: tag, Err: err}
	} else {
		m.downloaded[tag] = true
	}
	m.mu.Unlock()

	m.events <- ev
}

// CompleteDelete finishes the oldest pending delete of tag. It reports
// false when no delete of tag is waiting.
func (m *Mock) CompleteDelete(tag model.Identifier, err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.pending[tag]
	if len(q) == 0 {
		return false
	}
	ch := q[0]
	m.pending[tag] = q[1:]
	if err == nil {
		delete(m.downloaded, tag)
	}
	ch <- err
	return true
}

// Downloads returns the tags passed to Download, in call order.
func (m *Mock) Downloads() []model.Identifier {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Identifier(nil), m.downloads...)
}

func (m *Mock) Deletes() []model.Identifier {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Identifier(nil), m.deletes...)
}

// Conditions returns the conditions passed to Download, in call order.
func (m *Mock) Conditions() []Conditions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Conditions(nil), m.conditions...)
}
