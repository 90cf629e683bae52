// Package digitalink orchestrates ink capture, model downloads and
// deletions, and recognition behind one asynchronous call surface.
//
// Download and delete calls stream responses. Completions arrive out of
// band and are routed to the single active call; a new call supersedes the
// previous one, which receives a synthetic terminal response.
package digitalink

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/ink"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/log"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/manager"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/model"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/recognizer"
)

const (
	msgInitialized = "Plugin initialized."
	msgErased      = "Erased stored stroke and point data."
	msgCleanedUp   = "cleaned up previous call"
)

// Options wires a Plugin to its collaborators.
type Options struct {
	Manager    manager.Manager
	Recognizer recognizer.Recognizer
	// Registry defaults to one over the built-in catalog.
	Registry   *model.Registry
	Conditions manager.Conditions
	// DownloadDefaultOnInit starts downloading the default model during
	// InitializePlugin when it is missing.
	DownloadDefaultOnInit bool
}

// Plugin is safe for concurrent use. One mutex serializes the ink buffer,
// the registry cache and the listener slot.
type Plugin struct {
	mgr             manager.Manager
	rec             recognizer.Recognizer
	reg             *model.Registry
	cond            manager.Conditions
	downloadDefault bool

	mu          sync.Mutex
	buf         *ink.Buffer
	initialized bool
	active      *listener

	stop     chan struct{}
	stopOnce sync.Once
}

func New(opts Options) (*Plugin, error) {
	if opts.Manager == nil {
		return nil, errors.New("model manager is required")
	}
	if opts.Recognizer == nil {
		return nil, errors.New("recognizer is required")
	}
	reg := opts.Registry
	if reg == nil {
		var err error
		reg, err = model.NewRegistry(model.DefaultCatalog(), opts.Manager, "")
		if err != nil {
			return nil, err
		}
	}

	return &Plugin{
		mgr:             opts.Manager,
		rec:             opts.Recognizer,
		reg:             reg,
		cond:            opts.Conditions,
		downloadDefault: opts.DownloadDefaultOnInit,
		buf:             ink.NewBuffer(),
		stop:            make(chan struct{}),
	}, nil
}

func (p *Plugin) Registry() *model.Registry {
	return p.reg
}

// InitializePlugin starts routing completions. Calling it again is
// harmless.
func (p *Plugin) InitializePlugin(ctx context.Context) Response {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		p.initialized = true
		go p.pump()
		log.Trace.Println("completion pump started")
	}

	if p.downloadDefault {
		p.ensureDefault(ctx)
	}

	return ok(msgInitialized)
}

// ensureDefault starts a download of the default model that no call
// listens to.
func (p *Plugin) ensureDefault(ctx context.Context) {
	h := p.reg.Default()
	present, err := p.reg.IsDownloaded(ctx, h)
	if err != nil {
		log.Warning.Printf("can't check default model %s: %v", h.Tag(), err)
		return
	}
	if present || p.reg.State(h) == model.Downloading {
		return
	}

	p.settle(h, model.Downloading)
	if err := p.mgr.Download(ctx, h, p.cond); err != nil {
		log.Warning.Printf("default model %s download failed to start: %v", h.Tag(), err)
		p.settle(h, model.NotDownloaded)
		return
	}
	log.Trace.Printf("downloading default model %s", h.Tag())
}

// Erase clears the ink and ends any call still waiting for completions.
func (p *Plugin) Erase() Response {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.supersede()
	p.buf.Erase()
	return ok(msgErased)
}

// Strokes is one stroke as parallel coordinate arrays. T is optional.
type Strokes struct {
	X []float32 `json:"x"`
	Y []float32 `json:"y"`
	T []int64   `json:"t,omitempty"`
}

func (p *Plugin) LogStrokes(s Strokes) (Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.buf.LogStroke(s.X, s.Y, s.T); err != nil {
		return fail(&Error{Kind: ErrMalformedStroke, Msg: err.Error()})
	}
	if s.T != nil {
		return ok("(with time values) stroke added"), nil
	}
	return ok("(without time values) stroke added"), nil
}

// Close stops routing completions. Calls still open get no further
// responses.
func (p *Plugin) Close() error {
	p.stopOnce.Do(func() { close(p.stop) })
	return nil
}

func fail(err error) (Response, error) {
	return failure(err), err
}

// settle records a lifecycle move, logging moves the lifecycle forbids
// instead of failing: the device is the source of truth.
func (p *Plugin) settle(h model.Handle, to model.State) {
	if err := p.reg.Transition(h, to); err != nil {
		log.Trace.Printf("lifecycle: %v", err)
	}
}
