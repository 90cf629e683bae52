package digitalink

import (
	"context"
	"fmt"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/log"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/manager"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/model"
)

type opKind int

const (
	opDownload opKind = iota
	opDelete
)

func (k opKind) String() string {
	if k == opDelete {
		return "delete"
	}
	return "download"
}

// listener is the call currently entitled to completions. pending counts
// outstanding completions per model; duplicates count twice.
type listener struct {
	call    *Call
	kind    opKind
	pending map[model.Identifier]int
	count   int
}

// DeleteOptions picks what DeleteModel removes. Model wins over Models,
// which wins over All.
type DeleteOptions struct {
	Model  string   `json:"model,omitempty"`
	Models []string `json:"models,omitempty"`
	All    bool     `json:"all,omitempty"`
}

// DownloadSingularModel downloads one model. The call ends with the
// download's completion, or immediately when there is nothing to do or the
// tag is bad.
func (p *Plugin) DownloadSingularModel(ctx context.Context, tag string) (*Call, error) {
	if tag == "" {
		return nil, newError(ErrMissingArgument, "", "No model given, no models downloaded.")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, notInitialized()
	}

	l := p.claim("downloadSingularModel", opDownload)
	if r, dispatched := p.downloadOne(ctx, l, tag); !dispatched {
		p.retire(l, r)
	}
	return l.call, nil
}

// DownloadMultipleModels downloads every tag. A bad tag is reported and
// skipped.
func (p *Plugin) DownloadMultipleModels(ctx context.Context, tags []string) (*Call, error) {
	if len(tags) == 0 {
		return nil, newError(ErrMissingArgument, "", "No params given, no models downloaded.")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, notInitialized()
	}

	l := p.claim("downloadMultipleModels", opDownload)
	l.call.emit(progress("Processing models...", ""))
	for _, tag := range tags {
		if r, dispatched := p.downloadOne(ctx, l, tag); !dispatched {
			l.call.emit(withDone(r, false))
		}
	}
	p.settleBatch(l)
	return l.call, nil
}

// downloadOne handles one identifier. When it dispatches, it has already
// emitted the progress response; otherwise it returns the outcome for the
// caller to emit.
func (p *Plugin) downloadOne(ctx context.Context, l *listener, tag string) (Response, bool) {
	h, err := p.reg.Resolve(tag)
	if err != nil {
		return failure(invalid(tag, err)), false
	}
	id := string(h.Tag())

	present, err := p.reg.IsDownloaded(ctx, h)
	if err != nil {
		return failure(newError(ErrDownloadFailed, id, "%s model failed to download: %v", id, err)), false
	}
	if present {
		return Response{OK: true, Msg: id + " model is already downloaded.", Model: id}, false
	}

	p.settle(h, model.Downloading)
	if err := p.mgr.Download(ctx, h, p.cond); err != nil {
		p.settle(h, model.NotDownloaded)
		return failure(newError(ErrDownloadFailed, id, "%s model failed to download: %v", id, err)), false
	}

	l.pending[h.Tag()]++
	l.count++
	l.call.emit(progress(id+" model is downloading.", id))
	return Response{}, true
}

// DeleteModel deletes one model, several, or all downloaded models. The
// downloaded set is refreshed first so the decision reflects the device.
func (p *Plugin) DeleteModel(ctx context.Context, opts DeleteOptions) (*Call, error) {
	if opts.Model == "" && len(opts.Models) == 0 && !opts.All {
		return nil, newError(ErrMissingArgument, "", "No params given, no models deleted.")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, notInitialized()
	}

	p.supersede()

	set, err := p.reg.RefreshDownloadedSet(ctx)
	if err != nil {
		return nil, newError(ErrDeleteFailed, "", "Can't list downloaded models: %v", err)
	}

	switch {
	case opts.Model != "":
		l := p.claim("deleteModel", opDelete)
		if r, dispatched := p.deleteOne(ctx, l, set, opts.Model); !dispatched {
			p.retire(l, r)
		}
		return l.call, nil

	case len(opts.Models) > 0:
		l := p.claim("deleteModel", opDelete)
		l.call.emit(progress("Processing models...", ""))
		for _, tag := range opts.Models {
			if r, dispatched := p.deleteOne(ctx, l, set, tag); !dispatched {
				l.call.emit(withDone(r, false))
			}
		}
		p.settleBatch(l)
		return l.call, nil
	}

	if set.Len() == 0 {
		return nil, newError(ErrNoModelsDownloaded, "", "No models are currently downloaded.")
	}

	l := p.claim("deleteModel", opDelete)
	l.call.emit(progress(fmt.Sprintf("Deleting %d models...", set.Len()), ""))
	for _, id := range set.Tags() {
		p.deleteOne(ctx, l, set, string(id))
	}
	return l.call, nil
}

func (p *Plugin) deleteOne(ctx context.Context, l *listener, set model.DownloadedSet, tag string) (Response, bool) {
	h, err := p.reg.Resolve(tag)
	if err != nil {
		return failure(invalid(tag, err)), false
	}
	id := string(h.Tag())

	if !set.Contains(h.Tag()) {
		return failure(newError(ErrModelNotDownloaded, id, "%s model is not downloaded.", id)), false
	}

	p.settle(h, model.Deleting)
	done := p.mgr.DeleteDownloadedModel(ctx, h)
	l.pending[h.Tag()]++
	l.count++
	go p.awaitDelete(l, h, done)

	l.call.emit(progress(id+" model is being deleted.", id))
	return Response{}, true
}

func (p *Plugin) awaitDelete(l *listener, h model.Handle, done <-chan error) {
	select {
	case err := <-done:
		p.onDelete(l, h, err)
	case <-p.stop:
	}
}

// settleBatch ends a batch whose loop dispatched nothing, or reports that
// the loop is over and completions are outstanding.
func (p *Plugin) settleBatch(l *listener) {
	r := Response{OK: true, Msg: "Models processed."}
	if l.count == 0 {
		p.retire(l, r)
		return
	}
	l.call.emit(withDone(r, false))
}

// claim makes a new call the active listener, superseding any other.
// Callers hold p.mu.
func (p *Plugin) claim(op string, kind opKind) *listener {
	p.supersede()
	l := &listener{
		call:    newCall(op),
		kind:    kind,
		pending: make(map[model.Identifier]int),
	}
	p.active = l
	return l
}

// supersede gives the active call its synthetic terminal response.
func (p *Plugin) supersede() {
	if p.active == nil {
		return
	}
	log.Trace.Printf("superseding call %s with %d pending", p.active.call.ID, p.active.count)
	p.active.call.finish(ok(msgCleanedUp))
	p.active = nil
}

func (p *Plugin) retire(l *listener, r Response) {
	l.call.finish(r)
	if p.active == l {
		p.active = nil
	}
}

// pump routes download events until Close.
func (p *Plugin) pump() {
	for {
		select {
		case ev, open := <-p.mgr.Events():
			if !open {
				return
			}
			p.onDownload(ev)
		case <-p.stop:
			return
		}
	}
}

func (p *Plugin) onDownload(ev manager.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, err := p.reg.Resolve(string(ev.Model))
	if err != nil {
		log.Trace.Printf("download event for unknown model %s", ev.Model)
		return
	}
	id := string(h.Tag())

	var r Response
	if ev.Kind == manager.DownloadSucceeded {
		p.reg.MarkDownloaded(h, true)
		p.settle(h, model.Downloaded)
		r = Response{OK: true, Msg: id + " model successfully downloaded.", Model: id}
	} else {
		p.reg.MarkDownloaded(h, false)
		p.settle(h, model.NotDownloaded)
		r = failure(newError(ErrDownloadFailed, id, "%s model failed to download.", id))
		log.Trace.Printf("download of %s failed: %v", id, ev.Err)
	}

	l := p.active
	if l == nil || l.kind != opDownload || l.pending[h.Tag()] == 0 {
		log.Trace.Printf("no call waiting for download of %s, discarding", id)
		return
	}
	p.complete(l, h.Tag(), r)
}

func (p *Plugin) onDelete(l *listener, h model.Handle, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := string(h.Tag())

	var r Response
	if err == nil {
		p.reg.MarkDownloaded(h, false)
		p.settle(h, model.NotDownloaded)
		r = Response{OK: true, Msg: id + " model successfully deleted.", Model: id}
	} else {
		p.settle(h, model.Downloaded)
		r = failure(newError(ErrDeleteFailed, id, "%s model failed to delete: %v", id, err))
	}

	if p.active != l || l.pending[h.Tag()] == 0 {
		log.Trace.Printf("call for delete of %s is gone, discarding", id)
		return
	}
	p.complete(l, h.Tag(), r)
}

// complete attributes one completion to l. The response for the last
// outstanding completion is terminal.
func (p *Plugin) complete(l *listener, id model.Identifier, r Response) {
	l.pending[id]--
	if l.pending[id] == 0 {
		delete(l.pending, id)
	}
	l.count--

	if l.count == 0 {
		p.retire(l, r)
		return
	}
	l.call.emit(withDone(r, false))
}

func notInitialized() *Error {
	return newError(ErrNotInitialized, "", "Plugin is not initialized.")
}
