package model

import (
	"context"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/pkg/errors"
)

// maxSuggestDistance bounds how far a mistyped tag may be from a catalog
// entry before no suggestion is offered.
const maxSuggestDistance = 2

// Checker answers whether a model is present on the device.
type Checker interface {
	IsModelDownloaded(ctx context.Context, h Handle) (bool, error)
}

// Registry resolves tags and caches the downloaded set. The cache is only a
// convenience: IsDownloaded always asks the checker.
type Registry struct {
	catalog *Catalog
	checker Checker
	def     Handle

	mu     sync.Mutex
	cache  map[Identifier]bool
	states map[Identifier]State
}

// NewRegistry builds a registry over catalog. defaultTag must resolve;
// an empty defaultTag uses the catalog default.
func NewRegistry(catalog *Catalog, checker Checker, defaultTag string) (*Registry, error) {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	r := &Registry{
		catalog: catalog,
		checker: checker,
		cache:   make(map[Identifier]bool),
		states:  make(map[Identifier]State),
	}

	if defaultTag == "" {
		r.def = Handle{tag: catalog.Default()}
		return r, nil
	}
	h, err := r.Resolve(defaultTag)
	if err != nil {
		return nil, errors.Wrap(err, "default model")
	}
	r.def = h
	return r, nil
}

// Resolve maps a tag to a handle. It never touches the device.
func (r *Registry) Resolve(tag string) (Handle, error) {
	if id, ok := r.catalog.lookup(tag); ok {
		return Handle{tag: id}, nil
	}
	return Handle{}, &InvalidIdentifierError{Tag: tag, Suggestion: r.suggest(tag)}
}

func (r *Registry) suggest(tag string) Identifier {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return ""
	}

	best := Identifier("")
	bestDist := maxSuggestDistance + 1
	for _, id := range r.catalog.tags {
		d := levenshtein.ComputeDistance(tag, strings.ToLower(string(id)))
		if d < bestDist {
			best, bestDist = id, d
		}
	}
	return best
}

func (r *Registry) Default() Handle {
	return r.def
}

func (r *Registry) Catalog() *Catalog {
	return r.catalog
}

// IsDownloaded queries the checker and records the answer.
func (r *Registry) IsDownloaded(ctx context.Context, h Handle) (bool, error) {
	ok, err := r.checker.IsModelDownloaded(ctx, h)
	if err != nil {
		return false, errors.Wrapf(err, "checking %s", h.tag)
	}

	r.mu.Lock()
	r.record(h.tag, ok)
	r.mu.Unlock()

	return ok, nil
}

// RefreshDownloadedSet asks the checker about every catalog entry and
// replaces the cache with the answers.
func (r *Registry) RefreshDownloadedSet(ctx context.Context) (DownloadedSet, error) {
	present := make(map[Identifier]bool)
	for _, id := range r.catalog.tags {
		if err := ctx.Err(); err != nil {
			return DownloadedSet{}, err
		}
		ok, err := r.checker.IsModelDownloaded(ctx, Handle{tag: id})
		if err != nil {
			return DownloadedSet{}, errors.Wrapf(err, "checking %s", id)
		}
		if ok {
			present[id] = true
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = make(map[Identifier]bool, len(present))
	tags := make([]Identifier, 0, len(present))
	for _, id := range r.catalog.tags {
		r.record(id, present[id])
		if present[id] {
			tags = append(tags, id)
		}
	}
	return NewDownloadedSet(tags...), nil
}

// Cached returns the downloaded set as of the last query, without I/O.
func (r *Registry) Cached() DownloadedSet {
	r.mu.Lock()
	defer r.mu.Unlock()

	tags := make([]Identifier, 0, len(r.cache))
	for id, ok := range r.cache {
		if ok {
			tags = append(tags, id)
		}
	}
	return NewDownloadedSet(tags...)
}

// MarkDownloaded updates the cache after a completion without asking the
// checker.
func (r *Registry) MarkDownloaded(h Handle, downloaded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache[h.tag] = downloaded
}

func (r *Registry) State(h Handle) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.states[h.tag]
}

// Transition moves h to state to, rejecting moves the lifecycle forbids.
func (r *Registry) Transition(h Handle, to State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	from := r.states[h.tag]
	if !CanTransition(from, to) {
		return errors.Errorf("%s: can't go from %s to %s", h.tag, from, to)
	}
	r.states[h.tag] = to
	return nil
}

// record must be called with mu held. Models in flight keep their state so
// a refresh can't skip a step of the lifecycle.
func (r *Registry) record(id Identifier, downloaded bool) {
	r.cache[id] = downloaded

	switch r.states[id] {
	case Downloading, Deleting:
		return
	}
	if downloaded {
		r.states[id] = Downloaded
	} else {
		r.states[id] = NotDownloaded
	}
}
