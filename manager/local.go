package manager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/log"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/model"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/store"
)

const bundleExt = ".bundle"

// LocalConfig configures a Local manager.
type LocalConfig struct {
	// Dir receives one bundle file per model.
	Dir string
	// BaseURL serves bundles at BaseURL/<tag>. Without it downloads fail
	// but presence checks and deletes still work.
	BaseURL     string
	Concurrency int64
	Client      *http.Client
}

// Local keeps model bundles on disk and their bookkeeping in sqlite.
type Local struct {
	dir     string
	baseURL string
	client  *http.Client
	store   *store.Store
	sem     *semaphore.Weighted
	events  chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[model.Identifier]int
}

// NewLocal creates the bundle directory if needed. The store is owned by
// the caller.
func NewLocal(cfg LocalConfig, st *store.Store) (*Local, error) {
	if cfg.Dir == "" {
		return nil, errors.New("model dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, errors.Wrap(err, "can't create model dir")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 2
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Local{
		dir:      cfg.Dir,
		baseURL:  cfg.BaseURL,
		client:   client,
		store:    st,
		sem:      semaphore.NewWeighted(cfg.Concurrency),
		events:   make(chan Event, 64),
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[model.Identifier]int),
	}, nil
}

func (l *Local) Events() <-chan Event {
	return l.events
}

// IsModelDownloaded trusts the database only when the bundle is still on
// disk; a record without a file is dropped.
func (l *Local) IsModelDownloaded(ctx context.Context, h model.Handle) (bool, error) {
	tag := string(h.Tag())
	m, err := l.store.Models().Get(tag)
	if err == store.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "model lookup")
	}

	if _, err := os.Stat(m.Path); err != nil {
		if os.IsNotExist(err) {
			log.Trace.Printf("bundle for %s vanished, dropping record", tag)
			if err := l.store.Models().Delete(tag); err != nil && err != store.ErrNotFound {
				return false, errors.Wrap(err, "dropping stale record")
			}
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Download starts fetching the bundle in the background. A second call for
// the same tag joins the first one and gets its own event when it ends.
func (l *Local) Download(ctx context.Context, h model.Handle, c Conditions) error {
	if err := l.ctx.Err(); err != nil {
		return errors.New("manager is closed")
	}
	if l.baseURL == "" {
		return errors.New("no model source configured (models.base_url)")
	}

	tag := h.Tag()
	// TODO: honour AllowCellular once the host exposes whether the active
	// network is metered.
	log.Trace.Printf("download %s (cellular=%v background=%v)", tag, c.AllowCellular, c.AllowBackground)

	l.mu.Lock()
	l.inflight[tag]++
	joined := l.inflight[tag] > 1
	l.mu.Unlock()

	if joined {
		log.Trace.Printf("download %s already running, joining", tag)
		return nil
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		err := l.sem.Acquire(l.ctx, 1)
		if err == nil {
			err = l.fetch(tag)
			l.sem.Release(1)
		}

		l.mu.Lock()
		waiters := l.inflight[tag]
		delete(l.inflight, tag)
		l.mu.Unlock()

		ev := Event{Kind: DownloadSucceeded, Model: tag}
		if err != nil {
			log.Trace.Printf("download %s failed: %v", tag, err)
			ev = Event{Kind: DownloadFailed, Model: tag, Err: err}
		}
		for i := 0; i < waiters; i++ {
			select {
			case l.events <- ev:
			case <-l.ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (l *Local) fetch(tag model.Identifier) error {
	u := l.baseURL + "/" + url.PathEscape(string(tag))
	req, err := http.NewRequestWithContext(l.ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	res, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("model server: status %d", res.StatusCode)
	}

	final := filepath.Join(l.dir, string(tag)+bundleExt)
	tmp, err := os.CreateTemp(l.dir, string(tag)+".*.part")
	if err != nil {
		return errors.Wrap(err, "can't create bundle file")
	}
	defer os.Remove(tmp.Name())

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), res.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, "failed to read bundle")
	}

	if err := os.Rename(tmp.Name(), final); err != nil {
		return errors.Wrap(err, "can't move bundle in place")
	}

	return l.store.Models().Put(&store.Model{
		Tag:    string(tag),
		Path:   final,
		Size:   size,
		SHA256: hex.EncodeToString(hash.Sum(nil)),
	})
}

// DeleteDownloadedModel removes the bundle and its record.
func (l *Local) DeleteDownloadedModel(ctx context.Context, h model.Handle) <-chan error {
	ch := make(chan error, 1)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ch <- l.remove(h.Tag())
	}()
	return ch
}

func (l *Local) remove(tag model.Identifier) error {
	m, err := l.store.Models().Get(string(tag))
	if err == store.ErrNotFound {
		return ErrNotDownloaded
	}
	if err != nil {
		return errors.Wrap(err, "model lookup")
	}

	if err := os.Remove(m.Path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "can't remove bundle")
	}
	if err := l.store.Models().Delete(string(tag)); err != nil && err != store.ErrNotFound {
		return err
	}
	return nil
}

// Close stops background downloads and waits for them to return.
func (l *Local) Close() error {
	l.cancel()
	l.wg.Wait()
	return nil
}
