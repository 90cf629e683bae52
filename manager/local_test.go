package manager

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/model"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/store"
)

func newTestLocal(t *testing.T, h http.Handler) (*Local, *store.Store) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "models.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	l, err := NewLocal(LocalConfig{Dir: filepath.Join(dir, "bundles"), BaseURL: srv.URL}, st)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, st
}

func resolve(t *testing.T, tag string) model.Handle {
	t.Helper()
	r, err := model.NewRegistry(model.DefaultCatalog(), NewMock(), "")
	require.NoError(t, err)
	h, err := r.Resolve(tag)
	require.NoError(t, err)
	return h
}

func nextEvent(t *testing.T, l *Local) Event {
	t.Helper()
	select {
	case ev := <-l.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
	}
	return Event{}
}

func TestLocalDownloadAndDelete(t *testing.T) {
	l, st := newTestLocal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/en-US", r.URL.Path)
		w.Write([]byte("bundle-bytes"))
	}))
	ctx := context.Background()
	h := resolve(t, "en-US")

	ok, err := l.IsModelDownloaded(ctx, h)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Download(ctx, h, Conditions{}))
	ev := nextEvent(t, l)
	assert.Equal(t, DownloadSucceeded, ev.Kind)
	assert.Equal(t, model.Identifier("en-US"), ev.Model)

	ok, err = l.IsModelDownloaded(ctx, h)
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := st.Models().Get("en-US")
	require.NoError(t, err)
	assert.Equal(t, int64(len("bundle-bytes")), rec.Size)
	assert.Len(t, rec.SHA256, 64)

	require.NoError(t, <-l.DeleteDownloadedModel(ctx, h))
	_, err = os.Stat(rec.Path)
	assert.True(t, os.IsNotExist(err))

	err = <-l.DeleteDownloadedModel(ctx, h)
	assert.True(t, errors.Is(err, ErrNotDownloaded))
}

func TestLocalDownloadFailure(t *testing.T) {
	l, _ := newTestLocal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	h := resolve(t, "fr-FR")

	require.NoError(t, l.Download(context.Background(), h, Conditions{}))
	ev := nextEvent(t, l)
	assert.Equal(t, DownloadFailed, ev.Kind)
	require.Error(t, ev.Err)
	assert.True(t, strings.Contains(ev.Err.Error(), "404"))

	ok, err := l.IsModelDownloaded(context.Background(), h)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalDuplicateDownloadJoins(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	l, _ := newTestLocal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		w.Write([]byte("x"))
	}))
	h := resolve(t, "de-DE")

	require.NoError(t, l.Download(context.Background(), h, Conditions{}))
	require.NoError(t, l.Download(context.Background(), h, Conditions{}))
	close(release)

	assert.Equal(t, DownloadSucceeded, nextEvent(t, l).Kind)
	assert.Equal(t, DownloadSucceeded, nextEvent(t, l).Kind)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestLocalDropsRecordWithoutBundle(t *testing.T) {
	l, st := newTestLocal(t, http.NotFoundHandler())
	require.NoError(t, st.Models().Put(&store.Model{Tag: "it-IT", Path: filepath.Join(t.TempDir(), "gone")}))

	ok, err := l.IsModelDownloaded(context.Background(), resolve(t, "it-IT"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = st.Models().Get("it-IT")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestLocalWithoutSource(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "models.db"))
	require.NoError(t, err)
	defer st.Close()

	l, err := NewLocal(LocalConfig{Dir: filepath.Join(dir, "bundles")}, st)
	require.NoError(t, err)
	defer l.Close()

	assert.Error(t, l.Download(context.Background(), resolve(t, "en-US"), Conditions{}))
}
