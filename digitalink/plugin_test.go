package digitalink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/manager"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/model"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/recognizer"
)

type fixture struct {
	p   *Plugin
	mgr *manager.Mock
	rec *recognizer.Mock
}

func newFixture(t *testing.T, downloaded ...model.Identifier) *fixture {
	t.Helper()
	f := newUninitialized(t, Options{}, downloaded...)
	r := f.p.InitializePlugin(context.Background())
	require.True(t, r.OK)
	return f
}

func newUninitialized(t *testing.T, opts Options, downloaded ...model.Identifier) *fixture {
	t.Helper()
	mgr := manager.NewMock()
	mgr.SetDownloaded(downloaded...)
	rec := recognizer.NewMock()

	opts.Manager = mgr
	opts.Recognizer = rec
	p, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	return &fixture{p: p, mgr: mgr, rec: rec}
}

func next(t *testing.T, c *Call) Response {
	t.Helper()
	select {
	case r, open := <-c.Responses():
		require.True(t, open, "stream closed early")
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a response")
	}
	return Response{}
}

func drain(t *testing.T, c *Call) []Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	all, err := c.Collect(ctx)
	require.NoError(t, err, "stream never finished")
	return all
}

func assertClosed(t *testing.T, c *Call) {
	t.Helper()
	select {
	case r, open := <-c.Responses():
		assert.False(t, open, "unexpected response after terminal: %+v", r)
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed")
	}
}

func countDone(rs []Response) int {
	n := 0
	for _, r := range rs {
		if r.Terminal() {
			n++
		}
	}
	return n
}

func TestLogStrokes(t *testing.T) {
	f := newFixture(t)

	r, err := f.p.LogStrokes(Strokes{X: []float32{1, 2}, Y: []float32{3, 4}})
	require.NoError(t, err)
	assert.True(t, r.OK)
	assert.Equal(t, "(without time values) stroke added", r.Msg)
	assert.Nil(t, r.Done)

	r, err = f.p.LogStrokes(Strokes{X: []float32{1}, Y: []float32{3}, T: []int64{9}})
	require.NoError(t, err)
	assert.Equal(t, "(with time values) stroke added", r.Msg)
}

func TestLogStrokesMalformed(t *testing.T) {
	f := newFixture(t)

	r, err := f.p.LogStrokes(Strokes{X: []float32{1, 2}, Y: []float32{3}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedStroke))
	assert.False(t, r.OK)
	assert.NotEmpty(t, r.Msg)
}

func TestEraseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	_, err := f.p.LogStrokes(Strokes{X: []float32{1}, Y: []float32{1}})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		r := f.p.Erase()
		assert.True(t, r.OK)
		assert.Equal(t, "Erased stored stroke and point data.", r.Msg)
	}
}

func TestDownloadAlreadyDownloaded(t *testing.T) {
	f := newFixture(t, "en-US")

	c, err := f.p.DownloadSingularModel(context.Background(), "en-US")
	require.NoError(t, err)

	rs := drain(t, c)
	require.Len(t, rs, 1)
	assert.True(t, rs[0].OK)
	assert.True(t, rs[0].Terminal())
	assert.Equal(t, "en-US model is already downloaded.", rs[0].Msg)
	assert.Empty(t, f.mgr.Downloads())
}

func TestDownloadSingle(t *testing.T) {
	f := newFixture(t)

	c, err := f.p.DownloadSingularModel(context.Background(), "fr-fr")
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)

	r := next(t, c)
	assert.True(t, r.OK)
	assert.False(t, r.Terminal())
	assert.Equal(t, "fr-FR model is downloading.", r.Msg)
	assert.Equal(t, []model.Identifier{"fr-FR"}, f.mgr.Downloads())

	f.mgr.CompleteDownload("fr-FR", nil)

	r = next(t, c)
	assert.True(t, r.OK)
	assert.True(t, r.Terminal())
	assert.Equal(t, "fr-FR model successfully downloaded.", r.Msg)
	assertClosed(t, c)

	h, _ := f.p.Registry().Resolve("fr-FR")
	assert.Equal(t, model.Downloaded, f.p.Registry().State(h))
}

func TestDownloadSingleFailure(t *testing.T) {
	f := newFixture(t)

	c, err := f.p.DownloadSingularModel(context.Background(), "fr-FR")
	require.NoError(t, err)
	next(t, c)

	f.mgr.CompleteDownload("fr-FR", errors.New("disk full"))

	r := next(t, c)
	assert.False(t, r.OK)
	assert.True(t, r.Terminal())
	assert.True(t, errors.Is(r.Err, ErrDownloadFailed))
	assert.Equal(t, "fr-FR model failed to download.", r.Msg)

	h, _ := f.p.Registry().Resolve("fr-FR")
	assert.Equal(t, model.NotDownloaded, f.p.Registry().State(h))
}

func TestDownloadStartFailure(t *testing.T) {
	f := newFixture(t)
	f.mgr.FailDownloadStart("fr-FR", errors.New("offline"))

	c, err := f.p.DownloadSingularModel(context.Background(), "fr-FR")
	require.NoError(t, err)

	rs := drain(t, c)
	require.Len(t, rs, 1)
	assert.False(t, rs[0].OK)
	assert.True(t, rs[0].Terminal())
	assert.True(t, errors.Is(rs[0].Err, ErrDownloadFailed))
}

func TestDownloadSingleInvalid(t *testing.T) {
	f := newFixture(t)

	c, err := f.p.DownloadSingularModel(context.Background(), "xx-INVALID")
	require.NoError(t, err)

	rs := drain(t, c)
	require.Len(t, rs, 1)
	assert.False(t, rs[0].OK)
	assert.True(t, rs[0].Terminal())
	assert.True(t, errors.Is(rs[0].Err, ErrInvalidModel))
	assert.Equal(t, "xx-INVALID", rs[0].Model)
	assert.Empty(t, f.mgr.Downloads())
}

func TestBatchDownloadInvalidAndValid(t *testing.T) {
	f := newFixture(t)

	c, err := f.p.DownloadMultipleModels(context.Background(), []string{"xx-INVALID", "en-US"})
	require.NoError(t, err)

	assert.Equal(t, "Processing models...", next(t, c).Msg)

	r := next(t, c)
	assert.False(t, r.OK)
	assert.False(t, r.Terminal())
	assert.Equal(t, "xx-INVALID", r.Model)

	r = next(t, c)
	assert.True(t, r.OK)
	assert.False(t, r.Terminal())
	assert.Equal(t, "en-US model is downloading.", r.Msg)

	r = next(t, c)
	assert.Equal(t, "Models processed.", r.Msg)
	assert.False(t, r.Terminal())

	f.mgr.CompleteDownload("en-US", nil)

	rs := drain(t, c)
	require.Len(t, rs, 1)
	assert.True(t, rs[0].Terminal())
	assert.Equal(t, "en-US model successfully downloaded.", rs[0].Msg)
}

func TestBatchDoneIsOrderIndependent(t *testing.T) {
	f := newFixture(t)
	tags := []string{"de-DE", "fr-FR", "it-IT"}

	c, err := f.p.DownloadMultipleModels(context.Background(), tags)
	require.NoError(t, err)

	// Processing, three dispatches, processed
	for i := 0; i < 5; i++ {
		assert.False(t, next(t, c).Terminal())
	}

	f.mgr.CompleteDownload("it-IT", nil)
	r := next(t, c)
	assert.False(t, r.Terminal())
	assert.Equal(t, "it-IT", r.Model)

	f.mgr.CompleteDownload("de-DE", errors.New("boom"))
	r = next(t, c)
	assert.False(t, r.Terminal())
	assert.False(t, r.OK)

	f.mgr.CompleteDownload("fr-FR", nil)
	r = next(t, c)
	assert.True(t, r.Terminal())
	assert.Equal(t, "fr-FR", r.Model)
	assertClosed(t, c)
}

func TestBatchDuplicatesCountTwice(t *testing.T) {
	f := newFixture(t)

	c, err := f.p.DownloadMultipleModels(context.Background(), []string{"de-DE", "de-DE"})
	require.NoError(t, err)
	assert.Equal(t, []model.Identifier{"de-DE", "de-DE"}, f.mgr.Downloads())

	for i := 0; i < 4; i++ {
		next(t, c)
	}

	f.mgr.CompleteDownload("de-DE", nil)
	assert.False(t, next(t, c).Terminal())

	f.mgr.CompleteDownload("de-DE", nil)
	assert.True(t, next(t, c).Terminal())
}

func TestBatchNothingToDo(t *testing.T) {
	f := newFixture(t, "en-US")

	c, err := f.p.DownloadMultipleModels(context.Background(), []string{"en-US", "nope"})
	require.NoError(t, err)

	rs := drain(t, c)
	require.Len(t, rs, 4)
	assert.Equal(t, "en-US model is already downloaded.", rs[1].Msg)
	assert.False(t, rs[1].Terminal())
	assert.False(t, rs[2].OK)
	assert.Equal(t, "Models processed.", rs[3].Msg)
	assert.True(t, rs[3].Terminal())
	assert.Equal(t, 1, countDone(rs))
}

func TestNewCallSupersedesPending(t *testing.T) {
	f := newFixture(t)

	first, err := f.p.DownloadSingularModel(context.Background(), "de-DE")
	require.NoError(t, err)
	second, err := f.p.DownloadSingularModel(context.Background(), "fr-FR")
	require.NoError(t, err)

	rs := drain(t, first)
	require.Len(t, rs, 2)
	assert.Equal(t, "de-DE model is downloading.", rs[0].Msg)
	assert.True(t, rs[1].OK)
	assert.True(t, rs[1].Terminal())
	assert.Equal(t, "cleaned up previous call", rs[1].Msg)

	assert.Equal(t, "fr-FR model is downloading.", next(t, second).Msg)

	// belongs to the superseded call, must be dropped
	f.mgr.CompleteDownload("de-DE", nil)
	f.mgr.CompleteDownload("fr-FR", nil)

	rs = drain(t, second)
	require.Len(t, rs, 1)
	assert.Equal(t, "fr-FR model successfully downloaded.", rs[0].Msg)
	assert.True(t, rs[0].Terminal())

	// the dropped completion still reached the cache
	h, _ := f.p.Registry().Resolve("de-DE")
	assert.Eventually(t, func() bool {
		return f.p.Registry().State(h) == model.Downloaded
	}, time.Second, 10*time.Millisecond)
}

func TestEraseSupersedesPending(t *testing.T) {
	f := newFixture(t)

	c, err := f.p.DownloadSingularModel(context.Background(), "de-DE")
	require.NoError(t, err)

	f.p.Erase()

	rs := drain(t, c)
	require.Len(t, rs, 2)
	assert.Equal(t, "cleaned up previous call", rs[1].Msg)
	assert.Equal(t, 1, countDone(rs))
}

func TestStrayCompletionIsDiscarded(t *testing.T) {
	f := newFixture(t)

	f.mgr.CompleteDownload("ja-JP", nil)

	h, _ := f.p.Registry().Resolve("ja-JP")
	assert.Eventually(t, func() bool {
		return f.p.Registry().Cached().Contains(h.Tag())
	}, time.Second, 10*time.Millisecond)
}

func TestStructuralErrorsKeepSlot(t *testing.T) {
	f := newFixture(t)

	c, err := f.p.DownloadSingularModel(context.Background(), "de-DE")
	require.NoError(t, err)
	next(t, c)

	_, err = f.p.DownloadMultipleModels(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrMissingArgument))
	_, err = f.p.DownloadSingularModel(context.Background(), "")
	assert.True(t, errors.Is(err, ErrMissingArgument))
	_, err = f.p.DeleteModel(context.Background(), DeleteOptions{})
	assert.True(t, errors.Is(err, ErrMissingArgument))

	f.mgr.CompleteDownload("de-DE", nil)
	r := next(t, c)
	assert.Equal(t, "de-DE model successfully downloaded.", r.Msg)
	assert.True(t, r.Terminal())
}

func TestNotInitialized(t *testing.T) {
	f := newUninitialized(t, Options{})

	_, err := f.p.DownloadSingularModel(context.Background(), "en-US")
	assert.True(t, errors.Is(err, ErrNotInitialized))
	_, err = f.p.DeleteModel(context.Background(), DeleteOptions{All: true})
	assert.True(t, errors.Is(err, ErrNotInitialized))
}

func TestDeleteAllEmpty(t *testing.T) {
	f := newFixture(t)

	pending, err := f.p.DownloadSingularModel(context.Background(), "de-DE")
	require.NoError(t, err)

	c, err := f.p.DeleteModel(context.Background(), DeleteOptions{All: true})
	require.Error(t, err)
	assert.Nil(t, c)
	assert.True(t, errors.Is(err, ErrNoModelsDownloaded))
	assert.Equal(t, "No models are currently downloaded.", err.Error())

	// the pending download was still superseded
	rs := drain(t, pending)
	assert.Equal(t, "cleaned up previous call", rs[len(rs)-1].Msg)
}

func TestDeleteAllWithFailures(t *testing.T) {
	f := newFixture(t, "de-DE", "en-US", "fr-FR")

	c, err := f.p.DeleteModel(context.Background(), DeleteOptions{All: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.Identifier{"de-DE", "en-US", "fr-FR"}, f.mgr.Deletes())

	assert.Equal(t, "Deleting 3 models...", next(t, c).Msg)
	for i := 0; i < 3; i++ {
		assert.False(t, next(t, c).Terminal())
	}

	require.True(t, f.mgr.CompleteDelete("en-US", errors.New("busy")))
	r := next(t, c)
	assert.False(t, r.OK)
	assert.False(t, r.Terminal())
	assert.True(t, errors.Is(r.Err, ErrDeleteFailed))

	require.True(t, f.mgr.CompleteDelete("fr-FR", nil))
	assert.False(t, next(t, c).Terminal())

	require.True(t, f.mgr.CompleteDelete("de-DE", nil))
	r = next(t, c)
	assert.True(t, r.OK)
	assert.True(t, r.Terminal())
	assert.Equal(t, "de-DE model successfully deleted.", r.Msg)
	assertClosed(t, c)

	h, _ := f.p.Registry().Resolve("en-US")
	assert.Equal(t, model.Downloaded, f.p.Registry().State(h))
}

func TestDeleteSingleNotDownloaded(t *testing.T) {
	f := newFixture(t)

	c, err := f.p.DeleteModel(context.Background(), DeleteOptions{Model: "de-DE"})
	require.NoError(t, err)

	rs := drain(t, c)
	require.Len(t, rs, 1)
	assert.False(t, rs[0].OK)
	assert.True(t, rs[0].Terminal())
	assert.True(t, errors.Is(rs[0].Err, ErrModelNotDownloaded))
	assert.Empty(t, f.mgr.Deletes())
}

func TestDeleteSingle(t *testing.T) {
	f := newFixture(t, "de-DE")

	c, err := f.p.DeleteModel(context.Background(), DeleteOptions{Model: "de-DE", All: true})
	require.NoError(t, err)
	assert.Equal(t, []model.Identifier{"de-DE"}, f.mgr.Deletes(), "model wins over all")

	assert.Equal(t, "de-DE model is being deleted.", next(t, c).Msg)
	require.True(t, f.mgr.CompleteDelete("de-DE", nil))

	r := next(t, c)
	assert.True(t, r.Terminal())
	assert.Equal(t, "de-DE model successfully deleted.", r.Msg)
}

func TestDeleteBatch(t *testing.T) {
	f := newFixture(t, "de-DE", "fr-FR")

	c, err := f.p.DeleteModel(context.Background(), DeleteOptions{
		Models: []string{"de-DE", "xx", "it-IT"},
		All:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, []model.Identifier{"de-DE"}, f.mgr.Deletes(), "models wins over all")

	assert.Equal(t, "Processing models...", next(t, c).Msg)
	assert.Equal(t, "de-DE model is being deleted.", next(t, c).Msg)

	r := next(t, c)
	assert.True(t, errors.Is(r.Err, ErrInvalidModel))
	r = next(t, c)
	assert.True(t, errors.Is(r.Err, ErrModelNotDownloaded))
	assert.False(t, r.Terminal())

	r = next(t, c)
	assert.Equal(t, "Models processed.", r.Msg)
	assert.False(t, r.Terminal())

	require.True(t, f.mgr.CompleteDelete("de-DE", nil))
	assert.True(t, next(t, c).Terminal())
}

func TestRecognitionEmptyInk(t *testing.T) {
	f := newFixture(t, "en-US")

	r, err := f.p.DoRecognition(context.Background(), RecognitionOptions{})
	require.NoError(t, err)
	assert.True(t, r.OK)
	require.NotNil(t, r.Results)
	assert.Equal(t, []string{}, r.Results.Candidates)
	assert.Equal(t, []float32{}, r.Results.Scores)
	assert.Empty(t, f.rec.Calls())
}

func TestRecognitionModelErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.p.DoRecognition(context.Background(), RecognitionOptions{})
	assert.True(t, errors.Is(err, ErrModelNotDownloaded))
	assert.Equal(t, "default en-US model is not downloaded.", err.Error())

	_, err = f.p.DoRecognition(context.Background(), RecognitionOptions{Model: "de-DE"})
	assert.True(t, errors.Is(err, ErrModelNotDownloaded))
	assert.False(t, errors.Is(err, ErrInvalidModel))

	r, err := f.p.DoRecognition(context.Background(), RecognitionOptions{Model: "xx-XX"})
	assert.True(t, errors.Is(err, ErrInvalidModel))
	assert.False(t, r.OK)
	assert.Empty(t, f.mgr.Downloads(), "recognition never downloads")
}

func TestRecognitionResults(t *testing.T) {
	f := newFixture(t, "de-DE")
	f.rec.SetResult(&recognizer.Result{Candidates: []recognizer.Candidate{
		{Text: "Hallo", Score: recognizer.Score(0.75)},
		{Text: "Halle"},
	}})

	_, err := f.p.LogStrokes(Strokes{X: []float32{1, 2}, Y: []float32{1, 2}})
	require.NoError(t, err)

	r, err := f.p.DoRecognition(context.Background(), RecognitionOptions{
		Model:       "de-DE",
		Context:     "Sag ",
		WritingArea: WritingArea{W: 200, H: 50},
	})
	require.NoError(t, err)
	assert.True(t, r.OK)
	assert.Equal(t, "Recognized successfully", r.Msg)
	assert.Equal(t, []string{"Hallo", "Halle"}, r.Results.Candidates)
	assert.Equal(t, []float32{0.75, 0}, r.Results.Scores)

	calls := f.rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, model.Identifier("de-DE"), calls[0].Model)
	assert.Equal(t, 1, calls[0].Strokes)
	assert.Equal(t, "Sag ", calls[0].Context.PreContext)
	assert.Equal(t, float32(200), calls[0].Context.WritingArea.Width)
}

func TestRecognitionFailures(t *testing.T) {
	f := newFixture(t, "en-US")
	_, err := f.p.LogStrokes(Strokes{X: []float32{1}, Y: []float32{1}})
	require.NoError(t, err)

	f.rec.SetResult(nil)
	_, err = f.p.DoRecognition(context.Background(), RecognitionOptions{})
	assert.True(t, errors.Is(err, ErrRecognitionFailed))

	f.rec.SetError(errors.New("engine crashed"))
	r, err := f.p.DoRecognition(context.Background(), RecognitionOptions{})
	assert.True(t, errors.Is(err, ErrRecognitionFailed))
	assert.False(t, r.OK)
	assert.NotEmpty(t, r.Msg)
}

func TestGetDownloadedModels(t *testing.T) {
	f := newFixture(t)

	r, err := f.p.GetDownloadedModels(context.Background())
	require.NoError(t, err)
	assert.True(t, r.OK)
	assert.Equal(t, "No models are downloaded.", r.Msg)
	assert.Equal(t, []string{}, r.Models)

	f.mgr.SetDownloaded("fr-FR", "de-DE")
	r, err = f.p.GetDownloadedModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"de-DE", "fr-FR"}, r.Models)

	f.mgr.SetCheckError(errors.New("gone"))
	r, err = f.p.GetDownloadedModels(context.Background())
	assert.True(t, errors.Is(err, ErrManager))
	assert.False(t, r.OK)
}

func TestInitializeDownloadsDefault(t *testing.T) {
	cond := manager.Conditions{AllowCellular: true}
	f := newUninitialized(t, Options{DownloadDefaultOnInit: true, Conditions: cond})

	r := f.p.InitializePlugin(context.Background())
	assert.Equal(t, "Plugin initialized.", r.Msg)
	assert.Equal(t, []model.Identifier{"en-US"}, f.mgr.Downloads())
	assert.Equal(t, []manager.Conditions{cond}, f.mgr.Conditions())

	// a second init while the download runs doesn't start another
	f.p.InitializePlugin(context.Background())
	assert.Len(t, f.mgr.Downloads(), 1)

	f.mgr.CompleteDownload("en-US", nil)
	h := f.p.Registry().Default()
	assert.Eventually(t, func() bool {
		return f.p.Registry().State(h) == model.Downloaded
	}, time.Second, 10*time.Millisecond)
}

func TestResponseJSON(t *testing.T) {
	b, err := json.Marshal(ok("Plugin initialized."))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"msg":"Plugin initialized."}`, string(b))

	b, err = json.Marshal(Response{OK: true, Msg: "No models are downloaded.", Models: []string{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"msg":"No models are downloaded.","models":[]}`, string(b))

	b, err = json.Marshal(withDone(failure(newError(ErrDownloadFailed, "de-DE", "de-DE model failed to download.")), false))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":false,"done":false,"msg":"de-DE model failed to download.","model":"de-DE"}`, string(b))
}
