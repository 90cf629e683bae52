package digitalink

import (
	"context"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/log"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/model"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/recognizer"
)

// WritingArea is the size of the drawing surface. Zero means unset.
type WritingArea struct {
	W float32 `json:"w"`
	H float32 `json:"h"`
}

type RecognitionOptions struct {
	// Model overrides the default model.
	Model       string      `json:"model,omitempty"`
	Context     string      `json:"context,omitempty"`
	WritingArea WritingArea `json:"writingArea"`
}

// DoRecognition recognizes the strokes logged so far. Recognition never
// triggers a download.
func (p *Plugin) DoRecognition(ctx context.Context, opts RecognitionOptions) (Response, error) {
	h, err := p.pickModel(opts.Model)
	if err != nil {
		return fail(err)
	}
	id := string(h.Tag())

	present, err := p.reg.IsDownloaded(ctx, h)
	if err != nil {
		return fail(newError(ErrRecognitionFailed, id, "Can't check %s model: %v", id, err))
	}
	if !present {
		if opts.Model == "" {
			return fail(newError(ErrModelNotDownloaded, id, "default %s model is not downloaded.", id))
		}
		return fail(newError(ErrModelNotDownloaded, id, "%s model is not downloaded.", id))
	}

	p.mu.Lock()
	snapshot := p.buf.Ink()
	p.mu.Unlock()

	results := &Results{Candidates: []string{}, Scores: []float32{}}
	if snapshot.Empty() {
		return Response{OK: true, Msg: "Recognized successfully", Model: id, Results: results}, nil
	}

	rc := recognizer.Context{
		PreContext:  opts.Context,
		WritingArea: recognizer.WritingArea{Width: opts.WritingArea.W, Height: opts.WritingArea.H},
	}
	res, err := p.rec.Recognize(ctx, h, snapshot, rc)
	if err != nil {
		log.Trace.Printf("recognizer: %v", err)
		return fail(newError(ErrRecognitionFailed, id, "Recognition failed: %v", err))
	}
	if res == nil {
		return fail(newError(ErrRecognitionFailed, id, "Recognition failed: no result"))
	}

	for _, c := range res.Candidates {
		var score float32
		if c.Score != nil {
			score = *c.Score
		}
		results.Candidates = append(results.Candidates, c.Text)
		results.Scores = append(results.Scores, score)
	}

	return Response{OK: true, Msg: "Recognized successfully", Model: id, Results: results}, nil
}

func (p *Plugin) pickModel(tag string) (model.Handle, error) {
	if tag == "" {
		return p.reg.Default(), nil
	}
	h, err := p.reg.Resolve(tag)
	if err != nil {
		return model.Handle{}, invalid(tag, err)
	}
	return h, nil
}
