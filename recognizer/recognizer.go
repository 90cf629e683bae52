// Package recognizer is the port to the handwriting recognition engine.
package recognizer

import (
	"context"
	"errors"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/ink"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/model"
)

// WritingArea is the size of the surface the ink was drawn on. Zero means
// unknown.
type WritingArea struct {
	Width  float32
	Height float32
}

// Context is optional information that helps the engine.
type Context struct {
	// PreContext is the text immediately before the ink.
	PreContext  string
	WritingArea WritingArea
}

// Candidate is one recognition hypothesis. Score is nil when the engine
// doesn't provide one.
type Candidate struct {
	Text  string
	Score *float32
}

// Result holds candidates best first.
type Result struct {
	Candidates []Candidate
}

// Recognizer runs recognition of ink with a downloaded model. A nil result
// with a nil error counts as a failure.
type Recognizer interface {
	Recognize(ctx context.Context, h model.Handle, in ink.Ink, rc Context) (*Result, error)
}

// Score is a helper for building candidates.
func Score(v float32) *float32 {
	return &v
}

// Unavailable fails every recognition. It stands in when no engine is
// configured.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Recognize(context.Context, model.Handle, ink.Ink, Context) (*Result, error) {
	return nil, errors.New(u.Reason)
}
