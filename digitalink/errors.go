package digitalink

import (
	"errors"
	"fmt"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/ink"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/model"
)

// Error kinds. Compare with errors.Is.
var (
	ErrMalformedStroke    = ink.ErrMalformedStroke
	ErrInvalidModel       = model.ErrInvalidModel
	ErrModelNotDownloaded = errors.New("model not downloaded")
	ErrNoModelsDownloaded = errors.New("no models downloaded")
	ErrDownloadFailed     = errors.New("download failed")
	ErrDeleteFailed       = errors.New("delete failed")
	ErrRecognitionFailed  = errors.New("recognition failed")
	ErrManager            = errors.New("model manager unavailable")

	// structural: the call is rejected before it claims the listener slot
	ErrMissingArgument = errors.New("missing argument")
	ErrNotInitialized  = errors.New("plugin not initialized")
)

// Error is a failure with the message shown to the caller.
type Error struct {
	Kind  error
	Msg   string
	Model string
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, tag string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Model: tag}
}

// invalid turns a resolution failure into an Error keeping the registry's
// message, which may carry a suggestion.
func invalid(tag string, err error) *Error {
	return &Error{Kind: ErrInvalidModel, Msg: err.Error(), Model: tag}
}
