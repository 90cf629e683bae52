// Package manager talks to whatever holds the recognition models on the
// device: it checks presence, starts downloads and deletes bundles.
// Download completion is reported out of band on Events.
package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/model"
)

// ErrNotDownloaded is returned by a delete of a model that isn't present.
var ErrNotDownloaded = errors.New("model is not downloaded")

// Conditions restrict when a download may run.
type Conditions struct {
	AllowCellular   bool
	AllowBackground bool
}

type EventKind int

const (
	DownloadSucceeded EventKind = iota
	DownloadFailed
)

func (k EventKind) String() string {
	switch k {
	case DownloadSucceeded:
		return "download-succeeded"
	case DownloadFailed:
		return "download-failed"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is an out-of-band download completion. It carries no reference to
// whoever asked for the download.
type Event struct {
	Kind  EventKind
	Model model.Identifier
	Err   error
}

// Manager is the model manager port. Every successful Download call yields
// exactly one Event, including a duplicate of a download already in flight.
// The channel returned by DeleteDownloadedModel receives exactly one value.
type Manager interface {
	IsModelDownloaded(ctx context.Context, h model.Handle) (bool, error)
	Download(ctx context.Context, h model.Handle, c Conditions) error
	DeleteDownloadedModel(ctx context.Context, h model.Handle) <-chan error
	Events() <-chan Event
}

func done(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	return ch
}
