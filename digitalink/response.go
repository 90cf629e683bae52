package digitalink

import (
	"encoding/json"
	"errors"
)

// Response is the envelope every operation returns or streams.
type Response struct {
	OK      bool     `json:"ok"`
	Done    *bool    `json:"done,omitempty"`
	Msg     string   `json:"msg"`
	Model   string   `json:"model,omitempty"`
	Results *Results `json:"results,omitempty"`
	Models  []string `json:"models,omitempty"`

	Err error `json:"-"`
}

// Results are recognition candidates best first, with scores at the same
// index.
type Results struct {
	Candidates []string  `json:"candidates"`
	Scores     []float32 `json:"scores"`
}

// MarshalJSON keeps an empty but non-nil model list as [] so callers can
// tell "no models" from "not a model listing".
func (r Response) MarshalJSON() ([]byte, error) {
	type envelope Response
	out := struct {
		envelope
		Models *[]string `json:"models,omitempty"`
	}{envelope: envelope(r)}
	if r.Models != nil {
		out.Models = &r.Models
	}
	return json.Marshal(out)
}

// Terminal reports whether r ends a stream.
func (r Response) Terminal() bool {
	return r.Done != nil && *r.Done
}

func ok(msg string) Response {
	return Response{OK: true, Msg: msg}
}

func progress(msg, tag string) Response {
	return Response{OK: true, Done: boolPtr(false), Msg: msg, Model: tag}
}

func failure(err error) Response {
	r := Response{OK: false, Msg: err.Error(), Err: err}
	var e *Error
	if errors.As(err, &e) {
		r.Model = e.Model
	}
	return r
}

func withDone(r Response, done bool) Response {
	r.Done = boolPtr(done)
	return r
}

func boolPtr(b bool) *bool {
	return &b
}
