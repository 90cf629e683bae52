// Package model resolves language tags to recognition models and tracks
// which of them are present on the device.
package model

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidModel is the kind of every resolution failure.
var ErrInvalidModel = errors.New("invalid model identifier")

// Identifier is a language tag such as "en-US".
type Identifier string

func (i Identifier) String() string {
	return string(i)
}

// Handle is a resolved model. Only the registry creates handles, so holding
// one means the tag is in the catalog.
type Handle struct {
	tag Identifier
}

func (h Handle) Tag() Identifier {
	return h.tag
}

func (h Handle) IsZero() bool {
	return h.tag == ""
}

// InvalidIdentifierError is returned by Resolve for tags that are not in the
// catalog.
type InvalidIdentifierError struct {
	Tag        string
	Suggestion Identifier
}

func (e *InvalidIdentifierError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s model is not a valid model identifier (did you mean %s?)", e.Tag, e.Suggestion)
	}
	return fmt.Sprintf("%s model is not a valid model identifier", e.Tag)
}

func (e *InvalidIdentifierError) Is(target error) bool {
	return target == ErrInvalidModel
}

// DownloadedSet is a sorted snapshot of the downloaded models.
type DownloadedSet struct {
	tags []Identifier
}

func NewDownloadedSet(tags ...Identifier) DownloadedSet {
	seen := make(map[Identifier]bool, len(tags))
	out := make([]Identifier, 0, len(tags))
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return DownloadedSet{tags: out}
}

func (s DownloadedSet) Contains(id Identifier) bool {
	i := sort.Search(len(s.tags), func(i int) bool { return s.tags[i] >= id })
	return i < len(s.tags) && s.tags[i] == id
}

func (s DownloadedSet) Len() int {
	return len(s.tags)
}

func (s DownloadedSet) Tags() []Identifier {
	return append([]Identifier(nil), s.tags...)
}

// Strings returns the tags as plain strings, in order.
func (s DownloadedSet) Strings() []string {
	out := make([]string, len(s.tags))
	for i, t := range s.tags {
		out[i] = string(t)
	}
	return out
}
