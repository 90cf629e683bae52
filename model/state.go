package model

import "fmt"

// State is the lifecycle position of one model.
type State int

const (
	NotDownloaded State = iota
	Downloading
	Downloaded
	Deleting
)

func (s State) String() string {
	switch s {
	case NotDownloaded:
		return "not-downloaded"
	case Downloading:
		return "downloading"
	case Downloaded:
		return "downloaded"
	case Deleting:
		return "deleting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var transitions = map[State][]State{
	NotDownloaded: {Downloading},
	Downloading:   {Downloaded, NotDownloaded},
	Downloaded:    {Deleting},
	Deleting:      {NotDownloaded, Downloaded},
}

// CanTransition reports whether a model may move from one state to another.
// Staying put is always allowed. Downloading→NotDownloaded and
// Deleting→Downloaded are the failure rollbacks.
func CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
