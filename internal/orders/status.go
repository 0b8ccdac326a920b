package orders

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusCreated    Status = "Created"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusCreated:    {StatusInProgress: true, StatusCancelled: true},
	StatusInProgress: {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func (s Status) String() string { return string(s) }

// IsFinal reports whether no transition may leave s.
func (s Status) IsFinal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// ParseStatus matches a status name case-insensitively. "in_progress" and
// "in-progress" are accepted as spellings of InProgress.
func ParseStatus(s string) (Status, error) {
	norm := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.TrimSpace(s))
	for st := range validNext {
		if strings.EqualFold(norm, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Next validates the edge from -> to. Terminal states are checked first so a
// finalized order always reports ErrAlreadyFinalized, whatever the target.
// Requesting the current status is a no-op and returns it unchanged.
func Next(from, to Status) (Status, error) {
	if _, ok := validNext[to]; !ok {
		return from, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if from.IsFinal() {
		return from, fmt.Errorf("%w: order is %s", ErrAlreadyFinalized, from)
	}
	if from == to {
		return from, nil
	}
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}
