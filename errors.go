package quantasim

import "errors"

// ErrEmptyQueue is returned when an element is requested from an empty queue.
var ErrEmptyQueue = errors.New("empty queue")

// ErrInvalidArgument is returned when an operation rejects its input. The
// rejected operation does not change any state.
var ErrInvalidArgument = errors.New("invalid argument")
