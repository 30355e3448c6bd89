package datastructures

import "errors"

// Errors returned by Deque and its iterators. Call sites wrap them with
// context, so compare with errors.Is.
var (
	ErrInvalidIterator = errors.New("invalid iterator")
	ErrIndexOutOfBound = errors.New("index out of bound")
	ErrEmptyContainer  = errors.New("container is empty")
)
