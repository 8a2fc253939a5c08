package repository

import "errors"

// ErrInvalidTransition rejects status edges missing from the case
// transition table before any SQL is issued.
var ErrInvalidTransition = errors.New("invalid case status transition")
