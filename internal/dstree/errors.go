package dstree

import "errors"

// ErrNotFound is returned when a qualifier segment matches no child, or when
// segments remain below a node that has no traversable children. Callers
// check it with errors.Is; the wrapped message names the failing segment.
var ErrNotFound = errors.New("dstree: node not found")
