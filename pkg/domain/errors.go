package domain

import "errors"

// ErrNotFound is returned when a requested entity does not exist on the node.
var ErrNotFound = errors.New("not found")

// ErrNoEndpoint is returned when a DID document has no usable service endpoint of the requested type.
var ErrNoEndpoint = errors.New("no service endpoint")
