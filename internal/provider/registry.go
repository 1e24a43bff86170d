package provider

import (
	"errors"
	"fmt"
)

// ErrUnknownProvider is returned for an unrecognized backend selector.
// This is a configuration error: fatal at startup, never retried.
var ErrUnknownProvider = errors.New("unknown quote provider")

// New constructs the backend named by selector.
func New(selector string, opts ...Option) (Provider, error) {
	switch selector {
	case SourceYahoo:
		return NewYahoo(opts...), nil
	case SourceStooq:
		return NewStooq(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, selector)
	}
}
