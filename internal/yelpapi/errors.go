package yelpapi

import (
	"github.com/cockroachdb/errors"
)

// Error categories surfaced to tool callers. Test with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUpstream        = errors.New("upstream failure")
)

// InvalidArgumentf builds an error marked as ErrInvalidArgument.
func InvalidArgumentf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidArgument)
}

func upstreamf(cause error, format string, args ...any) error {
	if cause == nil {
		return errors.Mark(errors.Newf(format, args...), ErrUpstream)
	}
	return errors.Mark(errors.Wrapf(cause, format, args...), ErrUpstream)
}

// IsInvalidArgument reports whether err carries the ErrInvalidArgument mark.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsUpstream reports whether err carries the ErrUpstream mark.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}
