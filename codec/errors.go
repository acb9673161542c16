package codec

import "errors"

// Parse error taxonomy (spec.md §4.1).
var (
	// ErrMissingRequiredField is returned when a frame is missing tag 35 or tag 34.
	ErrMissingRequiredField = errors.New("codec: missing required field (35 or 34)")
	// ErrInvalidSeqNum is returned when tag 34 is not a non-negative integer.
	ErrInvalidSeqNum = errors.New("codec: tag 34 is not a valid sequence number")
	// ErrMalformedField is returned when a TAG=VALUE group is missing its '='.
	ErrMalformedField = errors.New("codec: malformed field, missing '='")
	// ErrParseException covers unexpected internal parse failures.
	ErrParseException = errors.New("codec: parse exception")
	// ErrDisallowedByte is returned by Build when a field value contains SOH or '='.
	ErrDisallowedByte = errors.New("codec: field value contains SOH or '=' byte")
)
