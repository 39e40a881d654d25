package protocol

import "errors"

var (
	// ErrUnknownEffect is returned for effect numbers absent from the
	// effect table. Nothing is sent to the device in that case.
	ErrUnknownEffect = errors.New("unknown effect")

	// ErrLEDIndexRange is returned when a caller supplies an LED index
	// outside 0-125. Out-of-range indices are rejected, not dropped.
	ErrLEDIndexRange = errors.New("led index out of range")
)
