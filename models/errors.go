package models

import "errors"

// Conditions raised by the binding core. None of them are fatal: each degrades to a
// well-defined view state.
var (
	// ErrDataUnavailable is returned when a source, or its data, is missing.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrUnknownDimension is returned when a dimension key is not active.
	ErrUnknownDimension = errors.New("unknown dimension")

	// ErrUnknownMeasure is returned when a measure key is not active.
	ErrUnknownMeasure = errors.New("unknown measure")

	// ErrInvalidEdit is returned when a measure edit does not parse as a finite number.
	ErrInvalidEdit = errors.New("invalid edit: value is not a number")

	// ErrInvalidRow is returned when a row index or key is out of range.
	ErrInvalidRow = errors.New("invalid row")

	// ErrNotEditable is returned for edits against a variant without editable measures.
	ErrNotEditable = errors.New("measures are not editable in this variant")

	// ErrTornDown is returned by a binding after it has been closed.
	ErrTornDown = errors.New("binding torn down")
)
