package jsonstore

import "errors"

var (
	// ErrInvalidPath is returned when a store is constructed with an empty
	// file path.
	ErrInvalidPath = errors.New("jsonstore: file path must be a non-empty string")

	// ErrDataShape is returned when the backing file parses to something
	// other than a JSON object.
	ErrDataShape = errors.New("jsonstore: file content is not a JSON object")

	// ErrNotSerializable is returned when a value cannot be rendered as
	// JSON (cycles, channels, funcs).
	ErrNotSerializable = errors.New("jsonstore: value not serializable to json")

	// ErrInvalidSnapshotDir is returned when the snapshot directory is empty.
	ErrInvalidSnapshotDir = errors.New("jsonstore: snapshot directory must be a non-empty string")

	// ErrInvalidInterval is returned when the snapshot interval is not positive.
	ErrInvalidInterval = errors.New("jsonstore: snapshot interval must be greater than zero")

	// ErrInvalidRetention is returned when a retention tracker is constructed
	// with a cap below one.
	ErrInvalidRetention = errors.New("jsonstore: retention cap must be greater than zero")
)
