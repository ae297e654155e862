package travelmap

import "errors"

// Exported errors for library consumers.
var (
	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("travelmap: client is closed")

	// ErrNoDatabase indicates an operation that needs the place store
	// on a client built without a database.
	ErrNoDatabase = errors.New("travelmap: no database configured")
)
